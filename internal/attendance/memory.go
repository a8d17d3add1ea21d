package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type checkInKey struct{ session, student string }

// MemoryStore is an in-process Store. Its (session, student) index plays
// the role of the Postgres unique constraint.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	records  map[string]Record
	index    map[checkInKey]string
	now      func() time.Time

	// FailStats, when set, is returned by SaveStats.
	FailStats error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		records:  make(map[string]Record),
		index:    make(map[checkInKey]string),
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SessionScheduled
	}
	s.CreatedAt = m.now().UTC()
	s.UpdatedAt = s.CreatedAt
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemoryStore) Transition(_ context.Context, id string, from []SessionStatus, to SessionStatus, at time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	allowed := false
	for _, f := range from {
		if s.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return Session{}, illegalTransition(s.Status, to)
	}
	s.Status = to
	switch to {
	case SessionActive:
		s.ActualStart = &at
	case SessionCompleted:
		s.ActualEnd = &at
	}
	s.UpdatedAt = m.now().UTC()
	m.sessions[id] = s
	return s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	for rid, r := range m.records {
		if r.SessionID == id {
			delete(m.records, rid)
			delete(m.index, checkInKey{r.SessionID, r.StudentID})
		}
	}
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context, f SessionFilter) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	courses := make(map[string]bool, len(f.CourseIDs))
	for _, id := range f.CourseIDs {
		courses[id] = true
	}
	var out []Session
	for _, s := range m.sessions {
		switch {
		case f.LecturerID != "" && s.LecturerID != f.LecturerID,
			len(courses) > 0 && !courses[s.CourseID],
			f.CourseID != "" && s.CourseID != f.CourseID,
			f.Status != "" && s.Status != f.Status,
			f.From != nil && s.ScheduledStart.Before(*f.From),
			f.To != nil && !s.ScheduledStart.Before(*f.To):
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.After(out[j].ScheduledStart) })
	return out, nil
}

func (m *MemoryStore) ExpiredActive(_ context.Context, cutoff time.Time) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, s := range m.sessions {
		if s.Status == SessionActive && s.ScheduledEnd.Before(cutoff) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledEnd.Before(out[j].ScheduledEnd) })
	return out, nil
}

func (m *MemoryStore) CountSessions(_ context.Context, lecturerID string, status SessionStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if (lecturerID == "" || s.LecturerID == lecturerID) && (status == "" || s.Status == status) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertRecord(_ context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := checkInKey{r.SessionID, r.StudentID}
	if _, dup := m.index[key]; dup {
		return Record{}, ErrAlreadyCheckedIn
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = m.now().UTC()
	r.UpdatedAt = r.CreatedAt
	m.records[r.ID] = r
	m.index[key] = r.ID
	return r, nil
}

func (m *MemoryStore) GetRecord(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, f RecordFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if f.SessionID != "" && r.SessionID != f.SessionID {
			continue
		}
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if f.LecturerID != "" && m.sessions[r.SessionID].LecturerID != f.LecturerID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return out, nil
}

func (m *MemoryStore) CountByStatus(_ context.Context, sessionID string) (Breakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b Breakdown
	for _, r := range m.records {
		if r.SessionID == sessionID {
			b.add(r.Status, 1)
		}
	}
	return b, nil
}

func (m *MemoryStore) CountRecords(_ context.Context, studentID string, status RecordStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.records {
		if r.StudentID == studentID && (status == "" || r.Status == status) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SaveStats(_ context.Context, sessionID string, present int, percentage float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStats != nil {
		return m.FailStats
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.TotalPresent, s.AttendancePercentage = present, percentage
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) SetFaceResult(_ context.Context, recordID string, verified bool, confidence *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return ErrRecordNotFound
	}
	r.FaceVerified, r.FaceConfidence = verified, confidence
	m.records[recordID] = r
	return nil
}
