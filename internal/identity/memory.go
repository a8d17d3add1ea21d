package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"studentattendance/internal/access"
)

// MemoryStore is an in-process Store enforcing the same uniqueness rules
// as the Postgres schema.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		switch {
		case existing.Email == u.Email:
			return User{}, ErrEmailExists
		case sameOptional(existing.StudentNumber, u.StudentNumber):
			return User{}, ErrStudentIDExists
		case sameOptional(existing.EmployeeID, u.EmployeeID):
			return User{}, ErrEmployeeIDExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	u.CreatedAt = m.now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func sameOptional(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) find(match func(User) bool) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (User, error) {
	return m.find(func(u User) bool { return u.Email == email })
}

func (m *MemoryStore) GetByResetToken(_ context.Context, token string) (User, error) {
	return m.find(func(u User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (m *MemoryStore) update(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *MemoryStore) SetVerification(_ context.Context, id string, verified bool, code string, expires *time.Time) error {
	return m.update(id, func(u *User) {
		if verified {
			u.EmailVerified = true
			if u.Status == StatusPending {
				u.Status = StatusActive
			}
			u.VerificationCode, u.VerificationExpires = nil, nil
		} else {
			u.VerificationCode, u.VerificationExpires = nullable(code), expires
		}
		u.UpdatedAt = m.now().UTC()
	})
}

func (m *MemoryStore) SetResetToken(_ context.Context, id, token string, expires *time.Time) error {
	return m.update(id, func(u *User) {
		u.ResetToken, u.ResetExpires = nullable(token), expires
		u.UpdatedAt = m.now().UTC()
	})
}

func (m *MemoryStore) SetPassword(_ context.Context, id, digest string) error {
	return m.update(id, func(u *User) {
		u.PasswordHash = digest
		u.ResetToken, u.ResetExpires = nil, nil
		u.UpdatedAt = m.now().UTC()
	})
}

func (m *MemoryStore) SetLastLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(u *User) { u.LastLogin = &at })
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	return m.update(id, func(u *User) {
		u.Status = status
		u.UpdatedAt = m.now().UTC()
	})
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id string, p Profile) (User, error) {
	var out User
	err := m.update(id, func(u *User) {
		if p.FullName != nil {
			u.FullName = *p.FullName
		}
		if p.PhoneNumber != nil {
			u.PhoneNumber = p.PhoneNumber
		}
		if p.ProfileImage != nil {
			u.ProfileImage = p.ProfileImage
		}
		if p.Department != nil {
			u.Department = p.Department
		}
		if p.YearOfStudy != nil {
			u.YearOfStudy = p.YearOfStudy
		}
		if p.Specialization != nil {
			u.Specialization = p.Specialization
		}
		u.UpdatedAt = m.now().UTC()
		out = *u
	})
	return out, err
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, role access.Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if role == "" {
		return len(m.users), nil
	}
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
