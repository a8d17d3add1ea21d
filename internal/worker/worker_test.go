package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/attendance"
	"studentattendance/internal/faceclient"
	"studentattendance/internal/queue"
)

type faceResult struct {
	verified   bool
	confidence float64
}

type fakeAttendance struct {
	mu         sync.Mutex
	faces      map[string]faceResult
	recomputed []string
	expired    int
	expireErr  error
	after      time.Duration
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{faces: map[string]faceResult{}}
}

func (f *fakeAttendance) ApplyFaceResult(_ context.Context, recordID string, verified bool, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces[recordID] = faceResult{verified, confidence}
	return nil
}

func (f *fakeAttendance) RecomputeStats(_ context.Context, sessionID string) (attendance.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputed = append(f.recomputed, sessionID)
	return attendance.Stats{SessionID: sessionID}, nil
}

func (f *fakeAttendance) CompleteExpired(_ context.Context, after time.Duration) (int, error) {
	f.after = after
	return f.expired, f.expireErr
}

func (f *fakeAttendance) recomputeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recomputed)
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(_ context.Context, studentID, _ string) (*faceclient.VerifyResult, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &faceclient.VerifyResult{UserID: studentID, Verified: true, Similarity: 0.87}, nil
}

type fakeCounter struct{ total int }

func (c *fakeCounter) AutoCompleted(n int) { c.total += n }

func checkInMessage(t *testing.T, evt queue.CheckIn) queue.Message {
	t.Helper()
	msg, err := queue.NewCheckIn(evt)
	require.NoError(t, err)
	return msg
}

func TestHandleVerifiesFace(t *testing.T) {
	logger, _ := test.NewNullLogger()
	att := newFakeAttendance()
	face := &fakeVerifier{}
	p := NewProcessor(att, face, logger)

	msg := checkInMessage(t, queue.CheckIn{RecordID: "r1", SessionID: "s1", StudentID: "u1", ImageURL: "https://img/1.jpg"})
	require.NoError(t, p.Handle(context.Background(), msg))

	assert.Equal(t, 1, face.calls)
	assert.Equal(t, faceResult{true, 0.87}, att.faces["r1"])
	assert.Equal(t, []string{"s1"}, att.recomputed)
}

func TestHandleWithoutImage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	att := newFakeAttendance()
	face := &fakeVerifier{}
	p := NewProcessor(att, face, logger)

	msg := checkInMessage(t, queue.CheckIn{RecordID: "r1", SessionID: "s1", StudentID: "u1", RequireFace: true})
	require.NoError(t, p.Handle(context.Background(), msg))

	assert.Zero(t, face.calls)
	assert.Empty(t, att.faces)
	assert.Equal(t, []string{"s1"}, att.recomputed)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestHandleFaceFailureStillRecomputes(t *testing.T) {
	logger, hook := test.NewNullLogger()
	att := newFakeAttendance()
	p := NewProcessor(att, &fakeVerifier{err: errors.New("service down")}, logger)

	msg := checkInMessage(t, queue.CheckIn{RecordID: "r1", SessionID: "s1", StudentID: "u1", ImageURL: "https://img/1.jpg"})
	require.NoError(t, p.Handle(context.Background(), msg))

	assert.Empty(t, att.faces)
	assert.Equal(t, []string{"s1"}, att.recomputed)
	assert.Equal(t, "face verification failed", hook.Entries[0].Message)
}

func TestHandleSkipModeStoresNoResult(t *testing.T) {
	logger, _ := test.NewNullLogger()
	att := newFakeAttendance()
	p := NewProcessor(att, faceclient.New("http://unused.invalid", true), logger)

	msg := checkInMessage(t, queue.CheckIn{RecordID: "r1", SessionID: "s1", StudentID: "u1", ImageURL: "https://img/1.jpg"})
	require.NoError(t, p.Handle(context.Background(), msg))

	assert.Empty(t, att.faces)
	assert.Equal(t, []string{"s1"}, att.recomputed)
}

func TestHandleIgnoresUnknownTypes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	att := newFakeAttendance()
	p := NewProcessor(att, nil, logger)

	require.NoError(t, p.Handle(context.Background(), queue.Message{Type: "other", Body: json.RawMessage(`{}`)}))
	assert.Empty(t, att.recomputed)

	err := p.Handle(context.Background(), queue.Message{Type: queue.TypeCheckIn, Body: json.RawMessage(`not json`)})
	assert.Error(t, err)
}

func TestRunDrainsQueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	att := newFakeAttendance()
	p := NewProcessor(att, nil, logger)
	q := queue.NewInMemory(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, id := range []string{"s1", "s2"} {
		require.NoError(t, q.Publish(ctx, checkInMessage(t, queue.CheckIn{RecordID: "r-" + id, SessionID: id})))
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, q) }()

	assert.Eventually(t, func() bool { return att.recomputeCount() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestSweep(t *testing.T) {
	logger, _ := test.NewNullLogger()
	att := newFakeAttendance()
	att.expired = 3
	counter := &fakeCounter{}
	s := NewSweeper(att, 15*time.Minute, counter, logger)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, counter.total)
	assert.Equal(t, 15*time.Minute, att.after)

	att.expireErr = errors.New("db down")
	_, err = s.Sweep(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 3, counter.total)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSweeper(newFakeAttendance(), time.Minute, nil, logger)

	_, err := s.Schedule(context.Background(), "not a schedule")
	assert.Error(t, err)

	c, err := s.Schedule(context.Background(), "@every 1m")
	require.NoError(t, err)
	<-c.Stop().Done()
}

func TestScheduleLogsThroughLogrus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewSweeper(newFakeAttendance(), time.Minute, nil, logger)

	c, err := s.Schedule(context.Background(), "@every 1h")
	require.NoError(t, err)
	defer func() { <-c.Stop().Done() }()

	assert.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "start" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
