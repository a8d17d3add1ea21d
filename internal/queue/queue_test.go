package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"r1", "r2"} {
		msg, err := NewCheckIn(CheckIn{RecordID: id, SessionID: "s1", StudentID: "u1"})
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, msg))
	}
	assert.Equal(t, 2, q.Len())

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	for _, want := range []string{"r1", "r2"} {
		select {
		case msg := <-ch:
			evt, err := DecodeCheckIn(msg)
			require.NoError(t, err)
			assert.Equal(t, want, evt.RecordID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestInMemoryPublishDropsWhenFull(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "x"}))

	start := time.Now()
	assert.ErrorIs(t, q.Publish(context.Background(), Message{Type: "x"}), ErrFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, q.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewInMemory(1).Publish(ctx, Message{Type: "x"}), context.Canceled)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestDecodeCheckInRejectsOtherTypes(t *testing.T) {
	_, err := DecodeCheckIn(Message{Type: "other", Body: []byte(`{}`)})
	assert.Error(t, err)

	_, err = DecodeCheckIn(Message{Type: TypeCheckIn, Body: []byte(`not json`)})
	assert.Error(t, err)
}
