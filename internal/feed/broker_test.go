package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

func receive(t *testing.T, ch <-chan model.ChangeEvent) model.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return model.ChangeEvent{}
}

func TestBroker_FanOutPerUser(t *testing.T) {
	b := NewBroker(zap.NewNop(), 4)

	alice1, cancelA1 := b.Subscribe("alice")
	defer cancelA1()
	alice2, cancelA2 := b.Subscribe("alice")
	defer cancelA2()
	bob, cancelB := b.Subscribe("bob")
	defer cancelB()

	b.Publish(model.ChangeEvent{Op: model.OpInsert, TaskID: "t1", UserID: "alice"})

	assert.Equal(t, "t1", receive(t, alice1).TaskID)
	assert.Equal(t, "t1", receive(t, alice2).TaskID)

	select {
	case ev := <-bob:
		t.Fatalf("bob received foreign event %+v", ev)
	default:
	}
}

func TestBroker_CancelClosesAndUnregisters(t *testing.T) {
	b := NewBroker(zap.NewNop(), 1)

	ch, cancel := b.Subscribe("alice")
	assert.Equal(t, 1, b.Subscribers("alice"))

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers("alice"))

	// publishing after cancel must not panic
	b.Publish(model.ChangeEvent{Op: model.OpDelete, UserID: "alice"})
}

func TestBroker_FullBufferDoesNotBlock(t *testing.T) {
	b := NewBroker(zap.NewNop(), 1)
	ch, cancel := b.Subscribe("alice")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(model.ChangeEvent{Op: model.OpUpdate, UserID: "alice"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, 1)
}

type recorder struct {
	events []model.ChangeEvent
}

func (r *recorder) Publish(ev model.ChangeEvent) { r.events = append(r.events, ev) }

func TestListener_Dispatch(t *testing.T) {
	rec := &recorder{}
	l := NewListener(nil, rec, zap.NewNop())

	l.dispatch(`{"op":"UPDATE","task_id":"t1","user_id":"u1"}`)
	l.dispatch(`not json`)
	l.dispatch(`{"op":"DELETE","task_id":"t2"}`)

	require.Len(t, rec.events, 1)
	assert.Equal(t, model.ChangeEvent{Op: model.OpUpdate, TaskID: "t1", UserID: "u1"}, rec.events[0])
}
