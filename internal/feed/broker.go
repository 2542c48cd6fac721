// Package feed delivers row-level task changes to per-user subscribers.
package feed

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

// Broker fans change events out to the subscribers of the owning user.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan model.ChangeEvent]struct{}
	buffer int
	logger *zap.Logger
}

func NewBroker(logger *zap.Logger, buffer int) *Broker {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broker{
		subs:   make(map[string]map[chan model.ChangeEvent]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber for userID. The returned cancel func
// unregisters it and closes the channel; calling it twice is safe.
func (b *Broker) Subscribe(userID string) (<-chan model.ChangeEvent, func()) {
	ch := make(chan model.ChangeEvent, b.buffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan model.ChangeEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish never blocks. A subscriber with a full buffer misses the event; it
// already has a pending one that will trigger the same full refresh.
func (b *Broker) Publish(ev model.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("subscriber buffer full, event dropped",
				zap.String("user_id", ev.UserID),
				zap.String("task_id", ev.TaskID),
			)
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Broker) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
