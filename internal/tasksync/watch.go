package tasksync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Watch subscribes to the current user's change feed, loads a baseline and
// refreshes on every event. It blocks until ctx is done, the user changes
// (returns nil) or the feed closes (ErrFeedClosed). Starting a new watch stops
// the previous one.
func (s *Store) Watch(ctx context.Context, feed Feed) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	uid := s.userID
	if s.stopWatch != nil {
		s.stopWatch()
	}
	wctx, cancel := context.WithCancel(ctx)
	s.watchID++
	id := s.watchID
	s.stopWatch = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.watchID == id {
			s.stopWatch = nil
		}
		s.mu.Unlock()
	}()

	events, err := feed.Subscribe(wctx, uid)
	if err != nil {
		if wctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Debug("watching tasks", zap.String("user_id", uid))

	if err := s.Refresh(wctx); errors.Is(err, ErrStale) {
		return nil
	}

	for {
		select {
		case <-wctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if wctx.Err() != nil {
					return ctx.Err()
				}
				return ErrFeedClosed
			}
			s.logger.Debug("task change", zap.String("op", string(ev.Op)), zap.String("task_id", ev.TaskID))
			if err := s.Refresh(wctx); errors.Is(err, ErrStale) {
				return nil
			}
		}
	}
}
