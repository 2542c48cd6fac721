package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

// Channel is the NOTIFY channel written by the tasks_notify_change trigger.
const Channel = "task_changes"

type Publisher interface {
	Publish(ev model.ChangeEvent)
}

// Listener turns PostgreSQL notifications into change events.
type Listener struct {
	pool   *pgxpool.Pool
	pub    Publisher
	logger *zap.Logger
	retry  time.Duration
}

func NewListener(pool *pgxpool.Pool, pub Publisher, logger *zap.Logger) *Listener {
	return &Listener{
		pool:   pool,
		pub:    pub,
		logger: logger,
		retry:  time.Second,
	}
}

// Run listens until ctx is done, re-listening after connection failures.
// Notifications sent while disconnected are lost; subscribers re-list on reconnect.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("Starting change feed listener", zap.String("channel", Channel))

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Change feed listener stopped")
			return nil
		}
		l.logger.Error("listener error", zap.Error(err))

		select {
		case <-ctx.Done():
			l.logger.Info("Change feed listener stopped")
			return nil
		case <-time.After(l.retry):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// The connection keeps LISTEN state, so it never goes back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(n.Payload)
	}
}

func (l *Listener) dispatch(payload string) {
	var ev model.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Error("malformed notification", zap.String("payload", payload), zap.Error(err))
		return
	}
	if ev.UserID == "" {
		l.logger.Error("notification without owner", zap.String("payload", payload))
		return
	}
	l.pub.Publish(ev)
}
