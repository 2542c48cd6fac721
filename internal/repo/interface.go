package repo

import (
	"context"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

// TaskRepository is the remote task table. Every call is scoped by the owner's id.
type TaskRepository interface {
	List(ctx context.Context, userID string, filter model.TaskFilter) ([]model.Task, error)
	Get(ctx context.Context, userID, id string) (model.Task, error)
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// UserRepository stores principals for the auth gateway.
type UserRepository interface {
	CreateUser(ctx context.Context, u model.User, passwordHash string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, string, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	UpsertIdentity(ctx context.Context, provider, subject string, u model.User) (model.User, error)
}
