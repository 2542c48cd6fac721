package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

// NewTask is the input of Create. Status and owner are not caller-controlled.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type TaskService struct {
	repo repo.TaskRepository
}

func NewTaskService(repo repo.TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) Create(ctx context.Context, userID string, in NewTask) (model.Task, error) {
	t := model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      model.StatusPending,
		DueDate:     in.DueDate,
		UserID:      userID,
	}
	if err := s.validate(t); err != nil {
		return t, err
	}
	return s.repo.Create(ctx, t)
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (model.Task, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *TaskService) List(ctx context.Context, userID string, filter model.TaskFilter) ([]model.Task, error) {
	return s.repo.List(ctx, userID, filter)
}

// Update always targets the caller's row; a user_id in the payload is ignored.
func (s *TaskService) Update(ctx context.Context, userID string, t model.Task) (model.Task, error) {
	t.UserID = userID
	if err := s.validate(t); err != nil {
		return t, err
	}
	return s.repo.Update(ctx, t)
}

func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *TaskService) validate(t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrValidation
	}
	if !t.Status.Valid() {
		return ErrValidation
	}
	return nil
}
