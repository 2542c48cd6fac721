package model

import (
	"errors"
	"time"
)

var ErrInvalidStatus = errors.New("invalid status")

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	UserID      string     `json:"user_id"`
}

// TaskFilter selects tasks by status. A nil Status means "all".
type TaskFilter struct {
	Status *Status
}

const FilterAll = "all"

// ParseFilter accepts "", "all" or one of the statuses.
func ParseFilter(s string) (TaskFilter, error) {
	if s == "" || s == FilterAll {
		return TaskFilter{}, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return TaskFilter{}, err
	}
	return TaskFilter{Status: &st}, nil
}

func (f TaskFilter) Match(t Task) bool {
	return f.Status == nil || t.Status == *f.Status
}

func (f TaskFilter) String() string {
	if f.Status == nil {
		return FilterAll
	}
	return string(*f.Status)
}
