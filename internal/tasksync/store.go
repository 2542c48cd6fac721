// Package tasksync keeps one user's task list in memory and in step with a
// remote task store.
//
// Local state only changes after the remote call succeeds, so a failed
// operation leaves the list exactly as it was. A change feed, when watched,
// triggers a full refresh on every event.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrValidation       = errors.New("validation failed")
	ErrFetchFailed      = errors.New("failed to load tasks")
	ErrCreateFailed     = errors.New("failed to create task")
	ErrUpdateFailed     = errors.New("failed to update task")
	ErrDeleteFailed     = errors.New("failed to delete task")
	ErrNotFound         = errors.New("task not found")

	// ErrStale is returned when the user changed while the call was in flight.
	// The result has been discarded.
	ErrStale = errors.New("user changed during operation")

	ErrFeedClosed = errors.New("change feed closed")
)

// Remote is the task store the list is synchronized with. Every call is
// scoped to a single owner.
type Remote interface {
	List(ctx context.Context, userID string) ([]model.Task, error)
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// Feed delivers change events for one user's rows until ctx is done.
type Feed interface {
	Subscribe(ctx context.Context, userID string) (<-chan model.ChangeEvent, error)
}

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type NewTask struct {
	Title       string
	Description string
	DueDate     *time.Time
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithOnUpdate registers fn to run after every change to the store's state.
// It is called without the store lock held.
func WithOnUpdate(fn func()) Option {
	return func(s *Store) { s.onUpdate = fn }
}

type Store struct {
	remote   Remote
	logger   *zap.Logger
	onUpdate func()

	mu      sync.Mutex
	userID  string
	gen     uint64
	tasks   []model.Task
	loaded  bool
	pending int
	err     error

	watchID   uint64
	stopWatch context.CancelFunc
}

func NewStore(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUser switches the identity the store works for. A different user resets
// the list, stops any watch and makes in-flight results stale. An empty id
// signs the store out.
func (s *Store) SetUser(userID string) {
	s.mu.Lock()
	if userID == s.userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	s.gen++
	s.tasks = nil
	s.loaded = false
	s.pending = 0
	s.err = nil
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.mu.Unlock()

	s.logger.Debug("task store user changed", zap.String("user_id", userID))
	s.notify()
}

func (s *Store) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Store) session() (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", 0, ErrNotAuthenticated
	}
	return s.userID, s.gen, nil
}

// commit runs fn under the lock unless the user changed since gen.
func (s *Store) commit(gen uint64, fn func()) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

// Refresh replaces the local list with the user's tasks, newest first.
func (s *Store) Refresh(ctx context.Context) error {
	uid, gen, err := s.session()
	if err != nil {
		return err
	}

	s.commit(gen, func() { s.pending++ })

	tasks, err := s.remote.List(ctx, uid)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
	} else {
		tasks = sortTasks(tasks)
	}

	ok := s.commit(gen, func() {
		s.pending--
		s.loaded = true
		if err != nil {
			s.err = err
			return
		}
		s.tasks = tasks
		s.err = nil
	})
	if !ok {
		return ErrStale
	}
	if err != nil {
		s.logger.Warn("refresh failed", zap.String("user_id", uid), zap.Error(err))
		return err
	}

	s.logger.Debug("tasks refreshed", zap.String("user_id", uid), zap.Int("count", len(tasks)))
	return nil
}

// sortTasks returns a copy of tasks, newest first. The remote's slice is
// never kept.
func sortTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Create submits a pending task owned by the current user and puts the stored
// record at the top of the list.
func (s *Store) Create(ctx context.Context, in NewTask) (model.Task, error) {
	uid, gen, err := s.session()
	if err != nil {
		return model.Task{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
	}

	created, err := s.remote.Create(ctx, model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      model.StatusPending,
		DueDate:     in.DueDate,
		UserID:      uid,
	})
	if err != nil {
		return model.Task{}, s.fail(gen, uid, ErrCreateFailed, err)
	}

	ok := s.commit(gen, func() {
		s.tasks = append([]model.Task{created}, s.tasks...)
		s.err = nil
	})
	if !ok {
		return model.Task{}, ErrStale
	}
	return created, nil
}

// Update sends title, description and status of t and replaces the entry with
// the same id in place.
func (s *Store) Update(ctx context.Context, t model.Task) (model.Task, error) {
	uid, gen, err := s.session()
	if err != nil {
		return model.Task{}, err
	}
	if strings.TrimSpace(t.Title) == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !t.Status.Valid() {
		return model.Task{}, fmt.Errorf("%w: %w", ErrValidation, model.ErrInvalidStatus)
	}
	t.UserID = uid

	updated, err := s.remote.Update(ctx, t)
	if err != nil {
		return model.Task{}, s.fail(gen, uid, ErrUpdateFailed, err)
	}

	ok := s.commit(gen, func() {
		if i := s.index(updated.ID); i >= 0 {
			s.tasks[i] = updated
		}
		s.err = nil
	})
	if !ok {
		return model.Task{}, ErrStale
	}
	return updated, nil
}

// SetStatus moves the local task id to status.
func (s *Store) SetStatus(ctx context.Context, id string, status model.Status) (model.Task, error) {
	t, ok := s.Get(id)
	if !ok {
		if _, _, err := s.session(); err != nil {
			return model.Task{}, err
		}
		return model.Task{}, ErrNotFound
	}
	t.Status = status
	return s.Update(ctx, t)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	uid, gen, err := s.session()
	if err != nil {
		return err
	}

	if err := s.remote.Delete(ctx, uid, id); err != nil {
		return s.fail(gen, uid, ErrDeleteFailed, err)
	}

	ok := s.commit(gen, func() {
		if i := s.index(id); i >= 0 {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		}
		s.err = nil
	})
	if !ok {
		return ErrStale
	}
	return nil
}

func (s *Store) fail(gen uint64, uid string, kind, cause error) error {
	err := fmt.Errorf("%w: %w", kind, cause)
	if !s.commit(gen, func() { s.err = err }) {
		return ErrStale
	}
	s.logger.Warn("task operation failed", zap.String("user_id", uid), zap.Error(err))
	return err
}

// index must be called with s.mu held.
func (s *Store) index(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// Tasks returns a copy of the local list.
func (s *Store) Tasks() []model.Task {
	return s.Filter(model.TaskFilter{})
}

// Filter returns the tasks matching f in list order.
func (s *Store) Filter(f model.TaskFilter) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.pending > 0:
		return Loading
	case s.loaded:
		return Ready
	}
	return Uninitialized
}

// Err reports the last failure. It is cleared by the next successful
// operation or by ClearError.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.notify()
}
