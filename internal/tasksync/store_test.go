package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) List(ctx context.Context, userID string) ([]model.Task, error) {
	args := m.Called(ctx, userID)
	tasks, _ := args.Get(0).([]model.Task)
	return tasks, args.Error(1)
}

func (m *MockRemote) Create(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockRemote) Update(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	if fn, ok := args.Get(0).(func(context.Context, model.Task) model.Task); ok {
		return fn(ctx, t), args.Error(1)
	}
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockRemote) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

const alice = "alice"

var (
	t0         = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	errNetwork = errors.New("connection reset")
)

func task(id string, status model.Status, age time.Duration) model.Task {
	return model.Task{ID: id, Title: "task " + id, Status: status, CreatedAt: t0.Add(-age), UserID: alice}
}

// loaded returns a store for alice holding tasks, with all setup calls consumed.
func loaded(t *testing.T, tasks ...model.Task) (*Store, *MockRemote) {
	t.Helper()
	remote := new(MockRemote)
	remote.On("List", mock.Anything, alice).Return(tasks, nil).Once()

	s := NewStore(remote)
	s.SetUser(alice)
	require.NoError(t, s.Refresh(context.Background()))
	return s, remote
}

func TestStore_NotAuthenticated(t *testing.T) {
	remote := new(MockRemote)
	s := NewStore(remote)
	ctx := context.Background()

	assert.ErrorIs(t, s.Refresh(ctx), ErrNotAuthenticated)
	_, err := s.Create(ctx, NewTask{Title: "x"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = s.Update(ctx, task("1", model.StatusPending, 0))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = s.SetStatus(ctx, "1", model.StatusCompleted)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, s.Delete(ctx, "1"), ErrNotAuthenticated)
	assert.ErrorIs(t, s.Watch(ctx, newFakeFeed()), ErrNotAuthenticated)

	assert.Nil(t, s.Err())
	assert.Equal(t, Uninitialized, s.State())
	remote.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestStore_Refresh(t *testing.T) {
	t.Run("sorts newest first", func(t *testing.T) {
		// remote returns them out of order, including a tie
		s, _ := loaded(t,
			task("old", model.StatusPending, 3*time.Hour),
			task("new", model.StatusPending, 0),
			task("tie-a", model.StatusCompleted, time.Hour),
			task("tie-b", model.StatusPending, time.Hour),
		)

		tasks := s.Tasks()
		require.Len(t, tasks, 4)
		assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, ids(tasks))
		for i := 1; i < len(tasks); i++ {
			assert.False(t, tasks[i].CreatedAt.After(tasks[i-1].CreatedAt))
		}
		assert.Equal(t, Ready, s.State())
	})

	t.Run("does not reorder or mutate the remote's slice", func(t *testing.T) {
		fromRemote := []model.Task{
			task("old", model.StatusPending, time.Hour),
			task("new", model.StatusPending, 0),
		}
		s, remote := loaded(t, fromRemote...)
		remote.On("Update", mock.Anything, mock.Anything).
			Return(func(_ context.Context, t model.Task) model.Task { return t }, nil).Once()

		edited := s.Tasks()[0]
		edited.Title = "renamed"
		_, err := s.Update(context.Background(), edited)
		require.NoError(t, err)

		assert.Equal(t, []string{"old", "new"}, ids(fromRemote))
		assert.Equal(t, "task new", fromRemote[1].Title)
	})

	t.Run("failure keeps list and records error", func(t *testing.T) {
		s, remote := loaded(t, task("1", model.StatusPending, 0))
		before := s.Tasks()
		remote.On("List", mock.Anything, alice).Return(nil, errNetwork).Once()

		err := s.Refresh(context.Background())

		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.ErrorIs(t, err, errNetwork)
		assert.Equal(t, before, s.Tasks())
		assert.ErrorIs(t, s.Err(), ErrFetchFailed)
		assert.Equal(t, Ready, s.State())
		remote.AssertNumberOfCalls(t, "List", 2)
	})

	t.Run("success clears error", func(t *testing.T) {
		s, remote := loaded(t)
		remote.On("List", mock.Anything, alice).Return(nil, errNetwork).Once()
		remote.On("List", mock.Anything, alice).Return([]model.Task{task("1", model.StatusPending, 0)}, nil).Once()

		require.Error(t, s.Refresh(context.Background()))
		require.Error(t, s.Err())
		require.NoError(t, s.Refresh(context.Background()))
		assert.NoError(t, s.Err())
		assert.Len(t, s.Tasks(), 1)
	})

	t.Run("loading while in flight", func(t *testing.T) {
		remote := new(MockRemote)
		release := make(chan struct{})
		remote.On("List", mock.Anything, alice).
			Run(func(mock.Arguments) { <-release }).
			Return([]model.Task{}, nil)

		s := NewStore(remote)
		s.SetUser(alice)

		done := make(chan error, 1)
		go func() { done <- s.Refresh(context.Background()) }()

		assert.Eventually(t, func() bool { return s.State() == Loading }, time.Second, 5*time.Millisecond)
		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, Ready, s.State())
	})
}

func TestStore_Create(t *testing.T) {
	t.Run("blank title makes no remote call", func(t *testing.T) {
		for _, title := range []string{"", "   ", "\t\n"} {
			s, remote := loaded(t, task("1", model.StatusPending, 0))
			before := s.Tasks()

			_, err := s.Create(context.Background(), NewTask{Title: title})

			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, before, s.Tasks())
			remote.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		}
	})

	t.Run("prepends pending task", func(t *testing.T) {
		s, remote := loaded(t, task("1", model.StatusCompleted, time.Hour))
		remote.On("Create", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
			return t.Title == "Buy milk" && t.Status == model.StatusPending && t.UserID == alice && t.ID == ""
		})).Return(model.Task{ID: "2", Title: "Buy milk", Status: model.StatusPending, CreatedAt: t0, UserID: alice}, nil)

		created, err := s.Create(context.Background(), NewTask{Title: "Buy milk"})

		require.NoError(t, err)
		assert.Equal(t, "2", created.ID)
		tasks := s.Tasks()
		require.Len(t, tasks, 2)
		assert.Equal(t, "2", tasks[0].ID)
		assert.Equal(t, model.StatusPending, tasks[0].Status)
		remote.AssertExpectations(t)
	})

	t.Run("failure leaves list intact", func(t *testing.T) {
		s, remote := loaded(t, task("1", model.StatusPending, 0))
		before := s.Tasks()
		remote.On("Create", mock.Anything, mock.Anything).Return(model.Task{}, errNetwork)

		_, err := s.Create(context.Background(), NewTask{Title: "x"})

		assert.ErrorIs(t, err, ErrCreateFailed)
		assert.ErrorIs(t, err, errNetwork)
		assert.Equal(t, before, s.Tasks())
		assert.ErrorIs(t, s.Err(), ErrCreateFailed)
	})
}

func TestStore_Update(t *testing.T) {
	t.Run("replaces in place", func(t *testing.T) {
		s, remote := loaded(t,
			task("a", model.StatusPending, 0),
			task("b", model.StatusPending, time.Hour),
			task("c", model.StatusPending, 2*time.Hour),
		)
		edited := s.Tasks()[1]
		edited.Title = "renamed"
		edited.Description = "more"
		edited.Status = model.StatusInProgress
		remote.On("Update", mock.Anything, edited).Return(edited, nil)

		_, err := s.Update(context.Background(), edited)

		require.NoError(t, err)
		tasks := s.Tasks()
		assert.Equal(t, []string{"a", "b", "c"}, ids(tasks))
		assert.Equal(t, edited, tasks[1])
		assert.Equal(t, "task a", tasks[0].Title)
		assert.Equal(t, "task c", tasks[2].Title)
	})

	t.Run("scopes to current user", func(t *testing.T) {
		s, remote := loaded(t, task("a", model.StatusPending, 0))
		edited := s.Tasks()[0]
		edited.UserID = "mallory"
		remote.On("Update", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
			return t.UserID == alice
		})).Return(task("a", model.StatusPending, 0), nil)

		_, err := s.Update(context.Background(), edited)
		require.NoError(t, err)
		remote.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		s, remote := loaded(t, task("a", model.StatusPending, 0))

		blank := s.Tasks()[0]
		blank.Title = " "
		_, err := s.Update(context.Background(), blank)
		assert.ErrorIs(t, err, ErrValidation)

		bad := s.Tasks()[0]
		bad.Status = "archived"
		_, err = s.Update(context.Background(), bad)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, model.ErrInvalidStatus)

		remote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("failure leaves list intact", func(t *testing.T) {
		s, remote := loaded(t, task("a", model.StatusPending, 0))
		before := s.Tasks()
		edited := before[0]
		edited.Title = "changed"
		remote.On("Update", mock.Anything, mock.Anything).Return(model.Task{}, errNetwork)

		_, err := s.Update(context.Background(), edited)

		assert.ErrorIs(t, err, ErrUpdateFailed)
		assert.Equal(t, before, s.Tasks())
	})
}

func TestStore_SetStatus(t *testing.T) {
	s, remote := loaded(t, task("a", model.StatusPending, 0))
	remote.On("Update", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
		return t.ID == "a" && t.Status == model.StatusCompleted && t.Title == "task a"
	})).Return(task("a", model.StatusCompleted, 0), nil)

	updated, err := s.SetStatus(context.Background(), "a", model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	_, err = s.SetStatus(context.Background(), "missing", model.StatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
	remote.AssertNumberOfCalls(t, "Update", 1)
}

func TestStore_Delete(t *testing.T) {
	t.Run("removes exactly one", func(t *testing.T) {
		s, remote := loaded(t,
			task("a", model.StatusPending, 0),
			task("b", model.StatusPending, time.Hour),
			task("c", model.StatusPending, 2*time.Hour),
		)
		remote.On("Delete", mock.Anything, alice, "b").Return(nil)

		require.NoError(t, s.Delete(context.Background(), "b"))

		assert.Equal(t, []string{"a", "c"}, ids(s.Tasks()))
	})

	t.Run("failure leaves list intact", func(t *testing.T) {
		s, remote := loaded(t, task("a", model.StatusPending, 0))
		before := s.Tasks()
		remote.On("Delete", mock.Anything, alice, "a").Return(errNetwork)

		err := s.Delete(context.Background(), "a")

		assert.ErrorIs(t, err, ErrDeleteFailed)
		assert.Equal(t, before, s.Tasks())
		assert.ErrorIs(t, s.Err(), ErrDeleteFailed)

		s.ClearError()
		assert.NoError(t, s.Err())
	})
}

func TestStore_Filter(t *testing.T) {
	var tasks []model.Task
	for i := 0; i < 30; i++ {
		tasks = append(tasks, task(fmt.Sprint(i), model.Statuses[i%len(model.Statuses)], time.Duration(i)*time.Minute))
	}
	s, _ := loaded(t, tasks...)
	all := s.Tasks()

	for _, st := range model.Statuses {
		st := st
		got := s.Filter(model.TaskFilter{Status: &st})

		var want []model.Task
		for _, t := range all {
			if t.Status == st {
				want = append(want, t)
			}
		}
		assert.Equal(t, want, got, st)
	}

	assert.Equal(t, all, s.Filter(model.TaskFilter{}))
	assert.Equal(t, all, s.Tasks(), "filter must not mutate")
}

func TestStore_TasksReturnsCopy(t *testing.T) {
	s, _ := loaded(t, task("a", model.StatusPending, 0))

	tasks := s.Tasks()
	tasks[0].Title = "mutated"

	assert.Equal(t, "task a", s.Tasks()[0].Title)
}

func TestStore_Scenario(t *testing.T) {
	t2 := t0
	t1 := t0.Add(-time.Hour)
	s, remote := loaded(t,
		model.Task{ID: "2", Title: "second", Status: model.StatusCompleted, CreatedAt: t1, UserID: alice},
		model.Task{ID: "1", Title: "first", Status: model.StatusPending, CreatedAt: t2, UserID: alice},
	)
	require.Equal(t, []string{"1", "2"}, ids(s.Tasks()))

	done := model.StatusCompleted
	assert.Equal(t, []string{"2"}, ids(s.Filter(model.TaskFilter{Status: &done})))

	remote.On("Create", mock.Anything, mock.Anything).
		Return(model.Task{ID: "3", Title: "third", Status: model.StatusPending, CreatedAt: t2.Add(time.Minute), UserID: alice}, nil)

	_, err := s.Create(context.Background(), NewTask{Title: "third"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, ids(s.Tasks()))
}

func TestStore_SetUser(t *testing.T) {
	t.Run("resets state", func(t *testing.T) {
		s, _ := loaded(t, task("a", model.StatusPending, 0))

		s.SetUser("bob")

		assert.Empty(t, s.Tasks())
		assert.Equal(t, Uninitialized, s.State())
		assert.Equal(t, "bob", s.User())
	})

	t.Run("same user is a no-op", func(t *testing.T) {
		s, _ := loaded(t, task("a", model.StatusPending, 0))
		s.SetUser(alice)
		assert.Len(t, s.Tasks(), 1)
	})

	t.Run("discards in-flight results", func(t *testing.T) {
		remote := new(MockRemote)
		started := make(chan struct{})
		release := make(chan struct{})
		remote.On("Create", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(task("late", model.StatusPending, 0), nil)

		s := NewStore(remote)
		s.SetUser(alice)

		done := make(chan error, 1)
		go func() {
			_, err := s.Create(context.Background(), NewTask{Title: "late"})
			done <- err
		}()

		<-started
		s.SetUser("bob")
		close(release)

		assert.ErrorIs(t, <-done, ErrStale)
		assert.Empty(t, s.Tasks())
	})
}

func TestStore_OnUpdate(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	remote := new(MockRemote)
	remote.On("List", mock.Anything, alice).Return([]model.Task{}, nil)

	s := NewStore(remote, WithOnUpdate(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	s.SetUser(alice)
	require.NoError(t, s.Refresh(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	// SetUser, loading, loaded
	assert.Equal(t, 3, calls)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	var seed []model.Task
	for i := 0; i < 20; i++ {
		seed = append(seed, task(fmt.Sprint(i), model.StatusPending, time.Duration(i)*time.Minute))
	}
	s, remote := loaded(t, seed...)
	remote.On("Update", mock.Anything, mock.Anything).Return(func(_ context.Context, t model.Task) model.Task {
		return t
	}, nil)
	remote.On("Delete", mock.Anything, alice, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprint(i)
			if i%2 == 0 {
				assert.NoError(t, s.Delete(context.Background(), id))
				return
			}
			_, err := s.SetStatus(context.Background(), id, model.StatusCompleted)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tasks := s.Tasks()
	require.Len(t, tasks, 10)
	for i, tk := range tasks {
		assert.Equal(t, model.StatusCompleted, tk.Status)
		if i > 0 {
			assert.False(t, tk.CreatedAt.After(tasks[i-1].CreatedAt))
		}
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
