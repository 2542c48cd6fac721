package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/testutil"
)

func TestTaskRepo(t *testing.T) {
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewTaskRepo(pool)

	testutil.TruncateTables(t, pool)
	alice := testutil.SeedUser(t, pool, "alice@example.com")
	bob := testutil.SeedUser(t, pool, "bob@example.com")

	t.Run("create assigns id and created_at", func(t *testing.T) {
		due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
		created, err := repo.Create(ctx, model.Task{
			Title:       "Write report",
			Description: "quarterly",
			Status:      model.StatusPending,
			DueDate:     &due,
			UserID:      alice,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, model.StatusPending, created.Status)
		assert.Equal(t, alice, created.UserID)
		require.NotNil(t, created.DueDate)
		assert.Equal(t, "2026-11-01", created.DueDate.Format("2006-01-02"))
	})

	t.Run("list is scoped and newest first", func(t *testing.T) {
		testutil.TruncateTables(t, pool)
		alice = testutil.SeedUser(t, pool, "alice@example.com")
		bob = testutil.SeedUser(t, pool, "bob@example.com")

		for i := 0; i < 3; i++ {
			_, err := repo.Create(ctx, model.Task{Title: fmt.Sprintf("A%d", i), Status: model.StatusPending, UserID: alice})
			require.NoError(t, err)
		}
		_, err := repo.Create(ctx, model.Task{Title: "B0", Status: model.StatusCompleted, UserID: bob})
		require.NoError(t, err)

		tasks, err := repo.List(ctx, alice, model.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "A2", tasks[0].Title)
		for i := 1; i < len(tasks); i++ {
			assert.False(t, tasks[i-1].CreatedAt.Before(tasks[i].CreatedAt))
			assert.Equal(t, alice, tasks[i].UserID)
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		done := model.StatusCompleted
		tasks, err := repo.List(ctx, bob, model.TaskFilter{Status: &done})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "B0", tasks[0].Title)

		tasks, err = repo.List(ctx, alice, model.TaskFilter{Status: &done})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("update is scoped by owner", func(t *testing.T) {
		task, err := repo.Create(ctx, model.Task{Title: "Mine", Status: model.StatusPending, UserID: alice})
		require.NoError(t, err)

		task.Title = "Renamed"
		task.Status = model.StatusInProgress
		updated, err := repo.Update(ctx, task)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, model.StatusInProgress, updated.Status)
		assert.True(t, task.CreatedAt.Equal(updated.CreatedAt))

		stolen := task
		stolen.UserID = bob
		_, err = repo.Update(ctx, stolen)
		assert.ErrorIs(t, err, ErrorNotFound)

		got, err := repo.Get(ctx, alice, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
	})

	t.Run("delete is scoped by owner", func(t *testing.T) {
		task, err := repo.Create(ctx, model.Task{Title: "Doomed", Status: model.StatusPending, UserID: alice})
		require.NoError(t, err)

		assert.ErrorIs(t, repo.Delete(ctx, bob, task.ID), ErrorNotFound)
		require.NoError(t, repo.Delete(ctx, alice, task.ID))
		assert.ErrorIs(t, repo.Delete(ctx, alice, task.ID), ErrorNotFound)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		_, err := repo.Get(ctx, alice, "not-a-uuid")
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("invalid status is rejected by the table", func(t *testing.T) {
		_, err := repo.Create(ctx, model.Task{Title: "Bad", Status: "archived", UserID: alice})
		assert.ErrorIs(t, err, ErrorInvalid)
	})
}

func TestUserRepo(t *testing.T) {
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewUserRepo(pool)
	testutil.TruncateTables(t, pool)

	t.Run("create and find by email", func(t *testing.T) {
		u, err := repo.CreateUser(ctx, model.User{Email: "carol@example.com", Provider: model.ProviderEmail}, "hash")
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)

		found, hash, err := repo.FindByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)
		assert.Equal(t, "hash", hash)

		_, err = repo.CreateUser(ctx, model.User{Email: "carol@example.com", Provider: model.ProviderEmail}, "hash")
		assert.ErrorIs(t, err, ErrorConflict)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := repo.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrorNotFound)

		_, err = repo.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("identity upsert is stable", func(t *testing.T) {
		first, err := repo.UpsertIdentity(ctx, model.ProviderGitHub, "42", model.User{Email: "dave@example.com", Name: "Dave"})
		require.NoError(t, err)
		assert.Equal(t, model.ProviderGitHub, first.Provider)

		second, err := repo.UpsertIdentity(ctx, model.ProviderGitHub, "42", model.User{Name: "David"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "David", second.Name)
	})

	t.Run("identity links existing email account", func(t *testing.T) {
		u, err := repo.CreateUser(ctx, model.User{Email: "erin@example.com", Provider: model.ProviderEmail}, "hash")
		require.NoError(t, err)

		linked, err := repo.UpsertIdentity(ctx, model.ProviderGoogle, "g-1", model.User{Email: "erin@example.com"})
		require.NoError(t, err)
		assert.Equal(t, u.ID, linked.ID)
	})
}
