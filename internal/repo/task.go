package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
	ErrorInvalid  = errors.New("invalid data")
)

const taskColumns = `id::text, title, description, status, created_at, due_date, user_id::text`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{
		pool: pool,
	}
}

// scoped runs fn in a transaction with app.user_id set, which the row-level
// security policy on tasks checks independently of our WHERE clauses.
func (r *TaskRepo) scoped(ctx context.Context, userID string, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.user_id', $1, true)`, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}

func (r *TaskRepo) List(ctx context.Context, userID string, filter model.TaskFilter) ([]model.Task, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	tasks := make([]model.Task, 0)
	err := r.scoped(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE user_id = $1::uuid AND ($2::text IS NULL OR status = $2)
			ORDER BY created_at DESC, id DESC
		`, userID, status)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.mapError(err)
	}
	return tasks, nil
}

func (r *TaskRepo) Get(ctx context.Context, userID, id string) (model.Task, error) {
	var t model.Task
	err := r.scoped(ctx, userID, func(tx pgx.Tx) error {
		var err error
		t, err = scanTask(tx.QueryRow(ctx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE id = $1::uuid AND user_id = $2::uuid
		`, id, userID))
		return err
	})
	return t, r.mapError(err)
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	var created model.Task
	err := r.scoped(ctx, t.UserID, func(tx pgx.Tx) error {
		var err error
		created, err = scanTask(tx.QueryRow(ctx, `
			INSERT INTO tasks (title, description, status, due_date, user_id)
			VALUES ($1, $2, $3, $4, $5::uuid)
			RETURNING `+taskColumns,
			t.Title, t.Description, string(t.Status), t.DueDate, t.UserID))
		return err
	})
	if err != nil {
		return t, r.mapError(err)
	}
	return created, nil
}

// Update writes the three mutable fields of the row addressed by id and user_id.
func (r *TaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	var updated model.Task
	err := r.scoped(ctx, t.UserID, func(tx pgx.Tx) error {
		var err error
		updated, err = scanTask(tx.QueryRow(ctx, `
			UPDATE tasks
			SET title = $3, description = $4, status = $5
			WHERE id = $1::uuid AND user_id = $2::uuid
			RETURNING `+taskColumns,
			t.ID, t.UserID, t.Title, t.Description, string(t.Status)))
		return err
	})
	if err != nil {
		return t, r.mapError(err)
	}
	return updated, nil
}

func (r *TaskRepo) Delete(ctx context.Context, userID, id string) error {
	return r.mapError(r.scoped(ctx, userID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1::uuid AND user_id = $2::uuid`, id, userID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrorNotFound
		}
		return nil
	}))
}

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t      model.Task
		status string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.CreatedAt, &t.DueDate, &t.UserID)
	t.Status = model.Status(status)
	return t, err
}

func (r *TaskRepo) mapError(err error) error {
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrorConflict
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return ErrorNotFound
		case "23503", "23514": // foreign_key_violation, check_violation
			return ErrorInvalid
		}
	}
	return err
}
