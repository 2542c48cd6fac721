package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

const userColumns = `id::text, coalesce(email, ''), name, avatar_url, provider, created_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) CreateUser(ctx context.Context, u model.User, passwordHash string) (model.User, error) {
	created, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, avatar_url, provider)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		nullable(u.Email), passwordHash, u.Name, u.AvatarURL, u.Provider))
	if err != nil {
		return u, mapError(err)
	}
	return created, nil
}

// FindByEmail returns the user and its password hash (empty for social-only users).
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, string, error) {
	var (
		u    model.User
		hash *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Provider, &u.CreatedAt, &hash)
	if err != nil {
		return u, "", mapError(err)
	}
	if hash == nil {
		return u, "", nil
	}
	return u, *hash, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1::uuid
	`, id))
	return u, mapError(err)
}

// UpsertIdentity resolves a social identity to a user, creating the user on first
// sign-in. An existing account with the same email is linked instead of duplicated.
func (r *UserRepo) UpsertIdentity(ctx context.Context, provider, subject string, u model.User) (model.User, error) {
	var out model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `
			SELECT user_id::text FROM identities WHERE provider = $1 AND subject = $2
		`, provider, subject).Scan(&userID)

		switch {
		case err == nil:
			out, err = scanUser(tx.QueryRow(ctx, `
				UPDATE users
				SET name = coalesce(nullif($2, ''), name),
				    avatar_url = coalesce(nullif($3, ''), avatar_url)
				WHERE id = $1::uuid
				RETURNING `+userColumns,
				userID, u.Name, u.AvatarURL))
			return err
		case err != pgx.ErrNoRows:
			return err
		}

		out, err = scanUser(tx.QueryRow(ctx, `
			INSERT INTO users (email, name, avatar_url, provider)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
			RETURNING `+userColumns,
			nullable(u.Email), u.Name, u.AvatarURL, provider))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO identities (provider, subject, user_id) VALUES ($1, $2, $3::uuid)
		`, provider, subject, out.ID)
		return err
	})
	if err != nil {
		return u, mapError(err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Provider, &u.CreatedAt)
	return u, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
