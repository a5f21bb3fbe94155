package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmailTaken is returned by Create on a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// Repository is the Postgres store for users.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, hashed_password, name, avatar_url, provider, servings_default,
	dietary_restrictions, allergens, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.Name, &u.AvatarURL, &u.Provider, &u.ServingsDefault,
		&u.DietaryRestrictions, &u.Allergens, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, email, hashedPassword, name string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, hashed_password, name, provider)
		VALUES ($1, $2, $3, $4, 'email')
		RETURNING `+userColumns, uuid.NewString(), email, hashedPassword, name))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// Update writes the profile fields of u and refreshes its timestamps.
func (r *Repository) Update(ctx context.Context, u *User) (*User, error) {
	out, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET name = $2, avatar_url = $3, servings_default = $4,
			dietary_restrictions = $5, allergens = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Name, u.AvatarURL, u.ServingsDefault, nonNil(u.DietaryRestrictions), nonNil(u.Allergens)))
	if err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", u.ID, err)
	}
	return out, nil
}

// Delete removes the user; owned rows go with it through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
