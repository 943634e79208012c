package postgres

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// UpsertUser creates the user on first contact and refreshes names afterwards
func (p *PostgresDB) UpsertUser(ctx context.Context, user db.User) (*db.User, error) {
	backend := user.PreferredBackend
	if backend == "" {
		backend = db.DefaultBackend
	}

	query := `
	INSERT INTO users (user_id, username, first_name, preferred_backend)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE
	SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, is_active = TRUE
	RETURNING user_id, username, first_name, preferred_backend, is_active, joined_at
	`

	var out db.User
	err := p.conn.QueryRowContext(ctx, query, user.ID, user.Username, user.FirstName, backend).
		Scan(&out.ID, &out.Username, &out.FirstName, &out.PreferredBackend, &out.Active, &out.JoinedAt)
	if err != nil {
		return nil, apperr.StoreUnavailable("upsert user", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": out.ID, "username": out.Username}).Debug("Upserted user")
	return &out, nil
}

// GetUser retrieves a user by platform id
func (p *PostgresDB) GetUser(ctx context.Context, id int64) (*db.User, error) {
	var user db.User
	query := `SELECT user_id, username, first_name, preferred_backend, is_active, joined_at FROM users WHERE user_id = $1`

	err := p.conn.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.FirstName, &user.PreferredBackend, &user.Active, &user.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.StoreUnavailable("get user", err)
	}

	return &user, nil
}

// ListUsers returns every known user, oldest first
func (p *PostgresDB) ListUsers(ctx context.Context) ([]db.User, error) {
	query := `SELECT user_id, username, first_name, preferred_backend, is_active, joined_at FROM users ORDER BY joined_at`

	rows, err := p.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.StoreUnavailable("list users", err)
	}
	defer rows.Close()

	var users []db.User
	for rows.Next() {
		var u db.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.PreferredBackend, &u.Active, &u.JoinedAt); err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetPreferredBackend stores the user's generation backend choice
func (p *PostgresDB) SetPreferredBackend(ctx context.Context, id int64, backend string) error {
	res, err := p.conn.ExecContext(ctx, `UPDATE users SET preferred_backend = $1 WHERE user_id = $2`, backend, id)
	if err != nil {
		return apperr.StoreUnavailable("set preferred backend", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
