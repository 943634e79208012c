package postgres

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/repository/db"
	"context"
	"database/sql"
	"time"
)

func (p *PostgresDB) AppendRate(ctx context.Context, rec db.RateRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO rate_limits (user_id, command, created_at) VALUES ($1, $2, $3)`,
		rec.UserID, rec.Command, rec.CreatedAt)
	if err != nil {
		return apperr.StoreUnavailable("append rate", err)
	}
	return nil
}

func (p *PostgresDB) CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
	var n int
	err := p.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limits WHERE user_id = $1 AND command = $2 AND created_at >= $3`,
		userID, command, since).Scan(&n)
	if err != nil {
		return 0, apperr.StoreUnavailable("count rate", err)
	}
	return n, nil
}

func (p *PostgresDB) OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error) {
	var oldest sql.NullTime
	err := p.conn.QueryRowContext(ctx,
		`SELECT MIN(created_at) FROM rate_limits WHERE user_id = $1 AND command = $2 AND created_at >= $3`,
		userID, command, since).Scan(&oldest)
	if err != nil {
		return time.Time{}, false, apperr.StoreUnavailable("oldest rate", err)
	}
	return oldest.Time, oldest.Valid, nil
}

func (p *PostgresDB) DeleteRateBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.conn.ExecContext(ctx, `DELETE FROM rate_limits WHERE created_at < $1`, before)
	if err != nil {
		return 0, apperr.StoreUnavailable("purge rate", err)
	}
	return res.RowsAffected()
}
