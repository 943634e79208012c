package postgres

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/repository/db"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (p *PostgresDB) AppendSearchResult(ctx context.Context, res db.SearchResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	if res.Payload == "" {
		res.Payload = "{}"
	}

	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO search_results (id, user_id, query, kind, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.UserID, res.Query, res.Kind, res.Payload, res.CreatedAt)
	if err != nil {
		return apperr.StoreUnavailable("append search result", err)
	}
	return nil
}

func (p *PostgresDB) RecentSearchResults(ctx context.Context, userID int64, kind string, n int) ([]db.SearchResult, error) {
	query := `
	SELECT id, user_id, query, kind, payload::text, created_at
	FROM search_results
	WHERE user_id = $1 AND ($2::text = '' OR kind = $2)
	ORDER BY created_at DESC
	LIMIT $3
	`
	if n <= 0 {
		n = 10
	}

	rows, err := p.conn.QueryContext(ctx, query, userID, kind, n)
	if err != nil {
		return nil, apperr.StoreUnavailable("recent search results", err)
	}
	defer rows.Close()

	var results []db.SearchResult
	for rows.Next() {
		var r db.SearchResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.Query, &r.Kind, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (p *PostgresDB) CountSearchResultsSince(ctx context.Context, kind string, since time.Time) (int, error) {
	var n int
	err := p.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_results WHERE ($1::text = '' OR kind = $1) AND created_at >= $2`,
		kind, since).Scan(&n)
	if err != nil {
		return 0, apperr.StoreUnavailable("count search results", err)
	}
	return n, nil
}
