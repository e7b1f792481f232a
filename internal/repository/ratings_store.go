package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domrepo "TokenRank/internal/domain/repository"
	pkgch "TokenRank/pkg/clickhouse"
)

// ClickHouseRatingsStore reads Elo ratings and recent finishing ranks.
type ClickHouseRatingsStore struct {
	db *sql.DB
}

func NewClickHouseRatingsStore(ch *pkgch.Client) *ClickHouseRatingsStore {
	return &ClickHouseRatingsStore{db: ch.DB()}
}

// Ratings omits symbols that have never been rated.
func (s *ClickHouseRatingsStore) Ratings(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(symbols))
	args := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		placeholders[i] = "?"
		args[i] = sym
	}
	q := fmt.Sprintf(`
        SELECT symbol, argMax(elo, updated_at)
        FROM %s
        WHERE symbol IN (%s)
        GROUP BY symbol
    `, tableRatings, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sym string
			elo float64
		)
		if err := rows.Scan(&sym, &elo); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out[sym] = elo
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// RecentRanks returns the symbol's latest finishing ranks, newest first.
func (s *ClickHouseRatingsStore) RecentRanks(ctx context.Context, symbol string, limit int) ([]int, error) {
	if limit <= 0 {
		return nil, nil
	}
	const q = `
        SELECT rank
        FROM round_results FINAL
        WHERE symbol = ?
        ORDER BY settled_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("recent ranks %s: %w", symbol, err)
	}
	defer rows.Close()

	out := make([]int, 0, limit)
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.RatingStore = (*ClickHouseRatingsStore)(nil)
