package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	pkgch "TokenRank/pkg/clickhouse"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/util"
)

// ClickHousePriceStore reads and writes per-minute token prices.
type ClickHousePriceStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewClickHousePriceStore(ch *pkgch.Client, log *logger.Logger) *ClickHousePriceStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &ClickHousePriceStore{db: ch.DB(), log: log}
}

func (s *ClickHousePriceStore) LatestAt(ctx context.Context, symbol string, t time.Time) (models.PriceSample, bool, error) {
	const q = `
        SELECT symbol, minute, price
        FROM token_prices FINAL
        WHERE symbol = ? AND minute <= ?
        ORDER BY minute DESC
        LIMIT 1
    `
	var p models.PriceSample
	err := s.db.QueryRowContext(ctx, q, symbol, t.UTC()).Scan(&p.Symbol, &p.Minute, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PriceSample{}, false, nil
	}
	if err != nil {
		s.log.Error("clickhouse latest price query error",
			logger.String("symbol", symbol),
			logger.Time("at", t),
			logger.Error(err))
		return models.PriceSample{}, false, fmt.Errorf("latest price %s: %w", symbol, err)
	}
	p.Minute = p.Minute.UTC()
	return p, true, nil
}

func (s *ClickHousePriceStore) Range(ctx context.Context, symbol string, from, to time.Time, order domrepo.SortOrder) ([]models.PriceSample, error) {
	start := time.Now()
	const qtpl = `
        SELECT symbol, minute, price
        FROM token_prices FINAL
        WHERE symbol = ? AND minute >= ? AND minute <= ?
        ORDER BY minute %s
    `
	q := fmt.Sprintf(qtpl, domrepo.NormalizeOrder(string(order)).SQL())
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		s.log.Error("clickhouse price range query error",
			logger.String("symbol", symbol),
			logger.Error(err))
		return nil, fmt.Errorf("price range %s: %w", symbol, err)
	}
	defer rows.Close()

	out := make([]models.PriceSample, 0, 64)
	for rows.Next() {
		var p models.PriceSample
		if err := rows.Scan(&p.Symbol, &p.Minute, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p.Minute = p.Minute.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.log.Debug("clickhouse price range ok",
		logger.String("symbol", symbol),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// SavePrices inserts samples in multi-row VALUES chunks. Duplicate minutes
// collapse on merge.
func (s *ClickHousePriceStore) SavePrices(ctx context.Context, samples []models.PriceSample) error {
	const chunkSize = 2000
	for start := 0; start < len(samples); start += chunkSize {
		end := start + chunkSize
		if end > len(samples) {
			end = len(samples)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*3)
		for _, p := range samples[start:end] {
			if p.Symbol == "" || p.Minute.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?)")
			args = append(args, p.Symbol, util.MinuteFloor(p.Minute), p.Price)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, minute, price) VALUES %s", tablePrices, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert prices: %w", err)
		}
	}
	return nil
}

var (
	_ domrepo.PriceHistoryStore = (*ClickHousePriceStore)(nil)
	_ domrepo.PriceWriter       = (*ClickHousePriceStore)(nil)
)
