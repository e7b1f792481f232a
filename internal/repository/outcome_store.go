package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	pkgch "TokenRank/pkg/clickhouse"
	"TokenRank/pkg/logger"
)

// ClickHouseOutcomeStore keeps settled round rankings.
type ClickHouseOutcomeStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewClickHouseOutcomeStore(ch *pkgch.Client, log *logger.Logger) *ClickHouseOutcomeStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &ClickHouseOutcomeStore{db: ch.DB(), log: log}
}

// GetActualResult returns nil when the round has no stored ranks.
func (s *ClickHouseOutcomeStore) GetActualResult(ctx context.Context, roundID string) (*models.ActualResult, error) {
	const q = `
        SELECT symbol, rank, value
        FROM round_results FINAL
        WHERE round_id = ?
        ORDER BY rank ASC, symbol ASC
    `
	rows, err := s.db.QueryContext(ctx, q, roundID)
	if err != nil {
		return nil, fmt.Errorf("round result %s: %w", roundID, err)
	}
	defer rows.Close()

	var res *models.ActualResult
	for rows.Next() {
		var (
			symbol string
			rank   int
			value  float64
		)
		if err := rows.Scan(&symbol, &rank, &value); err != nil {
			return nil, fmt.Errorf("scan round result: %w", err)
		}
		if res == nil {
			res = &models.ActualResult{
				RoundID:     roundID,
				Winner:      symbol,
				WinnerScore: value,
				Rankings:    make(map[string]int),
			}
		}
		res.Rankings[symbol] = rank
		res.Loser, res.LoserScore = symbol, value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return res, nil
}

// ListRounds returns the latest limit settled rounds, oldest first.
// A round's timestamp is when it opened, or when it settled if the open time is unknown.
func (s *ClickHouseOutcomeStore) ListRounds(ctx context.Context, limit int) ([]models.HistoricalRound, error) {
	if limit <= 0 {
		return nil, nil
	}
	const q = `
        SELECT round_id, min(started_at), max(settled_at), arrayStringConcat(arraySort(groupArray(symbol)), ',')
        FROM round_results FINAL
        GROUP BY round_id
        ORDER BY max(settled_at) DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		s.log.Error("clickhouse list rounds error", logger.Int("limit", limit), logger.Error(err))
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistoricalRound, 0, limit)
	for rows.Next() {
		var (
			r                models.HistoricalRound
			started, settled time.Time
			symbols          string
		)
		if err := rows.Scan(&r.RoundID, &started, &settled, &symbols); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.Timestamp = settled.UTC()
		if started.Unix() > 0 {
			r.Timestamp = started.UTC()
		}
		if symbols != "" {
			r.Symbols = strings.Split(symbols, ",")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *ClickHouseOutcomeStore) SaveSettlement(ctx context.Context, st models.Settlement) error {
	if st.RoundID == "" || len(st.Results) == 0 {
		return fmt.Errorf("settlement needs a round id and results")
	}
	values := make([]string, 0, len(st.Results))
	args := make([]interface{}, 0, len(st.Results)*6)
	for _, r := range st.Results {
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, st.RoundID, strings.ToUpper(r.Symbol), r.Rank, r.Value, st.StartedAt.UTC(), st.SettledAt.UTC())
	}
	q := fmt.Sprintf("INSERT INTO %s (round_id, symbol, rank, value, started_at, settled_at) VALUES %s",
		tableRoundResult, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert settlement %s: %w", st.RoundID, err)
	}
	return nil
}

var _ domrepo.RoundStore = (*ClickHouseOutcomeStore)(nil)
