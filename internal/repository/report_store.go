package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	pkgch "TokenRank/pkg/clickhouse"
)

// ClickHouseReportStore persists backtest and grid reports as JSON payloads.
type ClickHouseReportStore struct {
	db *sql.DB
}

func NewClickHouseReportStore(ch *pkgch.Client) *ClickHouseReportStore {
	return &ClickHouseReportStore{db: ch.DB()}
}

func (s *ClickHouseReportStore) SaveReport(ctx context.Context, r models.StoredReport) error {
	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (id, kind, strategy, parameters, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)", tableReports)
	if _, err := s.db.ExecContext(ctx, q, r.ID, r.Kind, r.Strategy, string(params), string(payload), r.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

var _ domrepo.ReportStore = (*ClickHouseReportStore)(nil)
