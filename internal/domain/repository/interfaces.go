package repository

import (
	"context"
	"time"

	"TokenRank/internal/domain/models"
)

// MarketDataProvider supplies per-round snapshots. Symbols without data may be omitted.
type MarketDataProvider interface {
	FetchSnapshots(ctx context.Context, symbols []string, at time.Time) ([]models.MarketSnapshot, error)
}

// PriceHistoryStore is the read side of per-minute prices.
type PriceHistoryStore interface {
	// LatestAt returns the newest sample at or before t.
	LatestAt(ctx context.Context, symbol string, t time.Time) (models.PriceSample, bool, error)
	Range(ctx context.Context, symbol string, from, to time.Time, order SortOrder) ([]models.PriceSample, error)
}

// PriceWriter is the ingestion side of per-minute prices.
type PriceWriter interface {
	SavePrices(ctx context.Context, samples []models.PriceSample) error
}

// RatingStore reads Elo ratings and recent finishing ranks.
type RatingStore interface {
	Ratings(ctx context.Context, symbols []string) (map[string]float64, error)
	// RecentRanks returns ranks newest first.
	RecentRanks(ctx context.Context, symbol string, limit int) ([]int, error)
}

type OutcomeStore interface {
	// GetActualResult returns nil when the round has no settled outcome.
	GetActualResult(ctx context.Context, roundID string) (*models.ActualResult, error)
}

// RoundStore adds round listing and settlement writes to OutcomeStore.
type RoundStore interface {
	OutcomeStore
	ListRounds(ctx context.Context, limit int) ([]models.HistoricalRound, error)
	SaveSettlement(ctx context.Context, s models.Settlement) error
}

// ResultSink is append-only.
type ResultSink interface {
	Write(ctx context.Context, records []models.PredictionRecord) error
}

type ReportStore interface {
	SaveReport(ctx context.Context, r models.StoredReport) error
}

type Metrics interface {
	RecordPrediction(strategy, outcome string)
	ObserveStage(stage string, d time.Duration)
	RecordFeatureFallback(feature string)
	RecordSinkError(sink string)
	RecordBacktest(strategy string, rounds int, winRate float64)
}
