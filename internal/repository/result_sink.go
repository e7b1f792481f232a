package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	pkgch "TokenRank/pkg/clickhouse"
	pkgkafka "TokenRank/pkg/kafka"
)

// ClickHouseResultSink appends prediction records to prediction_results.
// Feature, weight and normalization maps are stored as JSON strings.
type ClickHouseResultSink struct {
	db *sql.DB
}

func NewClickHouseResultSink(ch *pkgch.Client) *ClickHouseResultSink {
	return &ClickHouseResultSink{db: ch.DB()}
}

func (s *ClickHouseResultSink) Write(ctx context.Context, records []models.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*9)
	for _, r := range records {
		features, err := json.Marshal(r.Features)
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		weights, err := json.Marshal(r.Weights)
		if err != nil {
			return fmt.Errorf("encode weights: %w", err)
		}
		norms, err := json.Marshal(r.Normalization)
		if err != nil {
			return fmt.Errorf("encode normalization: %w", err)
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.RoundID, r.Symbol, r.Rank, r.Score, r.Strategy,
			string(features), string(weights), string(norms), r.PredictedAt.UTC())
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (round_id, symbol, rank, score, strategy, features, weights, normalization, predicted_at) VALUES %s",
		tablePredictions, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert predictions: %w", err)
	}
	return nil
}

// BatchPublisher is the slice of pkg/kafka.Producer the publisher needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaResultPublisher publishes one message per record, keyed by round id.
type KafkaResultPublisher struct {
	producer BatchPublisher
	topic    string
}

func NewKafkaResultPublisher(producer BatchPublisher, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Write(ctx context.Context, records []models.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{
			Key: r.RoundID,
			Value: map[string]interface{}{
				"round_id":      r.RoundID,
				"symbol":        r.Symbol,
				"rank":          r.Rank,
				"score":         r.Score,
				"strategy":      r.Strategy,
				"features":      r.Features,
				"weights":       r.Weights,
				"normalization": r.Normalization,
				"predicted_at":  r.PredictedAt.UTC(),
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []domrepo.ResultSink

func (m MultiSink) Write(ctx context.Context, records []models.PredictionRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) Write(context.Context, []models.PredictionRecord) error { return nil }

var (
	_ domrepo.ResultSink = (*ClickHouseResultSink)(nil)
	_ domrepo.ResultSink = (*KafkaResultPublisher)(nil)
	_ domrepo.ResultSink = MultiSink(nil)
	_ domrepo.ResultSink = NopSink{}
)
