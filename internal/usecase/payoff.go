package usecase

import (
	"fmt"

	"TokenRank/internal/domain/models"
)

const (
	PayoffBinary     = "binary"
	PayoffRankGraded = "rank_graded"
)

// PayoffModel prices one round given the ranking and the settled outcome.
type PayoffModel interface {
	Name() string
	Payoff(predicted []models.RankedResult, actual *models.ActualResult) float64
}

// BinaryPayoff pays +1 when the top pick won and -1 otherwise.
type BinaryPayoff struct{}

func (BinaryPayoff) Name() string { return PayoffBinary }

func (BinaryPayoff) Payoff(predicted []models.RankedResult, actual *models.ActualResult) float64 {
	if len(predicted) == 0 || actual == nil {
		return 0
	}
	if predicted[0].Symbol == actual.Winner {
		return 1
	}
	return -1
}

// RankGradedPayoff pays +1 for a win, 0 for a 2nd or 3rd place finish and -1 below.
// Without rankings it behaves like BinaryPayoff.
type RankGradedPayoff struct{}

func (RankGradedPayoff) Name() string { return PayoffRankGraded }

func (RankGradedPayoff) Payoff(predicted []models.RankedResult, actual *models.ActualResult) float64 {
	if len(predicted) == 0 || actual == nil {
		return 0
	}
	r, ok := actual.Rankings[predicted[0].Symbol]
	if !ok {
		return BinaryPayoff{}.Payoff(predicted, actual)
	}
	switch {
	case r == 1:
		return 1
	case r <= 3:
		return 0
	default:
		return -1
	}
}

func NewPayoffModel(name string) (PayoffModel, error) {
	switch name {
	case "", PayoffBinary:
		return BinaryPayoff{}, nil
	case PayoffRankGraded:
		return RankGradedPayoff{}, nil
	default:
		return nil, fmt.Errorf("unknown payoff model %q", name)
	}
}
