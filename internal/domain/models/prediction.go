package models

import "time"

// RankedResult is one entry of a prediction output; rank 1 is the best.
type RankedResult struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// AggregateScore is the weighted score of one symbol with its per-feature
// normalized contributions.
type AggregateScore struct {
	Symbol     string             `json:"symbol"`
	FinalScore float64            `json:"final_score"`
	Normalized map[string]float64 `json:"normalized"`
}

// FeatureValue is what gets persisted per feature of a ranked symbol.
type FeatureValue struct {
	Raw        float64 `json:"raw"`
	Normalized float64 `json:"normalized"`
	Fallback   bool    `json:"fallback,omitempty"`
}

// PredictionRecord is the unit written to result sinks.
type PredictionRecord struct {
	RoundID       string                  `json:"round_id"`
	Symbol        string                  `json:"symbol"`
	Rank          int                     `json:"rank"`
	Score         float64                 `json:"score"`
	Strategy      string                  `json:"strategy"`
	Features      map[string]FeatureValue `json:"features"`
	Weights       map[string]float64      `json:"weights"`
	Normalization map[string]string       `json:"normalization"`
	PredictedAt   time.Time               `json:"predicted_at"`
}

// PredictRequest is the input of one prediction.
type PredictRequest struct {
	Symbols   []string
	Timestamp time.Time
	RoundID   string
	// Prices optionally preloads per-minute history, see History.
	Prices map[string][]PriceSample
}
