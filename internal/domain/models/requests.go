package models

import "time"

// Requests for the prediction HTTP endpoints.

type PredictHTTPRequest struct {
	Symbols   []string `json:"symbols" validate:"required,min=1,max=50,dive,required"`
	RoundID   string   `json:"round_id"`
	Timestamp string   `json:"timestamp"`
	Strategy  string   `json:"strategy"`
}

type PredictHTTPResponse struct {
	RoundID   string         `json:"round_id,omitempty"`
	Strategy  string         `json:"strategy"`
	Timestamp time.Time      `json:"timestamp"`
	Results   []RankedResult `json:"results"`
}

type BacktestHTTPRequest struct {
	Strategy string     `json:"strategy"`
	Limit    int        `json:"limit" default:"500" validate:"gte=1,lte=10000"`
	Grid     []GridAxis `json:"grid" validate:"omitempty,dive"`
	Async    bool       `json:"async"`
	// IncludeRounds keeps per-round records in the response.
	IncludeRounds bool `json:"include_rounds"`
}

type StrategyView struct {
	Name          string             `json:"name"`
	Default       bool               `json:"default"`
	Weights       map[string]float64 `json:"weights"`
	Normalization map[string]string  `json:"normalization"`
}

const (
	JobKindBacktest = "backtest"
	JobKindGrid     = "grid_search"

	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// BacktestJobPayload is what the queue carries for an async run.
type BacktestJobPayload struct {
	JobID    string     `json:"job_id"`
	Kind     string     `json:"kind"`
	Strategy string     `json:"strategy"`
	Limit    int        `json:"limit"`
	Grid     []GridAxis `json:"grid,omitempty"`
}

type JobStatus struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	ReportID  string             `json:"report_id,omitempty"`
	Report    *BacktestReport    `json:"report,omitempty"`
	Results   []GridSearchResult `json:"results,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}
