package models

import "time"

// StrategyConfig names a weights/normalization combination plus free parameters.
type StrategyConfig struct {
	Name          string                 `json:"name"`
	Weights       map[string]float64     `json:"weights"`
	Normalization map[string]string      `json:"normalization"`
	Params        map[string]interface{} `json:"params,omitempty"`
}

// Clone deep-copies the maps so variants never share state.
func (s StrategyConfig) Clone() StrategyConfig {
	out := StrategyConfig{
		Name:          s.Name,
		Weights:       make(map[string]float64, len(s.Weights)),
		Normalization: make(map[string]string, len(s.Normalization)),
		Params:        make(map[string]interface{}, len(s.Params)),
	}
	for k, v := range s.Weights {
		out.Weights[k] = v
	}
	for k, v := range s.Normalization {
		out.Normalization[k] = v
	}
	for k, v := range s.Params {
		out.Params[k] = v
	}
	return out
}

// HistoricalRound is a settled round replayed by a backtest.
type HistoricalRound struct {
	RoundID   string    `json:"round_id"`
	Symbols   []string  `json:"symbols"`
	Timestamp time.Time `json:"timestamp"`
}

// ActualResult is the settled outcome of a round.
type ActualResult struct {
	RoundID     string         `json:"round_id"`
	Winner      string         `json:"winner"`
	Loser       string         `json:"loser"`
	WinnerScore float64        `json:"winner_score"`
	LoserScore  float64        `json:"loser_score"`
	Rankings    map[string]int `json:"rankings,omitempty"`
}

// BacktestRound is the per-round evaluation record.
type BacktestRound struct {
	RoundID          string    `json:"round_id"`
	Timestamp        time.Time `json:"timestamp"`
	PredictedRanking []string  `json:"predicted_ranking"`
	ActualWinner     string    `json:"actual_winner"`
	// ActualRank is where the predicted winner finished; 0 when rankings are unknown.
	ActualRank int     `json:"actual_rank,omitempty"`
	Players    int     `json:"players,omitempty"`
	PnL        float64 `json:"pnl"`
}

// PredictedWinner is the top of the predicted ranking.
func (r BacktestRound) PredictedWinner() string {
	if len(r.PredictedRanking) == 0 {
		return ""
	}
	return r.PredictedRanking[0]
}

// Hit reports whether the predicted winner won.
func (r BacktestRound) Hit() bool {
	return r.PredictedWinner() != "" && r.PredictedWinner() == r.ActualWinner
}

type BacktestReport struct {
	Strategy             string  `json:"strategy"`
	TotalRounds          int     `json:"total_rounds"`
	InputRounds          int     `json:"input_rounds"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"`
	BreakevenRate        float64 `json:"breakeven_rate"`
	Top3Rate             float64 `json:"top3_rate"`
	TotalProfit          float64 `json:"total_profit"`
	ProfitRate           float64 `json:"profit_rate"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`
	Volatility           float64 `json:"volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxProfit            float64 `json:"max_profit"`
	MaxLoss              float64 `json:"max_loss"`
	AvgProfitLossRatio   float64 `json:"avg_profit_loss_ratio"`
	ProfitFactor         float64 `json:"profit_factor"`
	Expectancy           float64 `json:"expectancy"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	EquityCurve []float64       `json:"equity_curve,omitempty"`
	Rounds      []BacktestRound `json:"rounds,omitempty"`
}

// GridAxis is one swept parameter. Axes keep their order.
type GridAxis struct {
	Name   string        `json:"name" validate:"required"`
	Values []interface{} `json:"values" validate:"required,min=1"`
}

type GridSearchResult struct {
	Parameters map[string]interface{} `json:"parameters"`
	Strategy   StrategyConfig         `json:"strategy"`
	Metrics    BacktestReport         `json:"metrics"`
	Promotable bool                   `json:"promotable"`
}

// Settlement is what the round feed reports once a round finished.
type Settlement struct {
	RoundID   string
	StartedAt time.Time
	SettledAt time.Time
	Results   []SymbolResult
}

type SymbolResult struct {
	Symbol string
	Rank   int
	Value  float64
}

// StoredReport is a persisted backtest or grid run.
type StoredReport struct {
	ID         string
	Kind       string
	Strategy   string
	Parameters map[string]interface{}
	Payload    interface{}
	CreatedAt  time.Time
}
