package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions      *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	featureFallbacks *prometheus.CounterVec
	sinkErrors       *prometheus.CounterVec
	backtestRounds   *prometheus.GaugeVec
	backtestWinRate  *prometheus.GaugeVec
}

var (
	recorder     *Recorder
	recorderOnce sync.Once
)

// New returns the process-wide recorder; collectors register once.
func New() *Recorder {
	recorderOnce.Do(func() {
		recorder = &Recorder{
			predictions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tokenrank_predictions_total",
					Help: "Prediction runs by strategy and outcome",
				},
				[]string{"strategy", "outcome"},
			),
			stageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tokenrank_pipeline_stage_duration_seconds",
					Help:    "Duration of prediction pipeline stages in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"stage"},
			),
			featureFallbacks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tokenrank_feature_fallbacks_total",
					Help: "Feature values that fell back to a neutral or default value",
				},
				[]string{"feature"},
			),
			sinkErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tokenrank_sink_errors_total",
					Help: "Result sink write failures",
				},
				[]string{"sink"},
			),
			backtestRounds: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tokenrank_backtest_rounds",
					Help: "Rounds evaluated by the last backtest of a strategy",
				},
				[]string{"strategy"},
			),
			backtestWinRate: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tokenrank_backtest_win_rate",
					Help: "Win rate of the last backtest of a strategy",
				},
				[]string{"strategy"},
			),
		}
	})
	return recorder
}

func (r *Recorder) RecordPrediction(strategy, outcome string) {
	r.predictions.WithLabelValues(strategy, outcome).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RecordFeatureFallback(feature string) {
	r.featureFallbacks.WithLabelValues(feature).Inc()
}

func (r *Recorder) RecordSinkError(sink string) {
	r.sinkErrors.WithLabelValues(sink).Inc()
}

func (r *Recorder) RecordBacktest(strategy string, rounds int, winRate float64) {
	r.backtestRounds.WithLabelValues(strategy).Set(float64(rounds))
	r.backtestWinRate.WithLabelValues(strategy).Set(winRate)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordPrediction(string, string)     {}
func (Nop) ObserveStage(string, time.Duration)  {}
func (Nop) RecordFeatureFallback(string)        {}
func (Nop) RecordSinkError(string)              {}
func (Nop) RecordBacktest(string, int, float64) {}
