package main

import (
	"fmt"
	"time"

	"TokenRank/internal/di"
	"TokenRank/internal/domain/models"
	"TokenRank/pkg/util"

	"github.com/spf13/cobra"
)

var (
	predictSymbols  string
	predictRoundID  string
	predictAt       string
	predictStrategy string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Rank a set of symbols once",
	Long: `Rank a set of symbols with the configured market data and features.

Examples:
  tokenrank predict --symbols PEPE,WIF,BONK
  tokenrank predict --symbols PEPE,WIF --at 2025-03-01T12:00:00Z --strategy momentum`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictSymbols, "symbols", "", "comma separated symbols to rank")
	predictCmd.Flags().StringVar(&predictRoundID, "round", "", "round id recorded with the prediction")
	predictCmd.Flags().StringVar(&predictAt, "at", "", "prediction time, RFC3339 or unix seconds (default now)")
	predictCmd.Flags().StringVar(&predictStrategy, "strategy", "", "strategy name (default from config)")
	_ = predictCmd.MarkFlagRequired("symbols")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	at := time.Now().UTC()
	if predictAt != "" {
		t, ok := util.ParseTime(predictAt)
		if !ok {
			return fmt.Errorf("--at must be RFC3339 or a unix timestamp, got %q", predictAt)
		}
		at = t
	}
	symbols := util.NormalizeSymbols(util.SplitCSV(predictSymbols))
	if len(symbols) == 0 {
		return fmt.Errorf("--symbols cannot be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	factory, cleanup, err := di.InitializePipelineFactory(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	pipeline, err := factory.ForStrategy(predictStrategy)
	if err != nil {
		return err
	}
	results := pipeline.Predict(commandContext(cmd), models.PredictRequest{
		Symbols:   symbols,
		Timestamp: at,
		RoundID:   predictRoundID,
	})
	return printJSON(models.PredictHTTPResponse{
		RoundID:   predictRoundID,
		Strategy:  pipeline.Strategy(),
		Timestamp: at,
		Results:   results,
	})
}
