package main

import (
	"fmt"

	"TokenRank/internal/di"
	"TokenRank/internal/domain/models"
	"TokenRank/pkg/config"

	"github.com/spf13/cobra"
)

var (
	backtestStrategy string
	backtestLimit    int
	backtestRounds   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay settled rounds against a strategy",
	Long: `Replay the latest settled rounds from ClickHouse against a strategy and
print the report.

Examples:
  tokenrank backtest
  tokenrank backtest --strategy momentum --limit 200 --rounds`,
	RunE: runBacktest,
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Grid search backtest.parameter_grid around a strategy",
	RunE:  runGrid,
}

func init() {
	rootCmd.AddCommand(backtestCmd, gridCmd)

	for _, c := range []*cobra.Command{backtestCmd, gridCmd} {
		c.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy name (default from config)")
		c.Flags().IntVar(&backtestLimit, "limit", 0, "number of latest rounds (default backtest.round_limit)")
	}
	backtestCmd.Flags().BoolVar(&backtestRounds, "rounds", false, "include per-round records")
}

func limitOrDefault(cfg *config.Config) int {
	if backtestLimit > 0 {
		return backtestLimit
	}
	return cfg.Backtest.RoundLimit
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := di.InitializeBacktestService(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	report, id, err := svc.Backtest(commandContext(cmd), backtestStrategy, limitOrDefault(cfg))
	if err != nil {
		return err
	}
	if !backtestRounds {
		report.Rounds = nil
	}
	return printJSON(map[string]interface{}{"report_id": id, "report": report})
}

func runGrid(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Backtest.ParameterGrid) == 0 {
		return fmt.Errorf("backtest.parameter_grid is empty")
	}
	grid := make([]models.GridAxis, 0, len(cfg.Backtest.ParameterGrid))
	for _, axis := range cfg.Backtest.ParameterGrid {
		grid = append(grid, models.GridAxis{Name: axis.Name, Values: axis.Values})
	}

	svc, cleanup, err := di.InitializeBacktestService(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	results, id, err := svc.GridSearch(commandContext(cmd), backtestStrategy, limitOrDefault(cfg), grid)
	if err != nil {
		return err
	}
	for i := range results {
		results[i].Metrics.Rounds = nil
	}
	return printJSON(map[string]interface{}{"report_id": id, "results": results})
}
