package usecase

import (
	"math"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/services/stats"
)

// ComputeReport derives the aggregate metrics from evaluated rounds.
// inputRounds is the number of rounds the run was given, evaluated or not.
func ComputeReport(strategy string, inputRounds int, rounds []models.BacktestRound) models.BacktestReport {
	report := models.BacktestReport{Strategy: strategy, InputRounds: inputRounds}
	n := len(rounds)
	if n == 0 {
		return report
	}
	report.TotalRounds = n

	pnls := make([]float64, n)
	var (
		wins, losses, breakeven, top3 int
		grossProfit, grossLoss        float64
		posCount, negCount            int
		downsideSq                    float64
		winStreak, lossStreak         int
	)
	report.MaxProfit = math.Inf(-1)
	report.MaxLoss = math.Inf(1)

	for i, r := range rounds {
		pnls[i] = r.PnL
		report.MaxProfit = math.Max(report.MaxProfit, r.PnL)
		report.MaxLoss = math.Min(report.MaxLoss, r.PnL)

		switch {
		case r.PnL > 0:
			grossProfit += r.PnL
			posCount++
		case r.PnL < 0:
			grossLoss += r.PnL
			negCount++
			downsideSq += r.PnL * r.PnL
			losses++
		}

		if r.Hit() {
			wins++
			winStreak++
			lossStreak = 0
		} else {
			lossStreak++
			winStreak = 0
		}
		if winStreak > report.MaxConsecutiveWins {
			report.MaxConsecutiveWins = winStreak
		}
		if lossStreak > report.MaxConsecutiveLosses {
			report.MaxConsecutiveLosses = lossStreak
		}

		if r.ActualRank > 0 && r.Players > 0 {
			if float64(r.ActualRank) <= float64(r.Players)/2 {
				breakeven++
			}
			if r.ActualRank <= 3 {
				top3++
			}
		} else if r.Hit() {
			breakeven++
			top3++
		}
	}

	fn := float64(n)
	report.Wins = wins
	report.Losses = losses
	report.WinRate = float64(wins) / fn
	report.BreakevenRate = float64(breakeven) / fn
	report.Top3Rate = float64(top3) / fn

	report.TotalProfit = grossProfit + grossLoss
	report.ProfitRate = report.TotalProfit / fn
	report.MaxProfit = math.Max(0, report.MaxProfit)
	report.MaxLoss = math.Min(0, report.MaxLoss)

	report.Volatility = stats.PopulationStdDev(pnls)
	mean := stats.Mean(pnls)
	if report.Volatility > 0 {
		report.SharpeRatio = mean / report.Volatility
	}
	if downside := math.Sqrt(downsideSq / fn); downside > 0 {
		report.SortinoRatio = mean / downside
	}

	report.EquityCurve, report.MaxDrawdown = equityCurve(pnls)
	if report.MaxDrawdown > 0 {
		report.CalmarRatio = report.ProfitRate / report.MaxDrawdown
	}

	if negCount > 0 && posCount > 0 {
		avgWin := grossProfit / float64(posCount)
		avgLoss := grossLoss / float64(negCount)
		report.AvgProfitLossRatio = math.Abs(avgWin / avgLoss)
	}
	if grossLoss < 0 {
		report.ProfitFactor = grossProfit / math.Abs(grossLoss)
	}
	if posCount > 0 {
		report.Expectancy += float64(posCount) / fn * (grossProfit / float64(posCount))
	}
	if negCount > 0 {
		report.Expectancy += float64(negCount) / fn * (grossLoss / float64(negCount))
	}

	report.Rounds = rounds
	return report
}

// equityCurve returns cumulative P&L and the largest drop from a running peak
// that starts at zero.
func equityCurve(pnls []float64) ([]float64, float64) {
	curve := make([]float64, len(pnls))
	var cum, peak, worst float64
	for i, p := range pnls {
		cum += p
		curve[i] = cum
		if cum > peak {
			peak = cum
		}
		if dd := cum - peak; dd < worst {
			worst = dd
		}
	}
	return curve, math.Abs(worst)
}
