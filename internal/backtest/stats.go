package backtest

import "math"

// CalculateStats computes round-trip statistics. Open trades are ignored.
func CalculateStats(trades []Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var stats Stats
	var totalReturn, grossWin, grossLoss, hours float64
	var bars int
	stats.BestTrade = math.Inf(-1)
	stats.WorstTrade = math.Inf(1)

	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		stats.TotalTrades++
		totalReturn += t.Return
		hours += t.DurationHours
		bars += t.DurationBars
		if t.IsWin() {
			stats.WinningTrades++
			grossWin += t.Return
		} else {
			stats.LosingTrades++
			grossLoss -= t.Return
		}
		stats.BestTrade = math.Max(stats.BestTrade, t.Return)
		stats.WorstTrade = math.Min(stats.WorstTrade, t.Return)
		switch t.ExitReason {
		case TriggerStopLoss:
			stats.StopLossExits++
		case TriggerTakeProfit:
			stats.TakeProfitExits++
		}
	}

	if stats.TotalTrades == 0 {
		return Stats{}
	}

	n := float64(stats.TotalTrades)
	stats.WinRate = float64(stats.WinningTrades) / n * 100
	stats.AverageReturn = totalReturn / n
	stats.AvgDurationHours = hours / n
	stats.AvgDurationBars = float64(bars) / n
	if grossLoss > 0 {
		stats.ProfitFactor = grossWin / grossLoss
	}
	return stats
}
