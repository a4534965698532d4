package backtesting

import (
	"math"
	"sort"
)

// Result holds the results of a backtest
type Result struct {
	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	TotalProfit          float64
	GrossProfit          float64
	GrossLoss            float64 // Positive sum of losing trades
	ProfitFactor         float64 // GrossProfit / GrossLoss, 0 without losing trades
	Expectancy           float64 // Average profit per trade
	MaxDrawdown          float64 // Largest peak-to-trough fall of the balance, as a fraction of the peak
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	FinalBalance         float64
	MonthlyReturns       map[string]float64
	LimitSkips           int // Bars on which the daily loss limit blocked trading
	Trades               []*Trade
}

// AnalyzePerformance calculates performance metrics from closed trades.
// A trade with zero profit counts as a loss.
func AnalyzePerformance(trades []*Trade, initialBalance float64) *Result {
	result := &Result{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		Trades:         trades,
	}
	if len(trades) == 0 {
		return result
	}

	// Balance moves in exit order
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})

	balance := initialBalance
	peak := initialBalance
	var wins, losses int
	for _, t := range trades {
		result.TotalTrades++
		if t.Profit > 0 {
			result.WinningTrades++
			result.GrossProfit += t.Profit
			wins++
			losses = 0
		} else {
			result.LosingTrades++
			result.GrossLoss -= t.Profit
			losses++
			wins = 0
		}
		if wins > result.MaxConsecutiveWins {
			result.MaxConsecutiveWins = wins
		}
		if losses > result.MaxConsecutiveLosses {
			result.MaxConsecutiveLosses = losses
		}

		balance += t.Profit
		result.TotalProfit += t.Profit
		result.MonthlyReturns[t.ExitTime.Format("2006-01")] += t.Profit

		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			result.MaxDrawdown = math.Max(result.MaxDrawdown, (peak-balance)/peak)
		}
	}

	result.FinalBalance = balance
	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	result.Expectancy = result.TotalProfit / float64(result.TotalTrades)
	if result.GrossLoss > 0 {
		result.ProfitFactor = result.GrossProfit / result.GrossLoss
	}
	return result
}
