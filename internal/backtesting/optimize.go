package backtesting

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name string
	Min  float64
	Max  float64
	Step float64
}

// StrategyFactory builds a strategy for one parameter combination.
type StrategyFactory func(params map[string]float64) (ports.Strategy, error)

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Backtest        Config
	Factory         StrategyFactory
	ScoreFunction   func(*Result) float64 // Defaults to DefaultScoreFunction
	Workers         int                   // Defaults to GOMAXPROCS
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Result     *Result
	Score      float64
}

// Optimize backtests every parameter combination and returns the results best first.
// Combinations the factory rejects or that have too few bars are left out.
func Optimize(ctx context.Context, bars []*domain.Bar, config OptimizerConfig) ([]OptimizationResult, error) {
	if config.Factory == nil {
		return nil, fmt.Errorf("strategy factory is required: %w", ports.ErrInvalidRequest)
	}
	for _, r := range config.ParameterRanges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("invalid range for %s: %w", r.Name, ports.ErrInvalidRequest)
		}
	}
	score := config.ScoreFunction
	if score == nil {
		score = DefaultScoreFunction
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	combinations := generateParameterCombinations(config.ParameterRanges)
	results := make([]*OptimizationResult, len(combinations))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := combinations[i]
				strategy, err := config.Factory(params)
				if err != nil {
					continue
				}
				result, err := Backtest(ctx, strategy, bars, config.Backtest)
				if err != nil {
					continue
				}
				results[i] = &OptimizationResult{Parameters: params, Result: result, Score: score(result)}
			}
		}()
	}

feed:
	for i := range combinations {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]OptimizationResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// generateParameterCombinations generates all possible parameter combinations
func generateParameterCombinations(ranges []ParameterRange) []map[string]float64 {
	combinations := []map[string]float64{{}}
	for _, r := range ranges {
		var next []map[string]float64
		steps := int(math.Floor((r.Max-r.Min)/r.Step + 1e-9))
		for _, base := range combinations {
			for k := 0; k <= steps; k++ {
				combination := make(map[string]float64, len(base)+1)
				for name, v := range base {
					combination[name] = v
				}
				combination[r.Name] = r.Min + float64(k)*r.Step
				next = append(next, combination)
			}
		}
		combinations = next
	}
	return combinations
}

// DefaultScoreFunction weighs win rate, profit factor, drawdown and return on the start balance.
func DefaultScoreFunction(r *Result) float64 {
	if r.TotalTrades == 0 {
		return 0
	}
	initial := r.FinalBalance - r.TotalProfit
	roi := 0.0
	if initial > 0 {
		roi = r.TotalProfit / initial
	}

	score := 0.0
	score += r.WinRate * 0.3
	score += math.Min(r.ProfitFactor, 10) * 0.2
	score += (1 - r.MaxDrawdown) * 0.2
	score += roi * 0.3
	return score
}
