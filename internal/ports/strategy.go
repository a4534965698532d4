package ports

import (
	"context"

	"forexbot/internal/domain"
)

// Strategy defines the interface for entry-signal strategies.
type Strategy interface {
	// RequiredDataPoints returns the minimum number of bars needed for the latest indicator values.
	RequiredDataPoints() int

	// Evaluate computes the latest indicator values over bars and the entry signal they produce.
	Evaluate(ctx context.Context, bars []*domain.Bar) (*domain.IndicatorSnapshot, error)
}
