package domain

// Account is the subset of account state the loop consumes.
type Account struct {
	ID       string
	Currency string
	Balance  float64
}

// SymbolInfo holds the instrument metadata used for lot sizing and SL/TP price math.
type SymbolInfo struct {
	Symbol    string
	Digits    int     // Quote precision
	Point     float64 // Minimal price increment
	TickSize  float64 // One tick expressed in pips, e.g. 0.1 for a fractional-pip quote
	TickValue float64 // Value of one tick for one lot
}

// PipValuePerLot returns the monetary value of one lot moving one pip.
func (s *SymbolInfo) PipValuePerLot() float64 {
	if s.TickSize == 0 {
		return 0
	}
	return s.TickValue / s.TickSize
}
