package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instrument describes the per-symbol conventions the bot cannot read from the terminal.
type Instrument struct {
	Symbol        string  `yaml:"symbol"`
	PipFactor     float64 `yaml:"pip_factor" validate:"gt=0"` // Points per pip (10 on 5-digit and 3-digit quotes)
	LotUnits      float64 `yaml:"lot_units" validate:"gt=0"`  // Base units in one standard lot
	QuoteCurrency string  `yaml:"quote_currency"`
}

// Instruments is a symbol-keyed instrument table.
type Instruments map[string]Instrument

type instrumentsFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// DefaultInstruments returns the built-in table for the major pairs.
func DefaultInstruments() Instruments {
	table := Instruments{}
	for _, in := range []Instrument{
		{Symbol: "EUR_USD", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "USD"},
		{Symbol: "GBP_USD", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "USD"},
		{Symbol: "AUD_USD", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "USD"},
		{Symbol: "NZD_USD", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "USD"},
		{Symbol: "USD_CAD", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "CAD"},
		{Symbol: "USD_CHF", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "CHF"},
		{Symbol: "USD_JPY", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "JPY"},
		{Symbol: "EUR_JPY", PipFactor: 10, LotUnits: 100000, QuoteCurrency: "JPY"},
	} {
		table[in.Symbol] = in
	}
	return table
}

// LoadInstruments reads an instrument table from a YAML file of the form
//
//	instruments:
//	  - symbol: XAU_USD
//	    pip_factor: 10
//	    lot_units: 100
func LoadInstruments(path string) (Instruments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}
	var f instrumentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	table := Instruments{}
	for i, in := range f.Instruments {
		if in.Symbol == "" {
			return nil, fmt.Errorf("instrument #%d: symbol is required", i+1)
		}
		if in.PipFactor <= 0 || in.LotUnits <= 0 {
			return nil, fmt.Errorf("instrument %s: pip_factor and lot_units must be positive", in.Symbol)
		}
		table[normalizeSymbol(in.Symbol)] = in
	}
	return table, nil
}

// Merge returns a copy of t with the entries of other added or replaced.
func (t Instruments) Merge(other Instruments) Instruments {
	out := make(Instruments, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Lookup returns the entry for symbol, or the standard 5-digit FX convention when the
// symbol is not in the table.
func (t Instruments) Lookup(symbol string) Instrument {
	if in, ok := t[normalizeSymbol(symbol)]; ok {
		in.Symbol = symbol
		return in
	}
	return Instrument{Symbol: symbol, PipFactor: 10, LotUnits: 100000}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", "_"))
}
