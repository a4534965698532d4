package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"forexbot/internal/domain"
)

var barHeader = []string{"time", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bars to filename, replacing it.
func WriteBarsToCSV(bars []*domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteBars(file, bars)
}

// WriteBars writes a header row followed by one row per bar.
func WriteBars(w io.Writer, bars []*domain.Bar) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		err := writer.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBarsFromCSV loads bars written by WriteBarsToCSV.
func ReadBarsFromCSV(filename string) ([]*domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadBars(file)
}

// ReadBars parses a header row followed by bar rows. Rows must be in time order.
func ReadBars(r io.Reader) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(barHeader)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	bars := make([]*domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		t, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q: %w", line, rec[0], err)
		}
		var values [5]float64
		for j := range values {
			if values[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", line, barHeader[j+1], rec[j+1], err)
			}
		}
		if len(bars) > 0 && !t.After(bars[len(bars)-1].Time) {
			return nil, fmt.Errorf("line %d: bar time %s is not after the previous bar", line, rec[0])
		}
		bars = append(bars, &domain.Bar{
			Time:   t,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}
	return bars, nil
}
