// Package marketdata loads bar and tick histories from CSV files and
// resamples ticks into fixed-timeframe bars.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"shockflip-lab/internal/domain"
)

// ErrMissingColumn indicates a CSV file without a required column under any
// accepted alias. This is a fatal pre-run error.
var ErrMissingColumn = errors.New("required column missing")

// Column aliases accepted per logical field, checked in order against
// lowercased header names.
var (
	timestampAliases = []string{"timestamp", "ts", "open_time", "time"}
	buyQtyAliases    = []string{"buy_qty", "buy_volume", "taker_buy_volume"}
	sellQtyAliases   = []string{"sell_qty", "sell_volume", "taker_sell_volume"}
)

// LoadBarsCSV reads a bar history from a CSV file. OHLC columns and a
// timestamp column are required; volume, buy_qty and sell_qty default to 0
// when absent. Bars are returned sorted by timestamp ascending.
func LoadBarsCSV(path, symbol, timeframe string) (*domain.BarSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()

	bars, err := readBars(f)
	if err != nil {
		return nil, fmt.Errorf("read bars csv %s: %w", path, err)
	}
	return &domain.BarSeries{Symbol: symbol, Timeframe: timeframe, Bars: bars}, nil
}

func readBars(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)

	tsIdx, err := requireColumn(cols, timestampAliases...)
	if err != nil {
		return nil, err
	}
	openIdx, err := requireColumn(cols, "open")
	if err != nil {
		return nil, err
	}
	highIdx, err := requireColumn(cols, "high")
	if err != nil {
		return nil, err
	}
	lowIdx, err := requireColumn(cols, "low")
	if err != nil {
		return nil, err
	}
	closeIdx, err := requireColumn(cols, "close")
	if err != nil {
		return nil, err
	}
	volIdx := optionalColumn(cols, "volume", "vol")
	buyIdx := optionalColumn(cols, buyQtyAliases...)
	sellIdx := optionalColumn(cols, sellQtyAliases...)

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTimestampMs(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := domain.Bar{TimestampMs: ts}
		if bar.Open, err = parseFloat(record, openIdx); err != nil {
			return nil, fmt.Errorf("line %d open: %w", line, err)
		}
		if bar.High, err = parseFloat(record, highIdx); err != nil {
			return nil, fmt.Errorf("line %d high: %w", line, err)
		}
		if bar.Low, err = parseFloat(record, lowIdx); err != nil {
			return nil, fmt.Errorf("line %d low: %w", line, err)
		}
		if bar.Close, err = parseFloat(record, closeIdx); err != nil {
			return nil, fmt.Errorf("line %d close: %w", line, err)
		}
		if bar.Volume, err = parseOptionalFloat(record, volIdx); err != nil {
			return nil, fmt.Errorf("line %d volume: %w", line, err)
		}
		if bar.BuyQty, err = parseOptionalFloat(record, buyIdx); err != nil {
			return nil, fmt.Errorf("line %d buy_qty: %w", line, err)
		}
		if bar.SellQty, err = parseOptionalFloat(record, sellIdx); err != nil {
			return nil, fmt.Errorf("line %d sell_qty: %w", line, err)
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].TimestampMs < bars[j].TimestampMs })
	return bars, nil
}

// indexColumns maps lowercased header names to their positions.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func requireColumn(cols map[string]int, aliases ...string) (int, error) {
	for _, a := range aliases {
		if idx, ok := cols[a]; ok {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingColumn, aliases[0])
}

func optionalColumn(cols map[string]int, aliases ...string) int {
	for _, a := range aliases {
		if idx, ok := cols[a]; ok {
			return idx
		}
	}
	return -1
}

// parseTimestampMs parses a numeric timestamp. Values below 1e12 are taken
// as seconds and scaled to milliseconds.
func parseTimestampMs(s string) (int64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}
	if math.Abs(v) < 1e12 {
		v *= 1000
	}
	return int64(v), nil
}

func parseFloat(record []string, idx int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parseOptionalFloat(record []string, idx int) (float64, error) {
	if idx < 0 || idx >= len(record) || strings.TrimSpace(record[idx]) == "" {
		return 0, nil
	}
	return parseFloat(record, idx)
}
