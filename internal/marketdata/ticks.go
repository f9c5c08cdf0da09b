package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"shockflip-lab/internal/domain"
)

// Tick is one executed trade from an exchange feed.
type Tick struct {
	TimestampMs  int64
	Price        float64
	Qty          float64
	IsBuyerMaker bool
}

var (
	priceAliases      = []string{"price", "p"}
	qtyAliases        = []string{"qty", "quantity", "q", "size"}
	buyerMakerAliases = []string{"is_buyer_maker", "buyer_maker", "m"}
)

// LoadTicksCSV reads a tick history from a CSV file. Timestamp, price and
// qty columns are required; is_buyer_maker defaults to false when absent.
// Ticks are returned sorted by timestamp ascending.
func LoadTicksCSV(path string) ([]Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ticks csv: %w", err)
	}
	defer f.Close()

	ticks, err := readTicks(f)
	if err != nil {
		return nil, fmt.Errorf("read ticks csv %s: %w", path, err)
	}
	return ticks, nil
}

func readTicks(r io.Reader) ([]Tick, error) {
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
	priceIdx, err := requireColumn(cols, priceAliases...)
	if err != nil {
		return nil, err
	}
	qtyIdx, err := requireColumn(cols, qtyAliases...)
	if err != nil {
		return nil, err
	}
	makerIdx := optionalColumn(cols, buyerMakerAliases...)

	var ticks []Tick
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var tick Tick
		if tick.TimestampMs, err = parseTimestampMs(record[tsIdx]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if tick.Price, err = parseFloat(record, priceIdx); err != nil {
			return nil, fmt.Errorf("line %d price: %w", line, err)
		}
		if tick.Qty, err = parseFloat(record, qtyIdx); err != nil {
			return nil, fmt.Errorf("line %d qty: %w", line, err)
		}
		if makerIdx >= 0 {
			if tick.IsBuyerMaker, err = parseBool(record[makerIdx]); err != nil {
				return nil, fmt.Errorf("line %d is_buyer_maker: %w", line, err)
			}
		}
		ticks = append(ticks, tick)
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i].TimestampMs < ticks[j].TimestampMs })
	return ticks, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes":
		return true, nil
	case "false", "f", "0", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("bool %q", s)
}

// Resample aggregates ticks into fixed-timeframe bars. Bucket boundaries are
// aligned to the epoch; buckets with no ticks produce no bar. The buyer-maker
// flag marks the aggressor as the seller, so such volume accrues to SellQty.
func Resample(ticks []Tick, timeframeMs int64) []domain.Bar {
	if timeframeMs <= 0 || len(ticks) == 0 {
		return nil
	}

	sorted := make([]Tick, len(ticks))
	copy(sorted, ticks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampMs < sorted[j].TimestampMs })

	var bars []domain.Bar
	var cur *domain.Bar
	for _, t := range sorted {
		bucket := t.TimestampMs - t.TimestampMs%timeframeMs
		if cur == nil || cur.TimestampMs != bucket {
			if cur != nil {
				bars = append(bars, *cur)
			}
			cur = &domain.Bar{
				TimestampMs: bucket,
				Open:        t.Price,
				High:        t.Price,
				Low:         t.Price,
			}
		}
		if t.Price > cur.High {
			cur.High = t.Price
		}
		if t.Price < cur.Low {
			cur.Low = t.Price
		}
		cur.Close = t.Price
		cur.Volume += t.Qty
		if t.IsBuyerMaker {
			cur.SellQty += t.Qty
		} else {
			cur.BuyQty += t.Qty
		}
	}
	bars = append(bars, *cur)
	return bars
}
