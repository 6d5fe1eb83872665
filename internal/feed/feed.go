// Package feed assembles price frames for the pipeline, either from the
// local bar store or from wide CSV files. Alignment and forward-filling of
// the resulting frames happen downstream in the series package.
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
)

// LoadPrices reads close prices for the given symbols from the bar store and
// assembles them on the union of all observed dates, sorted ascending. A
// symbol with no observation on some date gets NaN there. Symbols that yield
// no bars at all are returned in failed and left out of the frame; the call
// errors only when nothing could be loaded.
func LoadPrices(ctx context.Context, bars store.BarStore, market domain.Market,
	symbols []string, start, end time.Time) (*series.Frame, []string, error) {

	closes := make(map[string]map[int64]float64, len(symbols))
	dateSet := make(map[int64]time.Time)
	var failed []string

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rows, err := bars.ReadBars(ctx, market, sym, start, end)
		if err != nil || len(rows) == 0 {
			failed = append(failed, sym)
			continue
		}
		obs := make(map[int64]float64, len(rows))
		for _, b := range rows {
			ts := b.Timestamp.UTC()
			key := ts.UnixNano()
			obs[key] = b.Close
			dateSet[key] = ts
		}
		closes[sym] = obs
	}

	if len(closes) == 0 {
		return nil, failed, domain.Validationf("no bars loaded for any of %d symbols", len(symbols))
	}

	keys := make([]int64, 0, len(dateSet))
	for k := range dateSet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		dates[i] = dateSet[k]
	}

	cols := make(map[string][]float64, len(closes))
	for sym, obs := range closes {
		col := make([]float64, len(keys))
		for i, k := range keys {
			if v, ok := obs[k]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		cols[sym] = col
	}

	frame, err := series.NewFrame(dates, cols)
	if err != nil {
		return nil, failed, err
	}
	return frame, failed, nil
}

// LoadCSV reads a wide CSV price file: a "date" header column followed by
// one column per symbol, dates formatted 2006-01-02 in ascending order, and
// empty cells meaning missing observations.
func LoadCSV(path string) (*series.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, domain.Validationf("csv %s has no data rows", path)
	}

	header := records[0]
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, domain.Validationf("csv %s must have a date column followed by symbol columns", path)
	}
	symbols := header[1:]

	rows := records[1:]
	dates := make([]time.Time, len(rows))
	cols := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		if _, dup := cols[sym]; dup {
			return nil, domain.Validationf("csv %s has duplicate column %s", path, sym)
		}
		cols[sym] = make([]float64, len(rows))
	}

	for i, rec := range rows {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, domain.Validationf("csv %s row %d: bad date %q", path, i+2, rec[0])
		}
		dates[i] = d
		for j, sym := range symbols {
			cell := strings.TrimSpace(rec[j+1])
			if cell == "" {
				cols[sym][i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, domain.Validationf("csv %s row %d: bad value %q for %s", path, i+2, cell, sym)
			}
			cols[sym][i] = v
		}
	}

	return series.NewFrame(dates, cols)
}
