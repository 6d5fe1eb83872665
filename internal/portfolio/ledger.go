// Package portfolio tracks cash and whole-share holdings through a sequence
// of rebalances, charging proportional transaction costs and recording the
// value path.
package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// Trade is one executed quantity change within a rebalance.
type Trade struct {
	Symbol   string
	DeltaQty int64
	Price    float64
	Notional float64
	Cost     float64
}

// RebalanceEvent records everything that happened in one rebalance call:
// the trades in symbol order, the symbols skipped for unusable prices, the
// total cost charged, and the portfolio value after execution.
type RebalanceEvent struct {
	Date       time.Time
	Trades     []Trade
	Skipped    []string
	TotalCost  float64
	ValueAfter float64
}

// StateRecord is one point on the portfolio value path. Return is
// cumulative against the initial capital.
type StateRecord struct {
	Date   time.Time
	Value  float64
	Cash   float64
	Return float64
}

// Ledger holds cash plus integer share counts. Target quantities truncate
// toward zero, so a rebalance never spends more than the weight allows;
// the remainder stays in cash. Costs are charged at a proportional rate on
// traded notional.
type Ledger struct {
	initialCapital float64
	costRate       float64

	cash      float64
	holdings  map[string]int64
	totalCost float64

	history []StateRecord
	events  []RebalanceEvent
}

// NewLedger starts a ledger fully in cash.
func NewLedger(initialCapital, costRate float64) (*Ledger, error) {
	if !(initialCapital > 0) {
		return nil, domain.Validationf("initial capital must be positive, got %g", initialCapital)
	}
	if costRate < 0 || math.IsNaN(costRate) {
		return nil, domain.Validationf("cost rate must be non-negative, got %g", costRate)
	}
	return &Ledger{
		initialCapital: initialCapital,
		costRate:       costRate,
		cash:           initialCapital,
		holdings:       make(map[string]int64),
	}, nil
}

// Value marks the portfolio at the given prices. Holdings whose price is
// absent, non-finite, or non-positive contribute zero.
func (l *Ledger) Value(prices map[string]float64) float64 {
	v := l.cash
	for sym, qty := range l.holdings {
		if qty == 0 {
			continue
		}
		price, ok := prices[sym]
		if !ok || !usablePrice(price) {
			continue
		}
		v += float64(qty) * price
	}
	return v
}

// Rebalance moves holdings to the target weights at the given prices.
// Weights map to whole-share targets against the current portfolio value.
// Symbols without a usable price are skipped and left untouched; symbols
// not present in weights are also left untouched. Trading cost is charged
// on the absolute traded notional and deducted from cash along with the
// signed notional itself.
func (l *Ledger) Rebalance(date time.Time, weights, prices map[string]float64) RebalanceEvent {
	value := l.Value(prices)
	ev := RebalanceEvent{Date: date}

	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var notional, cost float64
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok || !usablePrice(price) {
			ev.Skipped = append(ev.Skipped, sym)
			continue
		}
		target := int64(weights[sym] * value / price)
		delta := target - l.holdings[sym]
		if delta == 0 {
			continue
		}
		tn := float64(delta) * price
		tc := math.Abs(float64(delta)) * price * l.costRate
		ev.Trades = append(ev.Trades, Trade{
			Symbol:   sym,
			DeltaQty: delta,
			Price:    price,
			Notional: tn,
			Cost:     tc,
		})
		l.holdings[sym] = target
		notional += tn
		cost += tc
	}

	l.cash -= notional + cost
	l.totalCost += cost
	ev.TotalCost = cost
	ev.ValueAfter = l.Value(prices)
	l.events = append(l.events, ev)
	return ev
}

// RecordState appends a value snapshot to the history and returns it.
func (l *Ledger) RecordState(date time.Time, prices map[string]float64) StateRecord {
	v := l.Value(prices)
	rec := StateRecord{
		Date:   date,
		Value:  v,
		Cash:   l.cash,
		Return: (v - l.initialCapital) / l.initialCapital,
	}
	l.history = append(l.history, rec)
	return rec
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// TotalCost returns the cumulative transaction costs charged.
func (l *Ledger) TotalCost() float64 { return l.totalCost }

// InitialCapital returns the starting cash.
func (l *Ledger) InitialCapital() float64 { return l.initialCapital }

// Holdings returns a copy of the current share counts.
func (l *Ledger) Holdings() map[string]int64 {
	out := make(map[string]int64, len(l.holdings))
	for sym, qty := range l.holdings {
		out[sym] = qty
	}
	return out
}

// History returns the recorded value path. Callers must not modify it.
func (l *Ledger) History() []StateRecord { return l.history }

// Events returns the recorded rebalances. Callers must not modify them.
func (l *Ledger) Events() []RebalanceEvent { return l.events }

func usablePrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
