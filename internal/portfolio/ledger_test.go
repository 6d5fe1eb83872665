package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

var testDay = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

func mustLedger(t *testing.T, capital, rate float64) *Ledger {
	t.Helper()
	l, err := NewLedger(capital, rate)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestNewLedgerValidation(t *testing.T) {
	var verr *domain.ValidationError
	if _, err := NewLedger(0, 0.001); !errors.As(err, &verr) {
		t.Errorf("zero capital: want ValidationError, got %v", err)
	}
	if _, err := NewLedger(-100, 0.001); !errors.As(err, &verr) {
		t.Errorf("negative capital: want ValidationError, got %v", err)
	}
	if _, err := NewLedger(10000, -0.1); !errors.As(err, &verr) {
		t.Errorf("negative cost rate: want ValidationError, got %v", err)
	}
}

func TestRebalanceBuys(t *testing.T) {
	l := mustLedger(t, 10000, 0.001)

	ev := l.Rebalance(testDay,
		map[string]float64{"A": 0.6, "B": 0.4},
		map[string]float64{"A": 50, "B": 20})

	h := l.Holdings()
	if h["A"] != 120 || h["B"] != 200 {
		t.Errorf("holdings = %v, want A:120 B:200", h)
	}
	// Fully invested: 10000 notional plus 10 in costs leaves cash at -10.
	if math.Abs(l.Cash()+10) > 1e-9 {
		t.Errorf("cash = %v, want -10", l.Cash())
	}
	if math.Abs(l.TotalCost()-10) > 1e-9 {
		t.Errorf("total cost = %v, want 10", l.TotalCost())
	}
	if math.Abs(ev.ValueAfter-9990) > 1e-9 {
		t.Errorf("value after = %v, want 9990", ev.ValueAfter)
	}

	if len(ev.Trades) != 2 {
		t.Fatalf("trades = %v, want 2", ev.Trades)
	}
	if ev.Trades[0].Symbol != "A" || ev.Trades[1].Symbol != "B" {
		t.Errorf("trades out of symbol order: %v", ev.Trades)
	}
	if ev.Trades[0].DeltaQty != 120 || math.Abs(ev.Trades[0].Notional-6000) > 1e-9 {
		t.Errorf("trade A = %+v", ev.Trades[0])
	}
	if math.Abs(ev.Trades[1].Cost-4) > 1e-9 {
		t.Errorf("trade B cost = %v, want 4", ev.Trades[1].Cost)
	}
}

func TestRebalanceTruncatesTowardZero(t *testing.T) {
	l := mustLedger(t, 10000, 0)
	l.Rebalance(testDay, map[string]float64{"A": 1}, map[string]float64{"A": 333})
	if got := l.Holdings()["A"]; got != 30 {
		t.Errorf("target = %d, want 30 (10000/333 truncated)", got)
	}
	if math.Abs(l.Cash()-10) > 1e-9 {
		t.Errorf("cash = %v, want 10", l.Cash())
	}

	short := mustLedger(t, 10000, 0)
	short.Rebalance(testDay, map[string]float64{"A": -0.507}, map[string]float64{"A": 100})
	if got := short.Holdings()["A"]; got != -50 {
		t.Errorf("short target = %d, want -50 (-50.7 truncated toward zero)", got)
	}
	// Selling short raises cash by the shorted notional.
	if math.Abs(short.Cash()-15000) > 1e-9 {
		t.Errorf("cash = %v, want 15000", short.Cash())
	}
}

func TestRebalanceRetargets(t *testing.T) {
	l := mustLedger(t, 10000, 0.001)
	l.Rebalance(testDay,
		map[string]float64{"A": 0.6, "B": 0.4},
		map[string]float64{"A": 50, "B": 20})

	day2 := testDay.AddDate(0, 1, 0)
	ev := l.Rebalance(day2,
		map[string]float64{"A": 0.2, "B": 0.8},
		map[string]float64{"A": 60, "B": 25})

	// Value before: -10 + 120*60 + 200*25 = 12190.
	// Targets: A = trunc(2438/60) = 40 (sell 80), B = trunc(9752/25) = 390 (buy 190).
	h := l.Holdings()
	if h["A"] != 40 || h["B"] != 390 {
		t.Errorf("holdings = %v, want A:40 B:390", h)
	}
	wantCost := (80.0*60 + 190.0*25) * 0.001
	if math.Abs(ev.TotalCost-wantCost) > 1e-9 {
		t.Errorf("cost = %v, want %v", ev.TotalCost, wantCost)
	}
	if math.Abs(l.Cash()-30.45) > 1e-9 {
		t.Errorf("cash = %v, want 30.45", l.Cash())
	}
	if math.Abs(ev.ValueAfter-12180.45) > 1e-9 {
		t.Errorf("value after = %v, want 12180.45", ev.ValueAfter)
	}
	if ev.Trades[0].DeltaQty != -80 {
		t.Errorf("A delta = %d, want -80", ev.Trades[0].DeltaQty)
	}
}

func TestRebalanceSkipsUnusablePrices(t *testing.T) {
	l := mustLedger(t, 10000, 0)
	l.Rebalance(testDay,
		map[string]float64{"A": 0.5, "B": 0.5},
		map[string]float64{"A": 100, "B": 100})
	if l.Holdings()["B"] != 50 {
		t.Fatalf("setup holdings = %v", l.Holdings())
	}

	day2 := testDay.AddDate(0, 1, 0)
	ev := l.Rebalance(day2,
		map[string]float64{"A": 0.3, "B": 0.3, "C": 0.4},
		map[string]float64{"A": 100, "B": math.NaN(), "C": 0})

	if len(ev.Skipped) != 2 || ev.Skipped[0] != "B" || ev.Skipped[1] != "C" {
		t.Errorf("skipped = %v, want [B C]", ev.Skipped)
	}
	// B keeps its shares even though it was skipped; C is never opened.
	if l.Holdings()["B"] != 50 {
		t.Errorf("B holdings = %d, want unchanged 50", l.Holdings()["B"])
	}
	if _, ok := l.Holdings()["C"]; ok {
		t.Error("C should not appear in holdings")
	}
	// With B unpriced, the portfolio value seen by the rebalance excludes it.
	for _, tr := range ev.Trades {
		if tr.Symbol != "A" {
			t.Errorf("unexpected trade: %+v", tr)
		}
	}
}

func TestRebalanceToZeroClosesPosition(t *testing.T) {
	l := mustLedger(t, 10000, 0)
	l.Rebalance(testDay, map[string]float64{"A": 1}, map[string]float64{"A": 100})
	l.Rebalance(testDay.AddDate(0, 1, 0),
		map[string]float64{"A": 0},
		map[string]float64{"A": 100})
	if got := l.Holdings()["A"]; got != 0 {
		t.Errorf("A = %d, want 0 after selling out", got)
	}
	if math.Abs(l.Cash()-10000) > 1e-9 {
		t.Errorf("cash = %v, want 10000", l.Cash())
	}
}

func TestRecordState(t *testing.T) {
	l := mustLedger(t, 10000, 0)
	l.Rebalance(testDay, map[string]float64{"S": 1}, map[string]float64{"S": 100})

	for i := 0; i < 3; i++ {
		rec := l.RecordState(testDay.AddDate(0, 0, i), map[string]float64{"S": 100})
		if rec.Value != 10000 || rec.Return != 0 {
			t.Errorf("record %d = %+v, want flat", i, rec)
		}
	}
	rec := l.RecordState(testDay.AddDate(0, 0, 3), map[string]float64{"S": 110})
	if math.Abs(rec.Value-11000) > 1e-9 || math.Abs(rec.Return-0.1) > 1e-12 {
		t.Errorf("record = %+v, want value 11000 return 0.1", rec)
	}
	if len(l.History()) != 4 {
		t.Errorf("history length = %d, want 4", len(l.History()))
	}
}

func TestValueIgnoresUnpricedHoldings(t *testing.T) {
	l := mustLedger(t, 10000, 0)
	l.Rebalance(testDay, map[string]float64{"A": 1}, map[string]float64{"A": 100})

	if v := l.Value(map[string]float64{"A": math.NaN()}); v != l.Cash() {
		t.Errorf("value with NaN price = %v, want cash only %v", v, l.Cash())
	}
	if v := l.Value(map[string]float64{}); v != l.Cash() {
		t.Errorf("value with no prices = %v, want cash only", v)
	}
}

func TestHoldingsIsACopy(t *testing.T) {
	l := mustLedger(t, 10000, 0)
	l.Rebalance(testDay, map[string]float64{"A": 1}, map[string]float64{"A": 100})
	h := l.Holdings()
	h["A"] = 0
	if l.Holdings()["A"] != 100 {
		t.Error("mutating the returned map changed the ledger")
	}
}
