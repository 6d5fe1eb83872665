package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/portfolio"
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const timeLayout = time.RFC3339Nano

const runSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL,
	allocator TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	config TEXT NOT NULL,
	total_return REAL NOT NULL,
	annualized_return REAL NOT NULL,
	annualized_volatility REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	win_rate REAL NOT NULL,
	rebalances INTEGER NOT NULL,
	fallbacks INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_weights (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	symbol TEXT NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY (run_id, symbol)
);

CREATE TABLE IF NOT EXISTS run_events (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	date TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// run tables if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(runSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run, its final weights, and its rebalance events in one
// transaction and returns the assigned run ID. A zero CreatedAt is stamped
// with the current time.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) (int64, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			created_at, allocator, start_date, end_date, config,
			total_return, annualized_return, annualized_volatility,
			sharpe_ratio, max_drawdown, win_rate, rebalances, fallbacks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.Format(timeLayout),
		rec.Allocator,
		rec.StartDate.UTC().Format(timeLayout),
		rec.EndDate.UTC().Format(timeLayout),
		rec.Config,
		rec.TotalReturn,
		rec.AnnualizedReturn,
		rec.AnnualizedVolatility,
		rec.SharpeRatio,
		rec.MaxDrawdown,
		rec.WinRate,
		rec.Rebalances,
		rec.Fallbacks,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	symbols := make([]string, 0, len(rec.Weights))
	for sym := range rec.Weights {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_weights (run_id, symbol, weight) VALUES (?, ?, ?)`,
			id, sym, rec.Weights[sym]); err != nil {
			return 0, fmt.Errorf("inserting weight for %s: %w", sym, err)
		}
	}

	for i, ev := range rec.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return 0, fmt.Errorf("encoding event %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_events (run_id, seq, date, payload) VALUES (?, ?, ?, ?)`,
			id, i, ev.Date.UTC().Format(timeLayout), string(payload)); err != nil {
			return 0, fmt.Errorf("inserting event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetRun retrieves a run with its weights and events by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	rec := &RunRecord{ID: id}
	var created, start, end string
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, allocator, start_date, end_date, config,
			total_return, annualized_return, annualized_volatility,
			sharpe_ratio, max_drawdown, win_rate, rebalances, fallbacks
		FROM runs WHERE id = ?`, id).Scan(
		&created, &rec.Allocator, &start, &end, &rec.Config,
		&rec.TotalReturn, &rec.AnnualizedReturn, &rec.AnnualizedVolatility,
		&rec.SharpeRatio, &rec.MaxDrawdown, &rec.WinRate,
		&rec.Rebalances, &rec.Fallbacks,
	)
	if err != nil {
		return nil, fmt.Errorf("loading run %d: %w", id, err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parsing created_at of run %d: %w", id, err)
	}
	if rec.StartDate, err = time.Parse(timeLayout, start); err != nil {
		return nil, fmt.Errorf("parsing start_date of run %d: %w", id, err)
	}
	if rec.EndDate, err = time.Parse(timeLayout, end); err != nil {
		return nil, fmt.Errorf("parsing end_date of run %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, weight FROM run_weights WHERE run_id = ? ORDER BY symbol`, id)
	if err != nil {
		return nil, fmt.Errorf("loading weights of run %d: %w", id, err)
	}
	defer rows.Close()
	rec.Weights = make(map[string]float64)
	for rows.Next() {
		var sym string
		var w float64
		if err := rows.Scan(&sym, &w); err != nil {
			return nil, err
		}
		rec.Weights[sym] = w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evRows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM run_events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("loading events of run %d: %w", id, err)
	}
	defer evRows.Close()
	for evRows.Next() {
		var payload string
		if err := evRows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev portfolio.RebalanceEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decoding event of run %d: %w", id, err)
		}
		rec.Events = append(rec.Events, ev)
	}
	if err := evRows.Err(); err != nil {
		return nil, err
	}

	return rec, nil
}

// ListRuns returns summaries of the most recent runs, newest first. A
// non-positive limit returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited.
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, allocator, start_date, end_date,
			total_return, sharpe_ratio
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		var created, start, end string
		if err := rows.Scan(&sum.ID, &created, &sum.Allocator, &start, &end,
			&sum.TotalReturn, &sum.SharpeRatio); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parsing created_at of run %d: %w", sum.ID, err)
		}
		if sum.StartDate, err = time.Parse(timeLayout, start); err != nil {
			return nil, fmt.Errorf("parsing start_date of run %d: %w", sum.ID, err)
		}
		if sum.EndDate, err = time.Parse(timeLayout, end); err != nil {
			return nil, fmt.Errorf("parsing end_date of run %d: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
