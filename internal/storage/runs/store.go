// Package runs persists a summary row for every completed backtest, Monte
// Carlo study and sweep in a SQLite database.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/newthinker/stockpick/internal/core"
)

// Kind labels what produced a record
type Kind string

const (
	KindBacktest   Kind = "backtest"
	KindMonteCarlo Kind = "montecarlo"
	KindGrid       Kind = "grid"
	KindCosts      Kind = "costs"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	seed          INTEGER NOT NULL DEFAULT 0,
	iterations    INTEGER NOT NULL DEFAULT 1,
	start_date    TEXT NOT NULL,
	end_date      TEXT NOT NULL,
	total_return  REAL NOT NULL,
	sharpe_ratio  REAL NOT NULL,
	max_drawdown  REAL NOT NULL,
	volatility    REAL NOT NULL,
	final_value   REAL NOT NULL,
	params        TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs (created_at);
CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs (strategy, kind);
`

// Record is one stored run. For Monte Carlo and sweep records the metric
// fields hold the mean across iterations.
type Record struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Strategy    string         `json:"strategy"`
	Seed        uint64         `json:"seed"`
	Iterations  int            `json:"iterations"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     time.Time      `json:"end_date"`
	TotalReturn float64        `json:"total_return"`
	SharpeRatio float64        `json:"sharpe_ratio"`
	MaxDrawdown float64        `json:"max_drawdown"`
	Volatility  float64        `json:"volatility"`
	FinalValue  float64        `json:"final_value"`
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind     Kind
	Strategy string
	Limit    int
}

// row mirrors the table layout
type row struct {
	ID          string  `db:"id"`
	Kind        string  `db:"kind"`
	Strategy    string  `db:"strategy"`
	Seed        int64   `db:"seed"`
	Iterations  int     `db:"iterations"`
	StartDate   string  `db:"start_date"`
	EndDate     string  `db:"end_date"`
	TotalReturn float64 `db:"total_return"`
	SharpeRatio float64 `db:"sharpe_ratio"`
	MaxDrawdown float64 `db:"max_drawdown"`
	Volatility  float64 `db:"volatility"`
	FinalValue  float64 `db:"final_value"`
	Params      string  `db:"params"`
	CreatedAt   int64   `db:"created_at"`
}

// Store is the SQLite-backed run history
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
	now     func() time.Time
}

// Open opens (or creates) the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("opening %s: %w", path, err))
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("applying schema: %w", err))
	}
	return &Store{db: db, timeout: 10 * time.Second, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts rec, assigning an ID and creation time when unset, and
// returns the stored record.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.Iterations <= 0 {
		rec.Iterations = 1
	}

	r, err := toRow(rec)
	if err != nil {
		return Record{}, err
	}

	query := `
		INSERT INTO runs (id, kind, strategy, seed, iterations, start_date, end_date,
			total_return, sharpe_ratio, max_drawdown, volatility, final_value, params, created_at)
		VALUES (:id, :kind, :strategy, :seed, :iterations, :start_date, :end_date,
			:total_return, :sharpe_ratio, :max_drawdown, :volatility, :final_value, :params, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, r); err != nil {
		return Record{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("inserting run: %w", err))
	}
	return rec, nil
}

// Get returns the record with id or core.ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, core.WrapError(core.ErrNotFound, fmt.Errorf("run %s", id))
	}
	if err != nil {
		return Record{}, core.WrapError(core.ErrStorageFailed, err)
	}
	return fromRow(r)
}

// List returns matching records, newest first
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Strategy != "" {
		where = append(where, "strategy = ?")
		args = append(args, f.Strategy)
	}

	query := `SELECT * FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("listing runs: %w", err))
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the record with id
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("run %s", id))
	}
	return nil
}

func toRow(rec Record) (row, error) {
	params := "{}"
	if len(rec.Params) > 0 {
		b, err := json.Marshal(rec.Params)
		if err != nil {
			return row{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding params: %w", err))
		}
		params = string(b)
	}
	return row{
		ID:          rec.ID,
		Kind:        string(rec.Kind),
		Strategy:    rec.Strategy,
		Seed:        int64(rec.Seed),
		Iterations:  rec.Iterations,
		StartDate:   rec.StartDate.Format(time.DateOnly),
		EndDate:     rec.EndDate.Format(time.DateOnly),
		TotalReturn: finite(rec.TotalReturn),
		SharpeRatio: finite(rec.SharpeRatio),
		MaxDrawdown: finite(rec.MaxDrawdown),
		Volatility:  finite(rec.Volatility),
		FinalValue:  finite(rec.FinalValue),
		Params:      params,
		CreatedAt:   rec.CreatedAt.UnixMilli(),
	}, nil
}

func fromRow(r row) (Record, error) {
	start, err := time.Parse(time.DateOnly, r.StartDate)
	if err != nil {
		return Record{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("run %s start date: %w", r.ID, err))
	}
	end, err := time.Parse(time.DateOnly, r.EndDate)
	if err != nil {
		return Record{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("run %s end date: %w", r.ID, err))
	}

	var params map[string]any
	if r.Params != "" && r.Params != "{}" {
		if err := json.Unmarshal([]byte(r.Params), &params); err != nil {
			return Record{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("run %s params: %w", r.ID, err))
		}
	}

	return Record{
		ID:          r.ID,
		Kind:        Kind(r.Kind),
		Strategy:    r.Strategy,
		Seed:        uint64(r.Seed),
		Iterations:  r.Iterations,
		StartDate:   start,
		EndDate:     end,
		TotalReturn: r.TotalReturn,
		SharpeRatio: r.SharpeRatio,
		MaxDrawdown: r.MaxDrawdown,
		Volatility:  r.Volatility,
		FinalValue:  r.FinalValue,
		Params:      params,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
	}, nil
}

// finite maps NaN and ±Inf to 0; SQLite stores NaN as NULL
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
