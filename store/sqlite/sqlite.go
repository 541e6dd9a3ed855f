/*
Package sqlite provides a SQLite-backed carbon.PoolStore.

PURPOSE:
  Keeps booked runs, their frozen pools and the report records computed
  from them, so a server restart or a later `cbook report` can evaluate a
  run without booking it again.

APPEND-ONLY ENFORCEMENT:
  - runs and pools are inserted once, inside one transaction per run
  - no UPDATE or DELETE touches either table
  - reports are derived data: saving a report replaces the previous rows

KEY TABLES:
  runs:    one row per booked pixel or region
  pools:   one row per pool; ensembles stored as JSON arrays
  reports: one row per (run, date)

INDEXES:
  - idx_pools_run: loading a run's pools in id order (hot path)
  - idx_reports_run_date: report reload in date order

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to a
  single connection, since every new connection would see an empty schema.

WAL MODE:
  File databases are opened with WAL so readers never block the writer.

USAGE:
  store, err := sqlite.New("./data/cbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.SaveRun(ctx, carbon.Run{ID: id, Kind: carbon.RunPixel}, col)

SEE ALSO:
  - carbon/store.go: PoolStore interface
  - carbon/store/memory.go: in-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/carbon-book/carbon"
)

// Store implements carbon.PoolStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ carbon.PoolStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		label TEXT,
		px INTEGER NOT NULL DEFAULT 0,
		py INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL,
		pools INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created
		ON runs(created_at, id);

	CREATE TABLE IF NOT EXISTS pools (
		run_id TEXT NOT NULL REFERENCES runs(id),
		pool_id INTEGER NOT NULL,
		pool_type TEXT NOT NULL,
		subpool TEXT NOT NULL,
		class INTEGER NOT NULL,
		px INTEGER NOT NULL,
		py INTEGER NOT NULL,
		area REAL NOT NULL,
		start_day INTEGER NOT NULL,
		end_day INTEGER NOT NULL,
		decay TEXT NOT NULL,
		coef0 REAL NOT NULL,
		coef1 REAL NOT NULL,
		initial_json TEXT NOT NULL,
		final_json TEXT NOT NULL,
		PRIMARY KEY (run_id, pool_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pools_run
		ON pools(run_id, pool_id);

	CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT NOT NULL REFERENCES runs(id),
		date INTEGER NOT NULL,
		stock REAL NOT NULL,
		stock_uc REAL NOT NULL,
		emission REAL NOT NULL,
		emission_uc REAL NOT NULL,
		productivity REAL NOT NULL,
		productivity_uc REAL NOT NULL,
		net REAL NOT NULL,
		net_uc REAL NOT NULL,
		unreleased REAL NOT NULL,
		unreleased_uc REAL NOT NULL,
		PRIMARY KEY (run_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_run_date
		ON reports(run_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// RUNS
// =============================================================================

// SaveRun persists the run row and every pool atomically.
func (s *Store) SaveRun(ctx context.Context, run carbon.Run, col *carbon.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Pools = col.Len()
	run.Width = col.Width()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, label, px, py, width, pools, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, string(run.Kind), nullString(run.Label), run.PX, run.PY,
		run.Width, run.Pools, run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return carbon.ErrDuplicateRun
		}
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, p := range col.Pools() {
		if err := s.appendPool(ctx, sqlTx, run.ID, p); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) appendPool(ctx context.Context, db execer, runID string, p carbon.Pool) error {
	initial, err := json.Marshal(p.Initial)
	if err != nil {
		return err
	}
	final, err := json.Marshal(p.Final)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO pools
		(run_id, pool_id, pool_type, subpool, class, px, py, area, start_day, end_day,
		 decay, coef0, coef1, initial_json, final_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, p.ID, string(p.Type), string(p.Subpool), int(p.Class), p.PX, p.PY, p.Area,
		int32(p.Start), int32(p.End),
		string(p.Decay.Kind), p.Decay.Coef[0], p.Decay.Coef[1],
		string(initial), string(final),
	)
	if err != nil {
		return fmt.Errorf("failed to save pool %d: %w", p.ID, err)
	}
	return nil
}

// LoadRun returns the run and its refrozen collection.
func (s *Store) LoadRun(ctx context.Context, id string) (carbon.Run, *carbon.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, kind, label, px, py, width, pools, created_at
		FROM runs WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return carbon.Run{}, nil, carbon.ErrRunNotFound
	}
	if err != nil {
		return carbon.Run{}, nil, err
	}

	pools, err := s.queryPools(ctx, id)
	if err != nil {
		return carbon.Run{}, nil, err
	}
	col, err := carbon.NewCollection(pools)
	if err != nil {
		return carbon.Run{}, nil, fmt.Errorf("run %s: %w", id, err)
	}
	return run, col, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]carbon.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, label, px, py, width, pools, created_at
		FROM runs ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []carbon.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (carbon.Run, error) {
	var (
		r         carbon.Run
		kind      string
		label     sql.NullString
		createdAt string
	)
	if err := row.Scan(&r.ID, &kind, &label, &r.PX, &r.PY, &r.Width, &r.Pools, &createdAt); err != nil {
		return r, err
	}
	r.Kind = carbon.RunKind(kind)
	r.Label = label.String
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}

func (s *Store) queryPools(ctx context.Context, runID string) ([]carbon.Pool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool_id, pool_type, subpool, class, px, py, area, start_day, end_day,
		       decay, coef0, coef1, initial_json, final_json
		FROM pools WHERE run_id = ? ORDER BY pool_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []carbon.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func scanPool(rows *sql.Rows) (carbon.Pool, error) {
	var (
		p              carbon.Pool
		poolType       string
		subpool        string
		class          int
		start, end     int32
		decay          string
		initial, final string
	)
	err := rows.Scan(
		&p.ID, &poolType, &subpool, &class, &p.PX, &p.PY, &p.Area, &start, &end,
		&decay, &p.Decay.Coef[0], &p.Decay.Coef[1], &initial, &final,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan pool: %w", err)
	}

	kind, err := carbon.ParseDecayKind(decay)
	if err != nil {
		return p, err
	}
	p.Type = carbon.PoolType(poolType)
	p.Subpool = carbon.Subpool(subpool)
	p.Class = carbon.ClassID(class)
	p.Start, p.End = carbon.Ordinal(start), carbon.Ordinal(end)
	p.Decay.Kind = kind

	if err := json.Unmarshal([]byte(initial), &p.Initial); err != nil {
		return p, fmt.Errorf("pool %d initial: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(final), &p.Final); err != nil {
		return p, fmt.Errorf("pool %d final: %w", p.ID, err)
	}
	return p, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// SaveReport replaces the stored records of a run.
func (s *Store) SaveReport(ctx context.Context, runID string, records []carbon.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var n int
	if err := sqlTx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return carbon.ErrRunNotFound
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM reports WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to clear report: %w", err)
	}
	for _, r := range records {
		if err := appendRecord(ctx, sqlTx, runID, r); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func appendRecord(ctx context.Context, db execer, runID string, r carbon.Record) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reports
		(run_id, date, stock, stock_uc, emission, emission_uc, productivity, productivity_uc,
		 net, net_uc, unreleased, unreleased_uc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, int32(r.Date),
		r.Stock, r.StockUC, r.Emission, r.EmissionUC, r.Productivity, r.ProductivityUC,
		r.Net, r.NetUC, r.Unreleased, r.UnreleasedUC,
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", r.Date, err)
	}
	return nil
}

// LoadReport returns the stored records of a run in date order.
func (s *Store) LoadReport(ctx context.Context, runID string) ([]carbon.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, carbon.ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, stock, stock_uc, emission, emission_uc, productivity, productivity_uc,
		       net, net_uc, unreleased, unreleased_uc
		FROM reports WHERE run_id = ? ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	defer rows.Close()

	records := []carbon.Record{}
	for rows.Next() {
		var (
			r    carbon.Record
			date int32
		)
		err := rows.Scan(&date,
			&r.Stock, &r.StockUC, &r.Emission, &r.EmissionUC, &r.Productivity, &r.ProductivityUC,
			&r.Net, &r.NetUC, &r.Unreleased, &r.UnreleasedUC,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Date = carbon.DOY(date)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"reports", "pools", "runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
