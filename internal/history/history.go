// Package history records generation outcomes in SQLite and summarises them
// into cost and latency metrics.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sj-versent/demo-aws-summit-2025/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store keeps a single writer connection to avoid "database is locked" errors
// and a small reader pool.
type Store struct {
	writer       *sql.DB
	reader       *sql.DB
	costPerImage float64
	now          func() time.Time
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string, costPerImage float64) (*Store, error) {
	return open(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", path, pragmas), costPerImage)
}

// OpenMemory opens a named in-memory database shared by the store's
// connections. It is gone once the store is closed.
func OpenMemory(name string, costPerImage float64) (*Store, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, pragmas), costPerImage)
}

func open(dsn string, costPerImage float64) (*Store, error) {
	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.Ping(); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.Ping(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	if err := runMigrations(writer); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, err
	}

	return &Store{writer: writer, reader: reader, costPerImage: costPerImage, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var firstErr error
	if err := s.reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := s.writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}

// Record stores one finished generation. ID and CreatedAt are filled in when
// empty; Cost is set from the configured per-image price for ready outcomes.
func (s *Store) Record(ctx context.Context, e model.HistoryEntry) (model.HistoryEntry, error) {
	if e.Outcome != model.OutcomeReady && e.Outcome != model.OutcomeFailed {
		return e, fmt.Errorf("unknown outcome %q", e.Outcome)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.Cost = 0
	if e.Outcome == model.OutcomeReady {
		e.Cost = s.costPerImage
	}

	const query = `
		INSERT INTO generations (id, prompt, outcome, message, latency_ms, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.writer.ExecContext(ctx, query,
		e.ID, e.Prompt, string(e.Outcome), e.Message,
		e.Latency.Milliseconds(), e.Cost, e.CreatedAt.UnixMilli(),
	); err != nil {
		return e, fmt.Errorf("insert generation %s: %w", e.ID, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	const query = `
		SELECT id, prompt, outcome, message, latency_ms, cost, created_at
		FROM generations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var (
			e         model.HistoryEntry
			outcome   string
			latencyMS int64
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Prompt, &outcome, &e.Message, &latencyMS, &e.Cost, &createdAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		e.Outcome = model.Outcome(outcome)
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary aggregates every recorded generation.
func (s *Store) Summary(ctx context.Context) (model.Metrics, error) {
	const query = `
		SELECT
			COALESCE(SUM(CASE WHEN outcome = 'ready' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(cost), 0),
			COALESCE(AVG(CASE WHEN outcome = 'ready' THEN latency_ms END), 0)
		FROM generations
	`
	m := model.Metrics{CostPerImage: s.costPerImage}
	var avgMS float64
	if err := s.reader.QueryRowContext(ctx, query).Scan(&m.Generated, &m.Failed, &m.TotalCost, &avgMS); err != nil {
		return m, fmt.Errorf("summarise generations: %w", err)
	}
	m.AverageLatencySeconds = avgMS / 1000
	return m, nil
}
