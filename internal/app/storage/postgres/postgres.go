// Package postgres keeps an off-ledger index of emitted events and per-user
// summaries for analytical queries. The ledger stays authoritative; rows here
// are a denormalized mirror fed from the event bus.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/solji-labs/solji-program-sub000/internal/app/events"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Index is the Postgres-backed event and summary store.
type Index struct {
	db  *sqlx.DB
	log *logger.Logger
}

// Open connects, verifies the connection and applies pending migrations.
func Open(dsn string, log *logger.Logger) (*Index, error) {
	if log == nil {
		log = logger.NewDefault("postgres")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	idx := &Index{db: db, log: log}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithDB wraps an existing connection without running migrations. Used by
// tests with a mock driver.
func NewWithDB(db *sqlx.DB, log *logger.Logger) *Index {
	if log == nil {
		log = logger.NewDefault("postgres")
	}
	return &Index{db: db, log: log}
}

func (i *Index) migrate() error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(i.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (i *Index) Close() error { return i.db.Close() }

// RecordEvent stores one emitted event. Duplicate IDs are ignored so a
// replayed stream stays idempotent.
func (i *Index) RecordEvent(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = i.db.ExecContext(ctx, `
		INSERT INTO program_events (id, name, payload, emitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Name, payload, ev.EmittedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UserSummary is one row of the denormalized per-user view.
type UserSummary struct {
	Owner         string    `db:"owner" json:"owner"`
	Merit         uint64    `db:"merit" json:"merit"`
	IncensePoints uint64    `db:"incense_points" json:"incense_points"`
	Title         string    `db:"title" json:"title"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertUserSummary refreshes one user's summary row.
func (i *Index) UpsertUserSummary(ctx context.Context, s UserSummary) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO user_summaries (owner, merit, incense_points, title, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner) DO UPDATE SET
			merit = EXCLUDED.merit,
			incense_points = EXCLUDED.incense_points,
			title = EXCLUDED.title,
			updated_at = EXCLUDED.updated_at`,
		s.Owner, s.Merit, s.IncensePoints, s.Title, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user summary: %w", err)
	}
	return nil
}

// TopUsers returns the highest-scoring summaries by incense points.
func (i *Index) TopUsers(ctx context.Context, limit int) ([]UserSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []UserSummary
	err := i.db.SelectContext(ctx, &rows, `
		SELECT owner, merit, incense_points, title, updated_at
		FROM user_summaries
		ORDER BY incense_points DESC, updated_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	return rows, nil
}

// EventCount returns the number of indexed events with the given name, or all
// events when name is empty.
func (i *Index) EventCount(ctx context.Context, name string) (int64, error) {
	var count int64
	var err error
	if name == "" {
		err = i.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM program_events`)
	} else {
		err = i.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM program_events WHERE name = $1`, name)
	}
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// Consume drains the subscription channel into the index until ctx ends or
// the channel closes. Insert failures are logged and skipped.
func (i *Index) Consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := i.RecordEvent(ctx, ev); err != nil && !errors.Is(err, sql.ErrConnDone) {
				i.log.WithError(err).WithField("event", ev.Name).Warn("event index insert failed")
			}
		}
	}
}
