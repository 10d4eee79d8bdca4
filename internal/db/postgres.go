// Package db provides the journal.Journaler implementations: Postgres
// for deployments, Memory for tests and database-less runs.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/quantfold/tiertrader/internal/journal"
)

// Postgres is a journal.Journaler backed by Postgres.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects, pings, and ensures the audit tables exist.
func NewPostgres(connStr string, maxOpen, maxIdle int) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.migrate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			data JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS events_type_time_idx ON events (type, time)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			id BIGSERIAL PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			pnl_pct DOUBLE PRECISION NOT NULL,
			hold_hours DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) LogEvent(ctx context.Context, event journal.Event) error {
	data, _ := json.Marshal(event.Data)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
		event.Time, event.Type, event.Description, data)
	if err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

func (p *Postgres) RecordOutcome(ctx context.Context, o journal.Outcome) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO outcomes (time, symbol, entry_price, exit_price, pnl_pct, hold_hours, reason)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.Time, o.Symbol, o.EntryPrice, o.ExitPrice, o.PnlPct, o.HoldHours, o.Reason)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

func (p *Postgres) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT time, type, description, data FROM events
		 WHERE type=$1 AND time >= $2 AND time <= $3 ORDER BY time ASC`,
		eventType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var ev journal.Event
		var data []byte
		if err := rows.Scan(&ev.Time, &ev.Type, &ev.Description, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &ev.Data)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
