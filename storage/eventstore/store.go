// Package eventstore indexes committed ledger events in SQLite so they can be
// queried by job or type without replaying the ledger event log.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"gigchain/core/events"
	"gigchain/core/types"
)

// Store is an events.Sink backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ events.Sink = (*Store)(nil)

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("eventstore: path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY,
            type TEXT NOT NULL,
            job_id INTEGER,
            attributes TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_job_id ON events(job_id);`,
		`CREATE INDEX IF NOT EXISTS events_type ON events(type);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("eventstore: schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Publish stores records. Sequences already present are skipped, so replaying
// a range after a restart is harmless.
func (s *Store) Publish(ctx context.Context, records []events.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO events (sequence, type, job_id, attributes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		attrs, err := json.Marshal(rec.Event.Attributes)
		if err != nil {
			return fmt.Errorf("eventstore: encode %d: %w", rec.Sequence, err)
		}
		var jobID sql.NullInt64
		if raw, ok := rec.Event.Attributes["jobId"]; ok {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				jobID = sql.NullInt64{Int64: id, Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, int64(rec.Sequence), rec.Event.Type, jobID, string(attrs)); err != nil {
			return fmt.Errorf("eventstore: insert %d: %w", rec.Sequence, err)
		}
	}
	return tx.Commit()
}

// LastSequence returns the highest indexed sequence, or zero when empty.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM events`).Scan(&last); err != nil {
		return 0, err
	}
	if !last.Valid {
		return 0, nil
	}
	return uint64(last.Int64), nil
}

// ByJob returns every indexed event for jobID in sequence order.
func (s *Store) ByJob(ctx context.Context, jobID uint64) ([]events.Record, error) {
	return s.query(ctx, `SELECT sequence, type, attributes FROM events WHERE job_id = ? ORDER BY sequence`, int64(jobID))
}

// ByType returns up to limit events of eventType with sequence >= from.
func (s *Store) ByType(ctx context.Context, eventType string, from uint64, limit int) ([]events.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `SELECT sequence, type, attributes FROM events WHERE type = ? AND sequence >= ? ORDER BY sequence LIMIT ?`,
		eventType, int64(from), limit)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]events.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.Record
	for rows.Next() {
		var (
			seq   int64
			typ   string
			attrs string
		)
		if err := rows.Scan(&seq, &typ, &attrs); err != nil {
			return nil, err
		}
		decoded := map[string]string{}
		if err := json.Unmarshal([]byte(attrs), &decoded); err != nil {
			return nil, fmt.Errorf("eventstore: decode %d: %w", seq, err)
		}
		out = append(out, events.Record{Sequence: uint64(seq), Event: types.Event{Type: typ, Attributes: decoded}})
	}
	return out, rows.Err()
}
