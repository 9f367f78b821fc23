// Package postgres is a Postgres-backed AnalyticsStorage, grounded on the
// teacher's store/postgres.Store: plain database/sql, single-transaction
// batch insert, generalized from the audit outbox shape into spec.md
// §4.4's batch/events/daily_stats schema.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/pkg/ids"
	"github.com/abramin/eventpipe/pkg/perrors"
)

// Store implements storage.AnalyticsStorage against Postgres.
type Store struct {
	db        *sql.DB
	maxSizeMB int
}

// New opens a connection, applies the schema synchronously (spec.md §9 open
// question: initialize storage synchronously during construction, drive all
// subsequent operations off the caller's context rather than a background
// runtime handle), and returns a ready Store.
func New(ctx context.Context, dsn string, maxSizeMB int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeUnavailable, "open postgres connection")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, perrors.Wrap(err, perrors.CodeUnavailable, "ping postgres")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, perrors.Wrap(err, perrors.CodeInternal, "apply schema")
	}
	return &Store{db: db, maxSizeMB: maxSizeMB}, nil
}

// Store inserts batch metadata and all its events in a single transaction
// (spec.md §4.4 store()). If the on-disk size exceeds maxSizeMB, the
// lowest-10%-by-timestamp events are evicted first, outside the insert
// transaction so eviction never touches the batch about to be inserted.
func (s *Store) Store(ctx context.Context, batch events.Batch) error {
	if s.maxSizeMB > 0 {
		if err := s.evictIfOversized(ctx); err != nil {
			return perrors.Wrap(err, perrors.CodeInternal, "evict oversized storage")
		}
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "begin transaction")
	}
	defer dbtx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := dbtx.ExecContext(ctx, `
		INSERT INTO batches (id, sequence, event_count, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(batch.ID()), int64(batch.Sequence()), batch.Len(), batch.CreatedAt()); err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "insert batch")
	}

	for _, e := range batch.Events() {
		if err := insertEvent(ctx, dbtx, e); err != nil {
			return err
		}
	}

	if err := dbtx.Commit(); err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "commit batch transaction")
	}

	// daily_stats upserts run outside the transaction for throughput
	// (spec.md §4.4).
	if err := s.upsertDailyStats(ctx, batch.Events()); err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "upsert daily stats")
	}
	return nil
}

func insertEvent(ctx context.Context, dbtx *sql.Tx, e events.Event) error {
	dataBlob, err := events.MarshalData(e.Data())
	if err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "marshal event data")
	}
	metadataBlob, err := jsonMarshal(e.Metadata())
	if err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "marshal event metadata")
	}

	var sessionID *uuid.UUID
	if sid, has := e.SessionID(); has {
		u := uuid.UUID(sid)
		sessionID = &u
	}

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO events (id, category, type, timestamp, session_id, priority, data_blob, metadata_blob)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(e.ID()), string(e.Category()), string(e.Type()), e.Timestamp(), sessionID, int(e.Priority()), dataBlob, metadataBlob)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "insert event")
	}
	return nil
}

func (s *Store) upsertDailyStats(ctx context.Context, evts []events.Event) error {
	type key struct {
		date     string
		category string
		typ      string
	}
	counts := make(map[key]int64)
	for _, e := range evts {
		k := key{
			date:     e.Timestamp().UTC().Format("2006-01-02"),
			category: string(e.Category()),
			typ:      string(e.Type()),
		}
		counts[k]++
	}

	for k, n := range counts {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO daily_stats (date, category, type, count)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (date, category, type)
			DO UPDATE SET count = daily_stats.count + EXCLUDED.count
		`, k.date, k.category, k.typ, n)
		if err != nil {
			return err
		}
	}
	return nil
}

// evictIfOversized deletes the lowest-10%-by-timestamp events if the events
// table's on-disk size exceeds maxSizeMB.
func (s *Store) evictIfOversized(ctx context.Context) error {
	var sizeBytes int64
	if err := s.db.QueryRowContext(ctx, `SELECT pg_total_relation_size('events')`).Scan(&sizeBytes); err != nil {
		return err
	}
	maxBytes := int64(s.maxSizeMB) * 1024 * 1024
	if sizeBytes <= maxBytes {
		return nil
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM events`).Scan(&total); err != nil {
		return err
	}
	evictCount := total / 10
	if evictCount <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE id IN (
			SELECT id FROM events ORDER BY timestamp ASC LIMIT $1
		)
	`, evictCount)
	return err
}

func (s *Store) QueryByTime(ctx context.Context, start, end time.Time, limit int) ([]events.Event, error) {
	query := `
		SELECT id, category, type, timestamp, session_id, priority, data_blob, metadata_blob
		FROM events
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp DESC
	`
	args := []any{start, end}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

func (s *Store) QueryByCategory(ctx context.Context, category events.Category, start, end time.Time) ([]events.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, category, type, timestamp, session_id, priority, data_blob, metadata_blob
		FROM events
		WHERE category = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
	`, string(category), start, end)
}

func (s *Store) QueryByType(ctx context.Context, t events.Type, start, end time.Time) ([]events.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, category, type, timestamp, session_id, priority, data_blob, metadata_blob
		FROM events
		WHERE type = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
	`, string(t), start, end)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInternal, "query events")
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.CodeInternal, "scan event")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInternal, "iterate events")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (events.Event, error) {
	var (
		rawID        uuid.UUID
		category     string
		typ          string
		ts           time.Time
		sessionID    *uuid.UUID
		priority     int
		dataBlob     []byte
		metadataBlob []byte
	)
	if err := row.Scan(&rawID, &category, &typ, &ts, &sessionID, &priority, &dataBlob, &metadataBlob); err != nil {
		return events.Event{}, err
	}

	data, err := events.UnmarshalData(dataBlob)
	if err != nil {
		return events.Event{}, err
	}
	var metadata events.Metadata
	if err := jsonUnmarshal(metadataBlob, &metadata); err != nil {
		return events.Event{}, err
	}

	fields := events.StorageFields{
		ID:        ids.EventID(rawID),
		Type:      events.Type(typ),
		Category:  events.Category(category),
		Timestamp: ts,
		Priority:  events.Priority(priority),
		Data:      data,
		Metadata:  metadata,
	}
	if sessionID != nil {
		fields.SessionID = ids.SessionID(*sessionID)
		fields.HasSession = true
	}
	return events.FromStorage(fields), nil
}

func (s *Store) CountByCategory(ctx context.Context, start, end time.Time) ([]storage.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, count(*) FROM events
		WHERE timestamp >= $1 AND timestamp <= $2
		GROUP BY category
	`, start, end)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInternal, "count by category")
	}
	defer rows.Close()

	var out []storage.CategoryCount
	for rows.Next() {
		var cat string
		var count int64
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, perrors.Wrap(err, perrors.CodeInternal, "scan category count")
		}
		out = append(out, storage.CategoryCount{Category: events.Category(cat), Count: count})
	}
	return out, rows.Err()
}

func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < $1`, t)
	if err != nil {
		return 0, perrors.Wrap(err, perrors.CodeInternal, "delete before")
	}
	return res.RowsAffected()
}

func (s *Store) DeleteBeforeCategory(ctx context.Context, category events.Category, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE category = $1 AND timestamp < $2`, string(category), t)
	if err != nil {
		return 0, perrors.Wrap(err, perrors.CodeInternal, "delete before category")
	}
	return res.RowsAffected()
}

func (s *Store) DeleteBySession(ctx context.Context, session ids.SessionID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE session_id = $1`, uuid.UUID(session))
	if err != nil {
		return 0, perrors.Wrap(err, perrors.CodeInternal, "delete by session")
	}
	return res.RowsAffected()
}

func (s *Store) DeleteByFilter(ctx context.Context, f storage.DeleteFilter) (int64, error) {
	query := "DELETE FROM events WHERE 1=1"
	var args []any
	if f.Category != "" {
		args = append(args, string(f.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, perrors.Wrap(err, perrors.CodeInternal, "delete by filter")
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var out storage.Stats

	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM events`).Scan(&out.TotalEvents)
	if err != nil {
		return out, perrors.Wrap(err, perrors.CodeInternal, "count events")
	}

	err = s.db.QueryRowContext(ctx, `SELECT pg_total_relation_size('events')`).Scan(&out.OnDiskBytes)
	if err != nil {
		return out, perrors.Wrap(err, perrors.CodeInternal, "relation size")
	}

	row := s.db.QueryRowContext(ctx, `SELECT min(timestamp), max(timestamp) FROM events`)
	var oldest, newest *time.Time
	if err := row.Scan(&oldest, &newest); err != nil {
		return out, perrors.Wrap(err, perrors.CodeInternal, "min/max timestamp")
	}
	if oldest != nil {
		out.OldestTimestamp = *oldest
	}
	if newest != nil {
		out.NewestTimestamp = *newest
	}

	counts, err := s.CountByCategory(ctx, time.Time{}, time.Now().UTC().AddDate(100, 0, 0))
	if err != nil {
		return out, err
	}
	out.PerCategoryCount = counts
	return out, nil
}

// Compact reclaims space after bulk deletion via VACUUM. VACUUM cannot run
// inside a transaction block, so this uses a dedicated connection.
func (s *Store) Compact(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "acquire connection for vacuum")
	}
	defer conn.Close()
	_, err = conn.ExecContext(ctx, `VACUUM events`)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeInternal, "vacuum events")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
