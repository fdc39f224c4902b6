package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"jobspine/internal/queue"
)

// Event names recorded in the journal.
const (
	EventRegistered = "registered"
	EventClaimed    = "claimed"
	EventCompleted  = "completed"
)

// Entry is one recorded lifecycle transition.
type Entry struct {
	Seq        int64
	EventID    string
	Event      string
	JobID      string
	Version    string
	FromStatus queue.Status
	ToStatus   queue.Status
	WorkerID   string
	At         time.Time
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	JobID   string
	Version string
	Limit   int
}

// Recorder is implemented by anything that accepts journal entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Journal manages the transition log backed by SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := retryOnBusy(ctx, func() error { return j.initSchema(ctx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends entry. A missing EventID is generated and a zero At
// defaults to the current time.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(entry.Event) == "" {
		return errors.New("journal entry requires an event")
	}
	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	err := retryOnBusy(ctx, func() error {
		_, execErr := j.db.ExecContext(ctx,
			`INSERT INTO transitions (event_id, event, job_id, version, from_status, to_status, worker_id, at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.EventID,
			entry.Event,
			entry.JobID,
			entry.Version,
			nullableString(string(entry.FromStatus)),
			string(entry.ToStatus),
			nullableString(entry.WorkerID),
			queue.FormatTime(entry.At),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("record %s event: %w", entry.Event, err)
	}
	return nil
}

// List returns entries in recording order. When Limit is set, the most recent
// Limit entries are returned, still oldest first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.JobID != "" {
		clauses = append(clauses, "job_id = ?")
		args = append(args, filter.JobID)
	}
	if filter.Version != "" {
		clauses = append(clauses, "version = ?")
		args = append(args, filter.Version)
	}

	query := `SELECT seq, event_id, event, job_id, version, from_status, to_status, worker_id, at FROM transitions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var entries []Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := j.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}

	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry    Entry
		from     sql.NullString
		worker   sql.NullString
		to       string
		recorded string
	)
	if err := rows.Scan(&entry.Seq, &entry.EventID, &entry.Event, &entry.JobID, &entry.Version, &from, &to, &worker, &recorded); err != nil {
		return Entry{}, err
	}
	entry.FromStatus = queue.Status(from.String)
	entry.ToStatus = queue.Status(to)
	entry.WorkerID = worker.String
	if at, err := queue.ParseTime(recorded); err == nil {
		entry.At = at
	}
	return entry, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
