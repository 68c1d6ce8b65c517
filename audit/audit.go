// Package audit keeps a trail of the operations served by relocate in
// SQLite. Entries are written in batches by a background goroutine.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/relocate/idgen"
)

// Schema is the DDL of the audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id    TEXT PRIMARY KEY,
    timestamp   INTEGER NOT NULL,
    op          TEXT NOT NULL,
    transport   TEXT NOT NULL,
    user_id     TEXT NOT NULL DEFAULT '',
    request_id  TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_op ON audit_log(op, timestamp DESC);
`

// Statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const insertSQL = `INSERT INTO audit_log
	(entry_id, timestamp, op, transport, user_id, request_id, detail, status, error, duration_ms)
	VALUES (?,?,?,?,?,?,?,?,?,?)`

// Entry is one audited operation. Timestamp is in milliseconds.
type Entry struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	Op         string `json:"op"`
	Transport  string `json:"transport"`
	UserID     string `json:"user_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Config tunes a Logger.
type Config struct {
	// Buffer is the queue size of LogAsync. Default: 1000.
	Buffer int
	// FlushEvery bounds how long a queued entry waits. Default: 5s.
	FlushEvery time.Duration
	// BatchSize triggers an early flush. Default: 100.
	BatchSize int
	Logger    *slog.Logger
	now       func() time.Time
}

func (c *Config) defaults() {
	if c.Buffer <= 0 {
		c.Buffer = 1000
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// Logger persists audit entries.
type Logger struct {
	db   *sql.DB
	cfg  Config
	ch   chan *Entry
	stop chan struct{}
	done chan struct{}
}

// New applies Schema to db and starts the flush loop. Close must be called
// to drain pending entries.
func New(db *sql.DB, cfg Config) (*Logger, error) {
	cfg.defaults()
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	l := &Logger{
		db:   db,
		cfg:  cfg,
		ch:   make(chan *Entry, cfg.Buffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.flushLoop()
	return l, nil
}

// Log inserts e synchronously.
func (l *Logger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	_, err := l.db.ExecContext(ctx, insertSQL, args(e)...)
	return err
}

// LogAsync queues e, falling back to a synchronous insert when the queue
// is full.
func (l *Logger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	select {
	case l.ch <- e:
	default:
		l.cfg.Logger.Warn("audit: buffer full, sync fallback", "op", e.Op)
		if err := l.Log(context.Background(), e); err != nil {
			l.cfg.Logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Recent returns up to limit entries, newest first. A non-empty op
// restricts the result to that operation.
func (l *Logger) Recent(ctx context.Context, op string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT entry_id, timestamp, op, transport, user_id, request_id, detail, status, error, duration_ms
		FROM audit_log`
	var params []any
	if op != "" {
		q += ` WHERE op = ?`
		params = append(params, op)
	}
	q += ` ORDER BY timestamp DESC, entry_id DESC LIMIT ?`
	params = append(params, limit)

	rows, err := l.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Op, &e.Transport, &e.UserID,
			&e.RequestID, &e.Detail, &e.Status, &e.Error, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than retention and reports how many went.
func (l *Logger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := l.cfg.now().Add(-retention).UnixMilli()
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the queue and stops the flush loop.
func (l *Logger) Close() error {
	close(l.stop)
	<-l.done
	return nil
}

func (l *Logger) fillDefaults(e *Entry) {
	if e.ID == "" {
		e.ID = idgen.Audit()
	}
	if e.Timestamp == 0 {
		e.Timestamp = l.cfg.now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = StatusError
		} else {
			e.Status = StatusSuccess
		}
	}
}

func (l *Logger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.FlushEvery)
	defer ticker.Stop()
	batch := make([]*Entry, 0, l.cfg.BatchSize)

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					l.flush(batch)
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= l.cfg.BatchSize {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			l.flush(batch)
			batch = batch[:0]
		}
	}
}

func (l *Logger) flush(batch []*Entry) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		l.cfg.Logger.Error("audit: begin tx", "error", err)
		return
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		l.cfg.Logger.Error("audit: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, args(e)...); err != nil {
			l.cfg.Logger.Error("audit: insert", "error", err, "entry_id", e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		l.cfg.Logger.Error("audit: commit", "error", err)
	}
}

func args(e *Entry) []any {
	return []any{e.ID, e.Timestamp, e.Op, e.Transport, e.UserID, e.RequestID,
		e.Detail, e.Status, e.Error, e.DurationMs}
}
