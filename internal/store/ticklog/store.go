// Package ticklog keeps a queryable history of allocation loop reports.
package ticklog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"giftbuyer/internal/buyer"

	_ "modernc.org/sqlite"
)

const maxListLimit = 500

// Store writes tick reports to SQLite. Unless persistAll is set, routine
// polls with nothing to show are dropped.
type Store struct {
	mu         sync.Mutex
	db         *sql.DB
	path       string
	persistAll bool
}

func New(path string, persistAll bool) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("tick log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, persistAll: persistAll}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tick_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			current_ids TEXT,
			new_ids TEXT,
			known_count INTEGER NOT NULL DEFAULT 0,
			available INTEGER NOT NULL DEFAULT 0,
			open_invoices INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			purchased INTEGER NOT NULL DEFAULT 0,
			declined INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			retired TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tick_reports_ts_id ON tick_reports(ts DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("tick log schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("tick log store is closed")
	}
	return s.db, nil
}

// Publish implements buyer.ReportSink.
func (s *Store) Publish(ctx context.Context, r buyer.Report) error {
	if !s.persistAll && !r.Interesting() {
		return nil
	}
	_, err := s.Insert(ctx, r)
	return err
}

func (s *Store) Insert(ctx context.Context, r buyer.Report) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var kind, msg string
	if r.Error != nil {
		kind, msg = r.Error.Kind, r.Error.Message
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO tick_reports
			(tick, ts, error_kind, error_message, current_ids, new_ids, known_count, available,
			 open_invoices, attempts, purchased, declined, failed, retired, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Tick,
		ts.UnixMilli(),
		kind,
		msg,
		encodeIDs(r.CurrentIDs),
		encodeIDs(r.NewIDs),
		len(r.KnownIDs),
		r.Available,
		r.OpenInvoices,
		r.Attempts,
		r.Purchased,
		r.Declined,
		r.Failed,
		encodeIDs(r.Retired),
		r.Duration.Milliseconds(),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// Entry is a stored report. KnownCount replaces the full known id list.
type Entry struct {
	ID         int64        `json:"id"`
	Report     buyer.Report `json:"report"`
	KnownCount int          `json:"known_count"`
}

// Query filters the history. ErrorsOnly keeps failed ticks only.
type Query struct {
	Limit      int
	Offset     int
	ErrorsOnly bool
}

func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	var sb strings.Builder
	sb.WriteString(`SELECT id, tick, ts, error_kind, error_message, current_ids, new_ids, known_count,
		available, open_invoices, attempts, purchased, declined, failed, retired, duration_ms
		FROM tick_reports`)
	if q.ErrorsOnly {
		sb.WriteString(" WHERE error_kind IS NOT NULL AND error_kind <> ''")
	}
	sb.WriteString(" ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?")
	rows, err := db.QueryContext(ctx, sb.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                       Entry
		ts, durationMS          int64
		kind, msg               sql.NullString
		current, fresh, retired sql.NullString
	)
	r := &e.Report
	if err := row.Scan(&e.ID, &r.Tick, &ts, &kind, &msg, &current, &fresh, &e.KnownCount,
		&r.Available, &r.OpenInvoices, &r.Attempts, &r.Purchased, &r.Declined, &r.Failed,
		&retired, &durationMS); err != nil {
		return Entry{}, err
	}
	r.Timestamp = time.UnixMilli(ts).UTC()
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if kind.String != "" {
		r.Error = &buyer.ReportError{Kind: kind.String, Message: msg.String}
	}
	r.CurrentIDs = decodeIDs(current.String)
	r.NewIDs = decodeIDs(fresh.String)
	r.Retired = decodeIDs(retired.String)
	return e, nil
}

func encodeIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
