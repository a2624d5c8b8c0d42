package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/punchamoorthee/payflow/internal/domain"
)

// SQLiteStore keeps every service's records in one table of a local database.
type SQLiteStore struct {
	db *sql.DB
}

var _ RecordStore = (*SQLiteStore)(nil)

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec domain.LogRecord) error {
	details, err := encodeDetails(rec.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO log_records (service, level, message, details, ts) VALUES (?, ?, ?, ?, ?)",
		rec.Service, string(rec.Level), rec.Message, details, rec.Timestamp.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, q domain.LogQuery) (domain.LogPage, error) {
	page := domain.LogPage{Logs: []domain.LogRecord{}}

	where := []string{"service = ?"}
	args := []any{q.Service}
	if q.Level != "" {
		where = append(where, "level = ?")
		args = append(args, string(q.Level))
	}
	if !q.Start.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.Start.UnixMicro())
	}
	if !q.End.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, q.End.UnixMicro())
	}
	if q.Contains != "" {
		where = append(where, "instr(message, ?) > 0")
		args = append(args, q.Contains)
	}
	cond := strings.Join(where, " AND ")

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_records WHERE "+cond, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count records: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT service, level, message, details, ts FROM log_records WHERE "+cond+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, limit, q.Offset)...,
	)
	if err != nil {
		return page, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     domain.LogRecord
			level   string
			details sql.NullString
			ts      int64
		)
		if err := rows.Scan(&rec.Service, &level, &rec.Message, &details, &ts); err != nil {
			return page, fmt.Errorf("scan record: %w", err)
		}
		rec.Level = domain.LogLevel(level)
		rec.Timestamp = time.UnixMicro(ts).UTC()
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &rec.Details); err != nil {
				return page, fmt.Errorf("decode details: %w", err)
			}
		}
		page.Logs = append(page.Logs, rec)
	}
	return page, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeDetails(details map[string]any) (any, error) {
	if len(details) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return string(b), nil
}
