package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/punchamoorthee/payflow/internal/domain"
)

// PostgresStore is the log sink backend for deployments with a shared database.
type PostgresStore struct {
	Db *pgxpool.Pool
}

var _ RecordStore = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrate(ctx, db, goose.DialectPostgres, "postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{Db: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.Db.Close()
	return nil
}

// Append inserts one record.
func (s *PostgresStore) Append(ctx context.Context, rec domain.LogRecord) error {
	details, err := encodeDetails(rec.Details)
	if err != nil {
		return err
	}
	_, err = s.Db.Exec(ctx,
		"INSERT INTO log_records (service, level, message, details, ts) VALUES ($1, $2, $3, $4, $5)",
		rec.Service, string(rec.Level), rec.Message, details, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Query retrieves one filtered page in insertion order.
func (s *PostgresStore) Query(ctx context.Context, q domain.LogQuery) (domain.LogPage, error) {
	page := domain.LogPage{Logs: []domain.LogRecord{}}

	where := []string{"service = $1"}
	args := []any{q.Service}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q.Level != "" {
		add("level = $%d", string(q.Level))
	}
	if !q.Start.IsZero() {
		add("ts >= $%d", q.Start)
	}
	if !q.End.IsZero() {
		add("ts <= $%d", q.End)
	}
	if q.Contains != "" {
		add("strpos(message, $%d) > 0", q.Contains)
	}
	cond := strings.Join(where, " AND ")

	if err := s.Db.QueryRow(ctx, "SELECT COUNT(*) FROM log_records WHERE "+cond, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count records: %w", err)
	}

	sql := "SELECT service, level, message, details, ts FROM log_records WHERE " + cond + " ORDER BY id"
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.Db.Query(ctx, sql, args...)
	if err != nil {
		return page, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     domain.LogRecord
			level   string
			details []byte
		)
		if err := rows.Scan(&rec.Service, &level, &rec.Message, &details, &rec.Timestamp); err != nil {
			return page, fmt.Errorf("scan record: %w", err)
		}
		rec.Level = domain.LogLevel(level)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return page, fmt.Errorf("decode details: %w", err)
			}
		}
		page.Logs = append(page.Logs, rec)
	}
	return page, rows.Err()
}
