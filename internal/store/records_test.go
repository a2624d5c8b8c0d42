package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/punchamoorthee/payflow/internal/domain"
)

// exerciseRecordStore runs the behavior every backend must share.
func exerciseRecordStore(t *testing.T, s RecordStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	recs := []domain.LogRecord{
		{Service: "payment", Level: domain.LevelInfo, Message: "payment created", Timestamp: base},
		{Service: "payment", Level: domain.LevelWarning, Message: "notification failed", Details: map[string]any{"template": "payment_created"}, Timestamp: base.Add(time.Minute)},
		{Service: "mailer", Level: domain.LevelInfo, Message: "email sent", Timestamp: base.Add(2 * time.Minute)},
		{Service: "payment", Level: domain.LevelInfo, Message: "payment paid", Timestamp: base.Add(3 * time.Minute)},
	}
	for _, r := range recs {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	t.Run("all for service", func(t *testing.T) {
		page, err := s.Query(ctx, domain.LogQuery{Service: "payment", Limit: 100})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if page.Total != 3 || len(page.Logs) != 3 {
			t.Fatalf("total=%d len=%d, want 3/3", page.Total, len(page.Logs))
		}
		if page.Logs[0].Message != "payment created" || page.Logs[2].Message != "payment paid" {
			t.Errorf("not in insertion order: %+v", page.Logs)
		}
		if page.Logs[1].Details["template"] != "payment_created" {
			t.Errorf("details = %v", page.Logs[1].Details)
		}
	})

	t.Run("level filter", func(t *testing.T) {
		page, _ := s.Query(ctx, domain.LogQuery{Service: "payment", Level: domain.LevelInfo, Limit: 100})
		if page.Total != 2 {
			t.Errorf("total = %d, want 2", page.Total)
		}
	})

	t.Run("time window", func(t *testing.T) {
		page, _ := s.Query(ctx, domain.LogQuery{Service: "payment", Start: base.Add(30 * time.Second), End: base.Add(5 * time.Minute), Limit: 100})
		if page.Total != 2 {
			t.Errorf("total = %d, want 2", page.Total)
		}
	})

	t.Run("substring", func(t *testing.T) {
		page, _ := s.Query(ctx, domain.LogQuery{Service: "payment", Contains: "paid", Limit: 100})
		if page.Total != 1 || page.Logs[0].Message != "payment paid" {
			t.Errorf("page = %+v", page)
		}
	})

	t.Run("pagination counts filtered set", func(t *testing.T) {
		page, _ := s.Query(ctx, domain.LogQuery{Service: "payment", Limit: 1, Offset: 1})
		if page.Total != 3 {
			t.Errorf("total = %d, want 3", page.Total)
		}
		if len(page.Logs) != 1 || page.Logs[0].Message != "notification failed" {
			t.Errorf("logs = %+v", page.Logs)
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		page, err := s.Query(ctx, domain.LogQuery{Service: "nobody", Limit: 10})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if page.Total != 0 || page.Logs == nil {
			t.Errorf("page = %+v, want empty non-nil", page)
		}
	})
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), DefaultSegmentBytes, DefaultSegments)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	exerciseRecordStore(t, s)
}

func TestFileStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 200, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		rec := domain.LogRecord{Service: "payment", Level: domain.LevelInfo, Message: fmt.Sprintf("msg-%02d", i), Timestamp: time.Now()}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "payment.log.3")); !os.IsNotExist(err) {
		t.Errorf("segment beyond retention exists: %v", err)
	}
	for _, name := range []string{"payment.log", "payment.log.1", "payment.log.2"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() > 200 {
			t.Errorf("%s size = %d, want <= 200", name, info.Size())
		}
	}

	page, err := s.Query(ctx, domain.LogQuery{Service: "payment"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if page.Total == 0 || page.Total >= 20 {
		t.Fatalf("total = %d, want some records dropped", page.Total)
	}
	last := page.Logs[len(page.Logs)-1]
	if last.Message != "msg-19" {
		t.Errorf("last message = %q, want msg-19", last.Message)
	}
	for i := 1; i < len(page.Logs); i++ {
		if page.Logs[i-1].Message >= page.Logs[i].Message {
			t.Errorf("records out of order at %d: %q >= %q", i, page.Logs[i-1].Message, page.Logs[i].Message)
		}
	}
}

func TestFileStore_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, _ := NewFileStore(dir, 0, 0)
	s.Append(ctx, domain.LogRecord{Service: "payment", Level: domain.LevelInfo, Message: "first", Timestamp: time.Now()})
	s.Close()

	s, _ = NewFileStore(dir, 0, 0)
	defer s.Close()
	s.Append(ctx, domain.LogRecord{Service: "payment", Level: domain.LevelInfo, Message: "second", Timestamp: time.Now()})

	page, _ := s.Query(ctx, domain.LogQuery{Service: "payment"})
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	exerciseRecordStore(t, s)
}

func TestSQLiteStore_CorruptDetails(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO log_records (service, level, message, details, ts) VALUES (?, ?, ?, ?, ?)",
		"payment", "INFO", "half written", `{"payment_id":`, time.Now().UnixMicro()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Query(ctx, domain.LogQuery{Service: "payment"}); err == nil || !strings.Contains(err.Error(), "decode details") {
		t.Errorf("err = %v, want decode details error", err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PAYFLOW_TEST_DB")
	if dsn == "" {
		t.Skip("PAYFLOW_TEST_DB not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if _, err := s.Db.Exec(ctx, "TRUNCATE log_records"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseRecordStore(t, s)
}
