// Package logsink is the central log ingestion and query component. Records
// are validated here and handed to a store.RecordStore backend.
package logsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/store"
)

const (
	DefaultQueryLimit = 100
	DefaultQueueSize  = 1024
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("log sink closed")

var serviceName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var appendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payflow_logsink_records_total",
	Help: "Log records appended, labeled by level and result",
}, []string{"level", "result"})

// Entry is an unvalidated record as received from a producer.
type Entry struct {
	Service   string
	Level     string
	Message   string
	Details   map[string]any
	Timestamp time.Time
}

// Options configures the background writer.
type Options struct {
	// Async routes Submit through a single background writer.
	Async bool
	// QueueSize bounds the writer's queue. When it is full Submit writes inline.
	QueueSize int
}

type job struct {
	rec   domain.LogRecord
	flush chan struct{}
}

type Sink struct {
	store  store.RecordStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

func New(rs store.RecordStore, logger *slog.Logger, opts Options) *Sink {
	s := &Sink{store: rs, logger: logger, now: time.Now}
	if opts.Async {
		size := opts.QueueSize
		if size <= 0 {
			size = DefaultQueueSize
		}
		s.queue = make(chan job, size)
		s.done = make(chan struct{})
		go s.run()
	}
	return s
}

// Validate normalizes an entry into a record: the service name must be a
// plain identifier, the level one of the four known levels, and a missing
// timestamp becomes the receipt time.
func (s *Sink) Validate(e Entry) (domain.LogRecord, error) {
	if !serviceName.MatchString(e.Service) {
		return domain.LogRecord{}, fmt.Errorf("%w: invalid service name %q", domain.ErrValidation, e.Service)
	}
	level, err := domain.ParseLogLevel(e.Level)
	if err != nil {
		return domain.LogRecord{}, err
	}
	if e.Message == "" {
		return domain.LogRecord{}, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	return domain.LogRecord{
		Service:   e.Service,
		Level:     level,
		Message:   e.Message,
		Details:   e.Details,
		Timestamp: ts.UTC(),
	}, nil
}

// Submit validates e and queues it for the background writer. Without a
// writer, or when the queue is full, the record is written inline.
func (s *Sink) Submit(ctx context.Context, e Entry) (domain.LogRecord, error) {
	rec, err := s.Validate(e)
	if err != nil {
		return domain.LogRecord{}, err
	}
	return rec, s.submit(ctx, rec)
}

// SubmitBatch validates every entry first and then submits each record on its
// own. A validation failure rejects the whole batch; a write failure stops at
// the failing record, leaving earlier ones in place.
func (s *Sink) SubmitBatch(ctx context.Context, entries []Entry) (int, error) {
	recs := make([]domain.LogRecord, 0, len(entries))
	for i, e := range entries {
		rec, err := s.Validate(e)
		if err != nil {
			return 0, fmt.Errorf("logs[%d]: %w", i, err)
		}
		recs = append(recs, rec)
	}
	for i, rec := range recs {
		if err := s.submit(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

func (s *Sink) submit(ctx context.Context, rec domain.LogRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.queue != nil {
		select {
		case s.queue <- job{rec: rec}:
			return nil
		default:
			s.logger.Warn("log queue full, writing inline", "service", rec.Service)
		}
	}
	return s.write(ctx, rec)
}

func (s *Sink) write(ctx context.Context, rec domain.LogRecord) error {
	if err := s.store.Append(ctx, rec); err != nil {
		appendsTotal.WithLabelValues(string(rec.Level), "error").Inc()
		return fmt.Errorf("append %s record: %w", rec.Service, err)
	}
	appendsTotal.WithLabelValues(string(rec.Level), "ok").Inc()
	return nil
}

func (s *Sink) run() {
	defer close(s.done)
	for j := range s.queue {
		if j.flush != nil {
			close(j.flush)
			continue
		}
		if err := s.write(context.Background(), j.rec); err != nil {
			s.logger.Error("background log write failed", "service", j.rec.Service, "error", err)
		}
	}
}

// Flush blocks until every record submitted before the call is written.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.RLock()
	if s.closed || s.queue == nil {
		s.mu.RUnlock()
		return nil
	}
	marker := make(chan struct{})
	select {
	case s.queue <- job{flush: marker}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query returns one page of a service's records in insertion order. Records
// submitted before the call are flushed first.
func (s *Sink) Query(ctx context.Context, q domain.LogQuery) (domain.LogPage, error) {
	if !serviceName.MatchString(q.Service) {
		return domain.LogPage{}, fmt.Errorf("%w: invalid service name %q", domain.ErrValidation, q.Service)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return domain.LogPage{}, fmt.Errorf("%w: limit and offset must be non-negative", domain.ErrValidation)
	}
	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	if err := s.Flush(ctx); err != nil {
		return domain.LogPage{}, err
	}
	return s.store.Query(ctx, q)
}

// Health reports the sink's local time; the sink is live as long as it answers.
func (s *Sink) Health() time.Time { return s.now() }

// Close drains the queue and closes the backend.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.queue != nil {
		close(s.queue)
	}
	s.mu.Unlock()

	if s.done != nil {
		<-s.done
	}
	return s.store.Close()
}
