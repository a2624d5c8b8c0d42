package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/punchamoorthee/payflow/internal/domain"
)

const (
	DefaultSegmentBytes = 10 * 1024 * 1024
	DefaultSegments     = 5
)

// FileStore writes one JSON-lines file per source service. When the active
// segment would exceed maxBytes it is rotated: <svc>.log becomes <svc>.log.1,
// .1 becomes .2 and so on, and the segment past maxSegments is dropped.
type FileStore struct {
	dir         string
	maxBytes    int64
	maxSegments int

	mu     sync.Mutex
	active map[string]*segment
}

type segment struct {
	f    *os.File
	size int64
}

var _ RecordStore = (*FileStore)(nil)

func NewFileStore(dir string, maxBytes int64, maxSegments int) (*FileStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultSegmentBytes
	}
	if maxSegments < 0 {
		maxSegments = DefaultSegments
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileStore{
		dir:         dir,
		maxBytes:    maxBytes,
		maxSegments: maxSegments,
		active:      make(map[string]*segment),
	}, nil
}

func (s *FileStore) path(service string, n int) string {
	base := filepath.Join(s.dir, service+".log")
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s.%d", base, n)
}

func (s *FileStore) Append(_ context.Context, rec domain.LogRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	seg, err := s.open(rec.Service)
	if err != nil {
		return err
	}
	if seg.size > 0 && seg.size+int64(len(line)) > s.maxBytes {
		if seg, err = s.rotate(rec.Service); err != nil {
			return err
		}
	}
	n, err := seg.f.Write(line)
	seg.size += int64(n)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *FileStore) open(service string) (*segment, error) {
	if seg, ok := s.active[service]; ok {
		return seg, nil
	}
	f, err := os.OpenFile(s.path(service, 0), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment: %w", err)
	}
	seg := &segment{f: f, size: info.Size()}
	s.active[service] = seg
	return seg, nil
}

func (s *FileStore) rotate(service string) (*segment, error) {
	if seg, ok := s.active[service]; ok {
		seg.f.Close()
		delete(s.active, service)
	}
	if s.maxSegments == 0 {
		if err := os.Remove(s.path(service, 0)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("drop segment: %w", err)
		}
		return s.open(service)
	}
	if err := os.Remove(s.path(service, s.maxSegments)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("drop oldest segment: %w", err)
	}
	for i := s.maxSegments - 1; i >= 0; i-- {
		err := os.Rename(s.path(service, i), s.path(service, i+1))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("rotate segment %d: %w", i, err)
		}
	}
	return s.open(service)
}

// Query scans the retained segments oldest first.
func (s *FileStore) Query(_ context.Context, q domain.LogQuery) (domain.LogPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := domain.LogPage{Logs: []domain.LogRecord{}}
	for i := s.maxSegments; i >= 0; i-- {
		f, err := os.Open(s.path(q.Service, i))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return page, fmt.Errorf("open segment: %w", err)
		}
		err = scanSegment(f, q, &page)
		f.Close()
		if err != nil {
			return page, err
		}
	}
	return page, nil
}

func scanSegment(f *os.File, q domain.LogQuery, page *domain.LogPage) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec domain.LogRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if !q.Match(rec) {
			continue
		}
		idx := page.Total
		page.Total++
		if idx < q.Offset {
			continue
		}
		if q.Limit > 0 && len(page.Logs) >= q.Limit {
			continue
		}
		page.Logs = append(page.Logs, rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read segment: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for svc, seg := range s.active {
		errs = append(errs, seg.f.Close())
		delete(s.active, svc)
	}
	return errors.Join(errs...)
}
