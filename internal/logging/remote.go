package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/punchamoorthee/payflow/internal/models"
)

// Shipper delivers one record to the log sink.
type Shipper interface {
	Log(ctx context.Context, entry models.LogEntry) error
}

// RemoteHandler forwards records to the log sink on a detached goroutine.
// Delivery is best effort: failures are dropped, since the local handler has
// already written the record.
type RemoteHandler struct {
	service string
	shipper Shipper
	level   slog.Leveler
	timeout time.Duration

	prefix string
	attrs  map[string]any
	wg     *sync.WaitGroup
}

func NewRemoteHandler(service string, shipper Shipper, level slog.Leveler, timeout time.Duration) *RemoteHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RemoteHandler{
		service: service,
		shipper: shipper,
		level:   level,
		timeout: timeout,
		attrs:   map[string]any{},
		wg:      &sync.WaitGroup{},
	}
}

func (h *RemoteHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *RemoteHandler) Handle(ctx context.Context, r slog.Record) error {
	details := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		details[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(details, h.prefix, a)
		return true
	})
	if len(details) == 0 {
		details = nil
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := models.LogEntry{
		Service:   h.service,
		Level:     LevelName(r.Level),
		Message:   r.Message,
		Details:   details,
		Timestamp: &models.Timestamp{Time: ts},
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()
		_ = h.shipper.Log(ctx, entry)
	}()
	return nil
}

func (h *RemoteHandler) collect(dst map[string]any, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			h.collect(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = attrValue(v)
}

func (h *RemoteHandler) clone() *RemoteHandler {
	c := *h
	c.attrs = make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		c.attrs[k] = v
	}
	return &c
}

func (h *RemoteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		c.collect(c.attrs, c.prefix, a)
	}
	return c
}

func (h *RemoteHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

// Wait blocks until every forwarded record has been delivered or dropped.
func (h *RemoteHandler) Wait() { h.wg.Wait() }

// LevelName maps slog levels onto the log sink's level names.
func LevelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
