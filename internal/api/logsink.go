package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/logsink"
	"github.com/punchamoorthee/payflow/internal/models"
)

type LogSinkHandler struct {
	sink   *logsink.Sink
	logger *slog.Logger
}

func NewLogSinkHandler(s *logsink.Sink, logger *slog.Logger) *LogSinkHandler {
	return &LogSinkHandler{sink: s, logger: logger}
}

// NewLogSinkRouter serves log ingestion and queries.
func NewLogSinkRouter(s *logsink.Sink, logger *slog.Logger) *mux.Router {
	h := NewLogSinkHandler(s, logger)
	r := newRouter("logsink", logger, s.Health)

	r.HandleFunc("/log", h.LogHandler).Methods(http.MethodPost)
	r.HandleFunc("/log/batch", h.BatchHandler).Methods(http.MethodPost)
	r.HandleFunc("/logs/{service}", h.QueryHandler).Methods(http.MethodGet)
	return r
}

func toEntry(e models.LogEntry) logsink.Entry {
	out := logsink.Entry{Service: e.Service, Level: e.Level, Message: e.Message, Details: e.Details}
	if e.Timestamp != nil {
		out.Timestamp = e.Timestamp.Time
	}
	return out
}

func (h *LogSinkHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, logsink.ErrClosed) {
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	fail(w, r, h.logger, err)
}

func (h *LogSinkHandler) LogHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LogEntry
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.sink.Submit(r.Context(), toEntry(req)); err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.LogResponse{Status: "success"})
}

func (h *LogSinkHandler) BatchHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LogBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	entries := make([]logsink.Entry, 0, len(req.Logs))
	for _, e := range req.Logs {
		entries = append(entries, toEntry(e))
	}
	n, err := h.sink.SubmitBatch(r.Context(), entries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.LogBatchResponse{Status: "success", Count: n})
}

func (h *LogSinkHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseLogQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.sink.Query(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if page.Logs == nil {
		page.Logs = []domain.LogRecord{}
	}
	respondWithJSON(w, http.StatusOK, page)
}

func parseLogQuery(r *http.Request) (domain.LogQuery, error) {
	v := r.URL.Query()
	q := domain.LogQuery{Service: mux.Vars(r)["service"], Contains: v.Get("contains")}

	if s := v.Get("level"); s != "" {
		level, err := domain.ParseLogLevel(s)
		if err != nil {
			return q, err
		}
		q.Level = level
	}
	var err error
	if q.Start, err = parseQueryTime("start_time", v.Get("start_time")); err != nil {
		return q, err
	}
	if q.End, err = parseQueryTime("end_time", v.Get("end_time")); err != nil {
		return q, err
	}
	if q.Limit, err = parseQueryInt("limit", v.Get("limit")); err != nil {
		return q, err
	}
	if q.Offset, err = parseQueryInt("offset", v.Get("offset")); err != nil {
		return q, err
	}
	return q, nil
}

func parseQueryTime(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := models.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a valid timestamp", domain.ErrValidation, name, s)
	}
	return t, nil
}

func parseQueryInt(name, s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}
