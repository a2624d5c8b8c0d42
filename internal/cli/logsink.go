package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/payflow/internal/api"
	"github.com/punchamoorthee/payflow/internal/config"
	"github.com/punchamoorthee/payflow/internal/logsink"
	"github.com/punchamoorthee/payflow/internal/store"
)

var logsinkCmd = &cobra.Command{
	Use:   "logsink",
	Short: "Run the central log sink",
	RunE:  runLogSink,
}

func runLogSink(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The sink never ships its own records to itself.
	logger, _ := newLogger("logsink", cfg, false)

	rs, err := openRecordStore(cmd.Context(), cfg.LogSink)
	if err != nil {
		return err
	}
	sink := logsink.New(rs, logger, logsink.Options{Async: cfg.LogSink.Async, QueueSize: cfg.LogSink.QueueSize})
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("close log sink", "error", err)
		}
	}()

	logger.Info("log sink configured", "backend", cfg.LogSink.Backend, "async", cfg.LogSink.Async)
	return serve(cmd.Context(), logger, listenPort(cfg.LogSink.Port), api.NewLogSinkRouter(sink, logger))
}

func openRecordStore(ctx context.Context, cfg config.LogSinkConfig) (store.RecordStore, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return store.NewFileStore(cfg.Dir, cfg.MaxBytes, cfg.MaxSegments)
	case config.BackendSQLite:
		return store.NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		return store.NewPostgresStore(ctx, cfg.DBSource)
	}
	return nil, fmt.Errorf("unknown log sink backend %q", cfg.Backend)
}
