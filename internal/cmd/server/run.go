package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	cfgpkg "github.com/hyperrixel/logos/internal/config"
	"github.com/hyperrixel/logos/internal/runtime"
	httpserver "github.com/hyperrixel/logos/internal/server/http"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// Options configures one server process. Non-zero fields override the
// corresponding Config fields, so flags win over file and environment.
type Options struct {
	DataDir  string
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run opens the runtime, serves the HTTP API and blocks until ctx is
// cancelled, then shuts down in order: listener first, runtime last.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context so direct callers get signal
	// handling even without a signal-aware parent.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.HTTPAddr != "" {
		cfg.HTTPAddr = opts.HTTPAddr
	}
	storeDir := filepath.Join(cfgpkg.ResolveDataDir(cfg), "store")

	logger, err := logpkg.NewFromConfig(cfg.Log)
	if err != nil {
		// A bad log config should not keep the log service down.
		logger = logpkg.NewLogger(
			logpkg.WithLevel(logpkg.InfoLevel),
			logpkg.WithFormatter(&logpkg.TextFormatter{}))
		logger.Warn("invalid log config, using defaults", logpkg.Err(err))
	}
	// Stdlib loggers (Pebble's included) feed the same sink.
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting logos server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", storeDir),
		logpkg.Str("fsync", cfg.Fsync),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
		logpkg.Int("sub_queue", cfg.SubscriberQueueLen),
		logpkg.Int("flush_ms", cfg.FlushWindowMs),
	)

	hsrv := httpserver.New(rt, logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server error", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	// Stop accepting before the runtime closes under the handlers.
	hsrv.Close()
	wg.Wait()
	return nil
}
