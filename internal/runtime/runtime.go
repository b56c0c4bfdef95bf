package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/commitlog"
	cfgpkg "github.com/hyperrixel/logos/internal/config"
	"github.com/hyperrixel/logos/internal/ingest"
	"github.com/hyperrixel/logos/internal/metrics"
	"github.com/hyperrixel/logos/internal/router"
	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	// DataDir is the store location. Required.
	DataDir string
	// Config tunes the components; zero value falls back to defaults.
	Config cfgpkg.Config
	// Logger is the process logger; nil builds one from Config.Log.
	Logger logpkg.Logger
}

// Runtime wires storage, access and the entry pipeline for a single-node
// instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger logpkg.Logger

	met     *metrics.Metrics
	promReg *prometheus.Registry

	log      *commitlog.Log
	acl      *access.Registry
	engine   *access.Engine
	presence *access.Presence
	blobs    *ingest.BlobRegistry
	pipeline *ingest.Pipeline
	router   *router.Router
}

// Open initializes storage and wires every component. Bootstrap admins
// from the config are ensured before the runtime is returned, so an
// empty store is administrable from the first request.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg.PayloadMaxBytes <= 0 {
		cfg.PayloadMaxBytes = cfgpkg.Default().PayloadMaxBytes
	}
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.NewFromConfig(cfg.Log)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	mode, interval, err := fsyncOptions(cfg)
	if err != nil {
		return nil, err
	}

	met := metrics.NewMetrics()
	promReg := prometheus.NewRegistry()
	if err := met.Register(promReg); err != nil {
		return nil, err
	}

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         mode,
		FsyncInterval: interval,
		Metrics:       met,
	})
	if err != nil {
		return nil, err
	}

	clog, err := commitlog.Open(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	acl, err := access.OpenRegistry(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine := access.NewEngine(acl)
	presence := access.NewPresence(nil)
	blobs := ingest.NewBlobRegistry(db)

	rt := router.New(router.Options{
		Log:      clog,
		Engine:   engine,
		Presence: presence,
		Metrics:  met,
		Logger:   logger,
		QueueLen: cfg.SubscriberQueueLen,
	})
	pipe := ingest.New(ingest.Options{
		Log:        clog,
		Engine:     engine,
		Blobs:      blobs,
		Presence:   presence,
		Dispatcher: rt,
		Metrics:    met,
		Logger:     logger,
	})

	ctx := context.Background()
	for _, a := range cfg.BootstrapAdmins {
		if _, err := acl.EnsureAdmin(ctx, a.ID, a.DisplayName); err != nil {
			db.Close()
			return nil, fmt.Errorf("bootstrap admin %q: %w", a.ID, err)
		}
	}

	return &Runtime{
		db:       db,
		config:   cfg,
		logger:   logger,
		met:      met,
		promReg:  promReg,
		log:      clog,
		acl:      acl,
		engine:   engine,
		presence: presence,
		blobs:    blobs,
		pipeline: pipe,
		router:   rt,
	}, nil
}

// fsyncOptions maps the config's fsync mode string onto store options.
func fsyncOptions(cfg cfgpkg.Config) (pebblestore.FsyncMode, time.Duration, error) {
	interval := time.Duration(cfg.FsyncIntervalMs) * time.Millisecond
	switch cfg.Fsync {
	case "", "always":
		return pebblestore.FsyncModeAlways, interval, nil
	case "interval":
		return pebblestore.FsyncModeInterval, interval, nil
	case "never":
		return pebblestore.FsyncModeNever, interval, nil
	default:
		return 0, 0, fmt.Errorf("invalid fsync mode %q; use always|interval|never", cfg.Fsync)
	}
}

// Close closes underlying resources. Transports must stop serving before
// Close so no reads race the store shutdown.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// Log exposes the commit log for reads.
func (r *Runtime) Log() *commitlog.Log { return r.log }

// Access exposes the principal/rule registry.
func (r *Runtime) Access() *access.Registry { return r.acl }

// Engine exposes the authorization engine.
func (r *Runtime) Engine() *access.Engine { return r.engine }

// Presence exposes the live presence tracker.
func (r *Runtime) Presence() *access.Presence { return r.presence }

// Blobs exposes the attachment blob registry.
func (r *Runtime) Blobs() *ingest.BlobRegistry { return r.blobs }

// Ingest exposes the submission pipeline.
func (r *Runtime) Ingest() *ingest.Pipeline { return r.pipeline }

// Router exposes the live fan-out router.
func (r *Runtime) Router() *router.Router { return r.router }

// MetricsRegistry exposes the Prometheus registry for the /metrics
// endpoint.
func (r *Runtime) MetricsRegistry() *prometheus.Registry { return r.promReg }

// Logger returns the process logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
