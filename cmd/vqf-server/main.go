// main.go is the entry point for the vqf server. It wires together the
// filter, the optional snapshot persistence layer, metrics, and the network
// server. A vector quotient filter has no continuous journal format, so
// durability here means a full snapshot written on shutdown rather than
// append-only replay.
//
// Startup Sequence
// ================
//
// If -snapshot names an existing file we load the filter from that
// snapshot; otherwise we construct an empty filter sized by -slots.
// This happens before the listener opens, so there is no need to guard
// filter access during the load phase. Only after the filter is ready do we
// register it with the metrics registry and start accepting connections.
//
// Durability Policy
// ==================
//
// There is no background fsync loop: the filter is saved once, on clean
// shutdown (SIGINT/SIGTERM), by writing a full snapshot to -snapshot. A
// crash loses everything since the last save — there is no intermediate
// journal to replay. Operators who need tighter durability should save
// snapshots on a shorter cadence externally, or accept the filter as a
// best-effort cache.
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"vqf.sievelabs.dev/internal/persist"
	"vqf.sievelabs.dev/internal/vqf"
)

type config struct {
	port            int
	maxConnections  int
	shutdownTimeout time.Duration
	idleTimeout     time.Duration
	slots           uint64
	snapshotPath    string
	metricsAddr     string
}

type application struct {
	config      config
	logger      *slog.Logger
	listener    net.Listener
	filter      *vqf.Filter
	router      *Router
	metrics     *Metrics
	readyCh     chan struct{}
	wg          sync.WaitGroup
	connLimiter chan struct{}
	fs          afero.Fs
}

func main() {
	var cfg config

	flag.IntVar(&cfg.port, "port", 6480, "TCP server port")
	flag.IntVar(&cfg.maxConnections, "max-conn", 100, "Maximum concurrent connections")
	flag.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", 0, "Idle client connection timeout (0 for no timeout)")
	flag.Uint64Var(&cfg.slots, "slots", 1<<20, "Target filter capacity, used only when no snapshot is loaded")
	flag.StringVar(&cfg.snapshotPath, "snapshot", "", "Snapshot file to load on startup and save on shutdown (empty disables persistence)")
	flag.StringVar(&cfg.metricsAddr, "metrics-addr", ":9480", "Address to serve Prometheus metrics on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	app := &application{
		config:      cfg,
		logger:      logger,
		connLimiter: make(chan struct{}, cfg.maxConnections),
		fs:          afero.NewOsFs(),
	}

	if cfg.snapshotPath != "" {
		if exists, _ := afero.Exists(app.fs, cfg.snapshotPath); exists {
			f, err := persist.Load(app.fs, cfg.snapshotPath)
			if err != nil {
				logger.Error("failed to load snapshot", "error", err, "path", cfg.snapshotPath)
				os.Exit(1)
			}
			logger.Info("loaded snapshot", "path", cfg.snapshotPath, "nelts", f.Len(), "nslots", f.NSlots())
			app.filter = f
		}
	}

	if app.filter == nil {
		app.filter = vqf.New(cfg.slots)
		logger.Debug("allocated filter", "requested_slots", cfg.slots, "nblocks", app.filter.NumBlocks(), "range", app.filter.RangeBuckets())
	}

	app.router = app.commands()

	reg := prometheus.NewRegistry()
	app.metrics = NewMetrics(reg, app.filter)

	go func() {
		logger.Info("serving metrics", "address", cfg.metricsAddr)
		if err := serveMetrics(cfg.metricsAddr, reg); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	defer func() {
		if cfg.snapshotPath == "" {
			logger.Info("shutting down, persistence disabled")
			return
		}
		logger.Info("shutting down, saving snapshot...", "path", cfg.snapshotPath)
		if err := persist.Save(app.fs, cfg.snapshotPath, app.filter); err != nil {
			logger.Error("failed to save snapshot on exit", "error", err)
		}
	}()

	if err := app.serve(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
