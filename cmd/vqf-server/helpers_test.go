package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"vqf.sievelabs.dev/internal/vqf"
)

// newTestApp creates a valid application instance for use in tests,
// centralizing the setup every handler test needs.
func newTestApp(t *testing.T) *application {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const maxConnections = 10

	cfg := config{
		port:           0, // random free port
		maxConnections: maxConnections,
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		filter:      vqf.New(1024),
		readyCh:     make(chan struct{}),
		connLimiter: make(chan struct{}, cfg.maxConnections),
		fs:          afero.NewMemMapFs(),
	}
	app.metrics = NewMetrics(prometheus.NewRegistry(), app.filter)
	app.router = app.commands()

	return app
}
