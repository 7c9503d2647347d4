package commands

import (
	"context"
	"time"

	"github.com/scopebridge/vxi11/config"
	"github.com/scopebridge/vxi11/instrument"
	"github.com/scopebridge/vxi11/internal/logger"
	"github.com/scopebridge/vxi11/internal/metrics"
	"github.com/scopebridge/vxi11/portmap"
	"github.com/scopebridge/vxi11/vxi11"
)

// loadConfig resolves the layered config (flags > env > file > defaults)
// and applies its logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	_ = logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, nil
}

// installMetrics wires a process-wide Prometheus registry into every
// package that exposes a UseMetrics hook, when cfg.Metrics.Enabled.
func installMetrics(cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}
	m := metrics.New(prometheusDefaultRegisterer())
	vxi11.UseMetrics(m)
	portmap.UseMetrics(m)
	if cfg.Metrics.ListenAddr != "" {
		serveMetrics(cfg.Metrics.ListenAddr)
	}
}

// connect opens an instrument.Instrument at addr using cfg's connect
// section, applying deviceName if non-empty.
func connect(ctx context.Context, addr, deviceName string, cfg *config.Config) (*instrument.Instrument, error) {
	opts := instrument.Options{
		Device:         deviceName,
		ConnectTimeout: cfg.Connect.ConnectTimeout,
		IOTimeout:      cfg.Connect.IOTimeout,
		LockTimeout:    cfg.Connect.LockTimeout,
	}
	return instrument.Connect(ctx, addr, opts)
}

// withTimeout is a small helper so subcommands share one cancellation
// pattern for their top-level operation.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(parent, d)
}
