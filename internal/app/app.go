// Package app wires all Voxgate subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject mock providers via functional options (WithVAD,
// WithRecognizer). When an option is not provided, New creates real
// implementations via the config provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/asrlabs/voxgate/internal/config"
	"github.com/asrlabs/voxgate/internal/gateway"
	"github.com/asrlabs/voxgate/internal/health"
	"github.com/asrlabs/voxgate/internal/observe"
	"github.com/asrlabs/voxgate/internal/resilience"
	"github.com/asrlabs/voxgate/internal/segmenter"
	"github.com/asrlabs/voxgate/internal/session"
	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

// shutdownTimeout bounds the HTTP server drain when the run context ends.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes for the Voxgate gateway.
type App struct {
	cfg *config.Config

	vadEngine  vad.Engine
	recognizer recognizer.Provider

	metrics  *observe.Metrics
	registry *session.Registry
	gateway  *gateway.Server
	srv      *http.Server

	logLevel   *slog.LevelVar
	configPath string
	watcher    *config.Watcher

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithVAD injects a VAD engine instead of creating one from config.
func WithVAD(e vad.Engine) Option {
	return func(a *App) { a.vadEngine = e }
}

// WithRecognizer injects a recognition provider instead of creating one from
// config.
func WithRecognizer(p recognizer.Provider) Option {
	return func(a *App) { a.recognizer = p }
}

// WithLogLevelVar hands the App the level var backing the process logger so
// that config reloads can adjust verbosity at runtime.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigFile enables hot reload of the given config file while the App
// runs. Only log level changes apply to the running process; segmenter and
// limit changes apply to sessions created after the reload.
func WithConfigFile(path string) Option {
	return func(a *App) { a.configPath = path }
}

// New creates an App by wiring all subsystems together. Providers are built
// from the config registry unless injected via options. New performs all
// initialisation synchronously: telemetry setup, provider construction,
// session registry creation, and HTTP route registration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initObservability(ctx); err != nil {
		return nil, fmt.Errorf("app: init observability: %w", err)
	}
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}
	if err := a.initRegistry(); err != nil {
		return nil, fmt.Errorf("app: init session registry: %w", err)
	}
	a.initServer()

	return a, nil
}

// initObservability sets up the OTel SDK with the Prometheus exporter bridge
// and creates the shared metrics instruments.
func (a *App) initObservability(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxgate",
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initProviders builds the VAD engine and recognizer from the config registry
// for any slot not already injected, and wraps the recognizer in a failover
// group when fallbacks are configured.
func (a *App) initProviders() error {
	reg := DefaultProviderRegistry()

	if a.vadEngine == nil {
		entry := a.cfg.Providers.VAD
		if entry.Name == "" {
			entry.Name = "energy"
		}
		eng, err := reg.CreateVAD(entry)
		if err != nil {
			return err
		}
		a.vadEngine = eng
		slog.Info("created VAD provider", "name", entry.Name)
	}

	if a.recognizer == nil {
		entry := a.cfg.Providers.Recognizer
		if entry.Name == "" {
			return fmt.Errorf("providers.recognizer.name is required when no recognizer is injected")
		}
		rec, err := reg.CreateRecognizer(entry)
		if err != nil {
			return err
		}
		a.recognizer = rec
		slog.Info("created recognizer provider", "name", entry.Name, "model", entry.Model)
	}

	if fbs := a.cfg.Providers.RecognizerFallbacks; len(fbs) > 0 {
		primaryName := a.cfg.Providers.Recognizer.Name
		if primaryName == "" {
			primaryName = "primary"
		}
		group := resilience.NewRecognizerFallback(a.recognizer, primaryName, resilience.FallbackConfig{})
		for _, entry := range fbs {
			rec, err := reg.CreateRecognizer(entry)
			if err != nil {
				return fmt.Errorf("fallback recognizer %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, rec)
			slog.Info("registered fallback recognizer", "name", entry.Name, "model", entry.Model)
		}
		a.recognizer = group
	}

	return nil
}

// initRegistry creates the session registry from the loaded limits and
// segmenter settings.
func (a *App) initRegistry() error {
	reg, err := session.NewRegistry(session.RegistryConfig{
		VAD:           a.vadEngine,
		Recognizer:    a.recognizer,
		Segmenter:     SegmenterFromConfig(a.cfg.Segmenter),
		QueueSize:     a.cfg.Limits.QueueSize,
		MaxSessions:   a.cfg.Limits.MaxSessions,
		SweepInterval: time.Duration(a.cfg.Limits.SweepIntervalMs) * time.Millisecond,
		DefaultFormat: audio.Format{
			SampleRate: a.cfg.Audio.SampleRate,
			Channels:   a.cfg.Audio.Channels,
		},
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	a.registry = reg
	return nil
}

// initServer assembles the HTTP mux: gateway routes, health endpoints, and
// the Prometheus scrape endpoint.
func (a *App) initServer() {
	a.gateway = gateway.New(a.registry, gateway.WithMetrics(a.metrics))

	mux := http.NewServeMux()
	a.gateway.Register(mux)
	a.healthHandler().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// healthHandler builds the readiness checker set. Capacity is the only
// readiness signal: a gateway at its session limit should be rotated out of a
// load balancer pool rather than reject creates with 503s.
func (a *App) healthHandler() *health.Handler {
	return health.New(health.Checker{
		Name: "capacity",
		Check: func(context.Context) error {
			max := a.cfg.Limits.MaxSessions
			if max > 0 && a.registry.Len() >= max {
				return fmt.Errorf("session capacity reached (%d/%d)", a.registry.Len(), max)
			}
			return nil
		},
	})
}

// Run serves HTTP and runs the session sweeper until ctx is cancelled, then
// drains the server. It returns the first non-shutdown error from either
// loop, or nil on a clean stop.
func (a *App) Run(ctx context.Context) error {
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig)
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.registry.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("listening", "addr", a.srv.Addr, "tls", true)
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("listening", "addr", a.srv.Addr, "tls", false)
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(drainCtx); err != nil {
			slog.Warn("http server drain failed", "err", err)
		}
		return nil
	})

	return g.Wait()
}

// applyConfig is the config watcher callback. Address, TLS, and provider
// changes need a restart; they are logged and ignored here.
func (a *App) applyConfig(old, cfg *config.Config) {
	diff := config.Diff(old, cfg)
	if !diff.Changed() {
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.SegmenterChanged || diff.LimitsChanged {
		slog.Info("segmenter/limit changes apply to new sessions only")
	}

	a.cfg = cfg
}

// Shutdown stops the watcher, drains all live sessions, and runs the closers
// in order. It respects the context deadline: if ctx expires, remaining
// teardown is skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.registry.Len())

		if a.watcher != nil {
			a.watcher.Stop()
		}

		if err := a.registry.Shutdown(ctx); err != nil {
			slog.Warn("session drain incomplete", "err", err)
			shutdownErr = err
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// SegmenterFromConfig converts the YAML segmenter block into engine settings.
// The sample rate is filled in per session from its declared audio format.
func SegmenterFromConfig(c config.SegmenterConfig) segmenter.Config {
	return segmenter.Config{
		FrameSizeMs:   c.FrameSizeMs,
		Threshold:     c.Threshold,
		ExitThreshold: c.ExitThreshold,
		MinSilence:    time.Duration(c.MinSilenceMs) * time.Millisecond,
		Padding:       time.Duration(c.PaddingMs) * time.Millisecond,
	}
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
