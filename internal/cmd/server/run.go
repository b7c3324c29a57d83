package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cfgpkg "github.com/opaline-ai/spyglass/internal/config"
	"github.com/opaline-ai/spyglass/internal/hub"
	httpserver "github.com/opaline-ai/spyglass/internal/server/http"
	"github.com/opaline-ai/spyglass/internal/telemetry"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// Options configures Run. Non-empty fields override the loaded config.
type Options struct {
	HTTPAddr   string
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Config, when set, bypasses file and environment loading.
	Config *cfgpkg.Config
}

// Run starts the diagnostics server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg cfgpkg.Config
	if opts.Config != nil {
		cfg = *opts.Config
	} else {
		var err error
		if cfg, err = cfgpkg.Load(opts.ConfigPath); err != nil {
			return err
		}
		cfgpkg.FromEnv(&cfg)
	}
	if opts.HTTPAddr != "" {
		cfg.HTTPAddr = opts.HTTPAddr
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}

	// Process logger writes to the console only. The stream-facing
	// logger built below additionally republishes entries onto the hub.
	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  getenvDefault("SPYGLASS_LOG_LEVEL", cfg.Log.Level),
		Format: getenvDefault("SPYGLASS_LOG_FORMAT", cfg.Log.Format),
	})
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Log.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(procLogger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h := hub.New(hub.Options{
		Logger:            procLogger,
		BufferCapacity:    cfg.BufferCapacity,
		HistorySize:       cfg.HistorySize,
		SendTimeout:       cfg.SendTimeout(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		Metrics:           hub.NewMetrics(reg),
	})
	defer h.Close()

	// appLogger is what the rest of the process should log through:
	// every entry reaches both the console and connected observers.
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if cfg.Log.Format == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	appLogger := logpkg.NewLogger(
		logpkg.WithLevel(procLogger.GetLevel()),
		logpkg.WithFormatter(formatter),
		logpkg.WithOutput(logpkg.NewMultiOutput(logpkg.NewConsoleOutput(), hub.NewEventOutput(h))),
	)

	counters := telemetry.NewCounters()
	sampler := telemetry.NewSampler(telemetry.SamplerOptions{
		Logger:   procLogger,
		Counters: counters,
		Sink:     h,
		Interval: cfg.SampleInterval(),
		Registry: reg,
	})

	hsrv := httpserver.New(httpserver.Options{
		Logger:   procLogger,
		Hub:      h,
		Sampler:  sampler,
		Counters: counters,
		Gatherer: reg,
	})

	appLogger.Info("starting spyglass server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Int("buffer_capacity", cfg.BufferCapacity),
		logpkg.Int("history_size", cfg.HistorySize),
		logpkg.Dur("heartbeat_interval", cfg.HeartbeatInterval()),
		logpkg.Dur("sample_interval", cfg.SampleInterval()),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.RunHeartbeat(sctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampler.Run(sctx)
	}()
	if opts.Config == nil && opts.ConfigPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cfgpkg.Watch(sctx, opts.ConfigPath, procLogger, func(fresh cfgpkg.Config) {
				// Only the log level is safe to apply live; structural
				// knobs (buffer sizes, addresses) need a restart.
				if lvl, err := logpkg.ParseLevel(fresh.Log.Level); err == nil {
					procLogger.SetLevel(lvl)
					appLogger.SetLevel(lvl)
				}
			})
			if err != nil && sctx.Err() == nil {
				procLogger.Warn("config watcher stopped", logpkg.Err(err))
			}
		}()
	}

	err = hsrv.ListenAndServe(sctx, cfg.HTTPAddr)
	wg.Wait()
	if err != nil && sctx.Err() != nil {
		return nil
	}
	return err
}
