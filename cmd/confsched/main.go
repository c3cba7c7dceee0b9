package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"confsched/internal/agenda"
	"confsched/internal/catalog"
	"confsched/internal/config"
	"confsched/internal/ics"
	appLog "confsched/internal/log"
	"confsched/internal/selection"
	"confsched/internal/source"
	"confsched/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.ParseLevel(conf.Log.Level)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.Setup(appLog.Options{
		Level:      level,
		File:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxAgeDays: conf.Log.MaxAgeDays,
	})
	defer appLog.Sync()

	appLog.Info("confsched starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"sources", len(conf.Sources),
		"data_dir", conf.DataDir,
		"refresh", conf.RefreshCron,
		"window_start", conf.Window.Start,
		"window_end", conf.Window.End,
		"metrics", conf.Metrics,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := newLoader(conf)
	if err != nil {
		appLog.Error("failed to build loader", err)
		os.Exit(1)
	}
	cat := catalog.New()
	if err := loader.Refresh(ctx, cat); err != nil {
		// Not fatal: the API serves an empty catalog with the load error.
		appLog.Error("initial load failed", err, "unavailable", catalog.IsUnavailable(err))
	}

	backend := selection.NewFileBackend(conf.SelectionPath())
	appLog.Info("selection store", "path", backend.Path())
	store := selection.Open(backend)

	if flags.once {
		if err := printAgenda(cat, store); err != nil {
			appLog.Error("failed to print agenda", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, conf, loader, cat, store); err != nil {
		appLog.Error("confsched stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("confsched exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load sources, print the current agenda as JSON and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

func newLoader(conf *config.Config) (*catalog.Loader, error) {
	loc := conf.Location()
	start, end, err := conf.Window.Bounds(loc)
	if err != nil {
		return nil, err
	}

	sources := make([]source.Source, 0, len(conf.Sources))
	for _, s := range conf.Sources {
		sources = append(sources, source.Source{
			ID:     s.ID,
			Name:   s.Name,
			URL:    s.URL,
			Path:   s.Path,
			Format: source.Format(s.Format),
		})
	}

	return &catalog.Loader{
		Fetcher: source.NewFetcher(conf.CacheDir()),
		Sources: sources,
		Expand: ics.ExpandConfig{
			DisplayLocation: loc,
			RangeStart:      start,
			RangeEnd:        end,
		},
	}, nil
}

func printAgenda(cat *catalog.Catalog, store *selection.Store) error {
	a := agenda.Build(cat.All(), store.InterestedSet())
	appLog.Debug("agenda built", "dates", a.Dates(), "conflicts", a.ConflictCount())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode agenda: %w", err)
	}
	return nil
}

// run serves HTTP and, when configured, reloads the sources on a cron
// schedule until ctx is cancelled.
func run(ctx context.Context, conf *config.Config, loader *catalog.Loader, cat *catalog.Catalog, store *selection.Store) error {
	sched, err := newScheduler(ctx, conf, loader, cat)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         conf.Listen,
		Handler:      web.NewServer(conf, cat, store, loader).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if sched != nil {
		g.Go(func() error {
			sched.Start()
			appLog.Info("refresh scheduler started", "spec", conf.RefreshCron)
			<-gctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	return g.Wait()
}

// newScheduler returns nil when no refresh schedule is configured.
func newScheduler(ctx context.Context, conf *config.Config, loader *catalog.Loader, cat *catalog.Catalog) (*cron.Cron, error) {
	if conf.RefreshCron == "" {
		return nil, nil
	}
	sched := cron.New(
		cron.WithLocation(conf.Location()),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		appLog.Info("scheduled refresh")
		_ = loader.Refresh(ctx, cat)
	}); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", conf.RefreshCron, err)
	}
	return sched, nil
}

// cronLogger routes cron's internal logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
