package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/i474232898/solar-yield-forecast/internal/common"
	"github.com/i474232898/solar-yield-forecast/internal/config"
	"github.com/i474232898/solar-yield-forecast/internal/metrics"
	"github.com/i474232898/solar-yield-forecast/internal/solar"
	"github.com/i474232898/solar-yield-forecast/internal/solar/providers"
	"github.com/i474232898/solar-yield-forecast/internal/store"
)

// flags override values loaded from the environment.
type flags struct {
	envFile   string
	days      int
	reload    string
	cal       float64
	verbosity int
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "solar-yield",
		Short:         "Solcast rooftop PV daily yield",
		Long:          `Fetches Solcast forecasts and estimated actuals, caches them and reports daily yield totals.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.IntVar(&f.days, "days", 0, "days on each side of today to report (1-7, default SOLCAST_DAYS)")
	pf.StringVar(&f.reload, "reload", "", "cache reload mode: never, force or if-stale")
	pf.Float64Var(&f.cal, "cal", 0, "calibration factor applied to reported yields")
	pf.CountVarP(&f.verbosity, "verbose", "v", "increase verbosity (-v info, -vv details)")

	root.AddCommand(
		newReportCmd(f),
		newChartCmd(f),
		newRefreshCmd(f),
		newServeCmd(f),
	)
	return root
}

// app holds everything a command needs.
type app struct {
	cfg      *config.AppConfig
	log      *common.Logger
	service  *solar.Service
	registry *prometheus.Registry
	cache    solar.Cache
}

func loadConfig(f *flags) (*config.AppConfig, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}

	if f.days != 0 {
		cfg.Days = f.days
	}
	if f.reload != "" {
		mode, err := solar.ParseReloadMode(f.reload)
		if err != nil {
			return nil, err
		}
		cfg.Reload = mode
	}
	if f.cal != 0 {
		cfg.Calibration = f.cal
	}
	if f.verbosity > cfg.Verbosity {
		cfg.Verbosity = min(f.verbosity, common.LevelDebug)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(f *flags) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := common.NewLogger(os.Stderr, cfg.Verbosity)

	cache, err := newCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewSolcastProvider(httpClient, cfg.APIKey,
		providers.WithBaseURL(cfg.BaseURL),
		providers.WithBackoff(providers.BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: defaultBackoffInitial,
			MaxInterval:     defaultBackoffMax,
		}),
	)

	registry := prometheus.NewRegistry()
	service := solar.NewService(provider, cache, solar.Options{
		Sites:            cfg.Sites,
		Calibration:      cfg.Calibration,
		Reload:           cfg.Reload,
		FetchConcurrency: cfg.FetchConcurrency,
		Logger:           logger,
		Metrics:          metrics.New(registry),
	})

	if len(cfg.Sites) == 0 {
		logger.Infof("no SOLCAST_RIDS configured; only cached data can be reported")
	}

	return &app{cfg: cfg, log: logger, service: service, registry: registry, cache: cache}, nil
}

// Close releases the cache backend connection, if any.
func (a *app) Close() {
	if c, ok := a.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Errorf("closing cache: %v", err)
		}
	}
}

func newCache(cfg *config.AppConfig, logger *common.Logger) (solar.Cache, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		logger.Debugf("using redis cache at %s key %s", cfg.Redis.Addr, cfg.Redis.Key)
		return store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Password, cfg.Redis.Key)
	case config.BackendMemory:
		logger.Debugf("using in-memory cache")
		return store.NewMemoryStore(), nil
	default:
		fs := store.NewFileStore(cfg.CacheFile)
		logger.Debugf("using cache file %s", fs.Path())
		return fs, nil
	}
}
