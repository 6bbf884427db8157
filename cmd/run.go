package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/FelixSchausberger/trotd/internal/cache"
	"github.com/FelixSchausberger/trotd/internal/config"
	"github.com/FelixSchausberger/trotd/internal/logging"
	"github.com/FelixSchausberger/trotd/internal/provider"
	"github.com/FelixSchausberger/trotd/internal/render"
	"github.com/FelixSchausberger/trotd/internal/seen"
	"github.com/FelixSchausberger/trotd/internal/starred"
	"github.com/FelixSchausberger/trotd/internal/trending"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runTrending(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	err = cfg.ApplyOverrides(config.Overrides{
		Providers:     flagProviders,
		Languages:     flagLanguages,
		Max:           flagMax,
		MinStars:      flagMinStars,
		ExcludeTopics: flagExcludeTopics,
	})
	if err != nil {
		return err
	}

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return err
	}

	showStarred := flagStarred || cfg.General.ShowStarred
	engineOpts := []trending.Option{
		trending.WithLogger(logger),
		trending.WithSeen(seen.New(config.SeenPath(), seen.WithLogger(logger))),
	}
	if showStarred {
		engineOpts = append(engineOpts, trending.WithStarred(starred.New(config.StarredPath(), starred.WithLogger(logger))))
	}

	var db *cache.Cache
	if !flagNoCache {
		db, err = cache.Open(config.CachePath())
		if err != nil {
			// Non-fatal: the run continues uncached
			logger.Warn("cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer db.Close()
			engineOpts = append(engineOpts, trending.WithCache(db))
		}
	}

	engine := trending.New(providers, engineOpts...)
	res := engine.Run(cmd.Context(), cfg.Queries(), trending.Options{
		GlobalTimeout:     cfg.GlobalTimeout(),
		ProviderTimeout:   cfg.ProviderTimeout(),
		SlowWarn:          cfg.SlowWarn(),
		CacheTTL:          cfg.CacheTTL(),
		ShowAll:           flagShowAll,
		MarkSeenOnShowAll: cfg.General.MarkSeenOnShowAll,
		NoCache:           flagNoCache,
		CacheFirst:        !flagRefresh && flagShowAll,
		Starred:           showStarred,
		StarredToken:      cfg.Token(provider.KindGitHub),
		MinStars:          cfg.General.MinStars,
		ASCIIOnly:         cfg.General.ASCIIOnly,
	})

	if db != nil {
		if err := db.SetLastRun(); err != nil {
			logger.Debug("recording last run failed", zap.Error(err))
		}
		// Auto-prune old records after each run
		if n, err := db.Prune(cfg.RetentionDuration()); err != nil {
			logger.Debug("cache prune failed", zap.Error(err))
		} else if n > 0 {
			logger.Debug("pruned cache records", zap.Int64("deleted", n))
		}
	}

	now := time.Now()
	if flagJSON {
		return render.JSON(cmd.OutOrStdout(), res, now)
	}
	return render.MOTD(cmd.OutOrStdout(), res, now)
}

func newLogger() (*zap.Logger, error) {
	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	return logging.New(level, false)
}

func loadConfig(logger *zap.Logger) (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		logger.Warn("ignoring .env file", zap.Error(err))
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Debug("config loaded", zap.Strings("providers", kindNames(cfg.EnabledProviders())))
	return cfg, nil
}

func buildProviders(cfg *config.Config, logger *zap.Logger) ([]provider.Provider, error) {
	kinds := cfg.EnabledProviders()
	if len(kinds) == 0 {
		return nil, errors.New("no providers enabled")
	}
	client := provider.NewClient(provider.DefaultClientConfig(), logger)
	out := make([]provider.Provider, 0, len(kinds))
	for _, k := range kinds {
		p, err := provider.New(k, provider.WithClient(client), provider.WithLogger(logger.With(zap.String("provider", string(k)))))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func kindNames(kinds []provider.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// parseAge accepts Go durations plus a whole-day "Nd" form.
func parseAge(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
