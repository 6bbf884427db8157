package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/FelixSchausberger/trotd/internal/cache"
	"github.com/FelixSchausberger/trotd/internal/config"
	"github.com/FelixSchausberger/trotd/internal/seen"
	"github.com/FelixSchausberger/trotd/internal/starred"
	"github.com/spf13/cobra"
)

var flagPruneOlderThan string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clean the local cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old records from the local cache",
	Long: `Delete cached provider results older than the retention period and reclaim disk space.

Uses the cache_retention value from config (default: 30d) unless overridden with --older-than.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(logger)
		if err != nil {
			return err
		}

		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		retention := cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := parseAge(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		deleted, err := db.Prune(retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		out := cmd.OutOrStdout()
		if deleted == 0 {
			fmt.Fprintln(out, "Nothing to prune.")
		} else {
			fmt.Fprintf(out, "Pruned %d record(s) older than %s.\n", deleted, formatDuration(retention))
		}
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(logger)
		if err != nil {
			return err
		}

		dbPath := config.CachePath()
		db, err := cache.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		st, err := db.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		tracker := seen.New(config.SeenPath())
		rec, err := tracker.Load()
		if err != nil {
			return fmt.Errorf("reading seen record: %w", err)
		}

		ttl := cfg.CacheTTL()
		printStats(cmd.OutOrStdout(), dbPath, st, rec, ttl, db.NeedsRefresh(ttl), time.Now())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached results, today's seen list and starred hints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		deleted, err := db.Prune(0)
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		if err := seen.New(config.SeenPath()).Clear(); err != nil {
			return fmt.Errorf("clearing seen record: %w", err)
		}
		if err := starred.New(config.StarredPath()).Invalidate(); err != nil {
			return fmt.Errorf("clearing starred cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached record(s) and today's seen list.\n", deleted)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")

	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func printStats(w io.Writer, dbPath string, st cache.Stats, rec seen.Record, ttl time.Duration, due bool, now time.Time) {
	fmt.Fprintf(w, "Cache: %s\n", dbPath)
	fmt.Fprintf(w, "Records: %d\n", st.Records)

	names := make([]string, 0, len(st.Providers))
	for name := range st.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %d\n", name, st.Providers[name])
	}

	fmt.Fprintf(w, "Size: %s\n", formatBytes(st.Size))
	if st.LastRun.IsZero() {
		fmt.Fprintln(w, "Last run: never")
	} else {
		fmt.Fprintf(w, "Last run: %s ago\n", formatDuration(now.Sub(st.LastRun)))
	}
	if due {
		fmt.Fprintf(w, "Refresh due: yes (cache ttl %s)\n", formatDuration(ttl))
	} else {
		fmt.Fprintf(w, "Refresh due: no (cache ttl %s)\n", formatDuration(ttl))
	}
	fmt.Fprintf(w, "Seen today (%s): %d, offset %d\n", rec.Day, rec.Len(), rec.FetchOffset)
}

func formatDuration(d time.Duration) string {
	h := d.Hours()
	days := int(h / 24)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd", days)
	case h >= 1:
		return fmt.Sprintf("%dh", int(h))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
