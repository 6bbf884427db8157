package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/FelixSchausberger/trotd/internal/update"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig        string
	flagVerbose       bool
	flagMax           int
	flagProviders     []string
	flagLanguages     []string
	flagMinStars      int
	flagExcludeTopics []string
	flagNoCache       bool
	flagRefresh       bool
	flagShowAll       bool
	flagJSON          bool
	flagStarred       bool
)

var rootCmd = &cobra.Command{
	Use:   "trotd",
	Short: "Trending repositories of the day",
	Long: `trotd prints a short list of today's trending repositories from GitHub,
GitLab and Gitea. It is meant to run from a shell profile: results are
cached, slow providers fall back to their last good answer, and
repositories already shown today are skipped.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTrending,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to config file")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log debugging information to stderr")

	f := rootCmd.Flags()
	f.IntVarP(&flagMax, "max", "n", 0, "maximum repositories per provider")
	f.StringSliceVarP(&flagProviders, "provider", "p", nil, "providers to query (gh,gl,ge)")
	f.StringSliceVarP(&flagLanguages, "lang", "l", nil, "filter by language (e.g. rust,go)")
	f.IntVar(&flagMinStars, "min-stars", 0, "minimum total star count")
	f.StringSliceVar(&flagExcludeTopics, "exclude-topics", nil, "skip repositories tagged with these topics")
	f.BoolVar(&flagNoCache, "no-cache", false, "neither read nor write the cache")
	f.BoolVar(&flagRefresh, "refresh", false, "fetch from providers even when the cache is fresh")
	f.BoolVar(&flagShowAll, "show-all", false, "include repositories already shown today")
	f.BoolVar(&flagJSON, "json", false, "print JSON instead of the MOTD listing")
	f.BoolVar(&flagStarred, "starred", false, "mark repositories you have starred (needs a GitHub token)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(starCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(openCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "trotd %s (commit: %s, built: %s)\n", version, commit, date)
		if res := update.Check(cmd.Context(), version); res != nil {
			fmt.Fprintf(out, "A newer release is available: %s (%s)\n", res.LatestVersion, res.URL)
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = v
}
