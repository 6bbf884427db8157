package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/FelixSchausberger/trotd/internal/config"
	"github.com/FelixSchausberger/trotd/internal/launch"
	"github.com/FelixSchausberger/trotd/internal/provider"
	"github.com/FelixSchausberger/trotd/internal/starred"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var starCmd = &cobra.Command{
	Use:   "star owner/repo",
	Short: "Star a GitHub repository",
	Long: `Star a repository on GitHub using the configured token
(TROTD_GITHUB_TOKEN or providers.github.token in the config file).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, err := launch.SplitRepo(args[0])
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(logger)
		if err != nil {
			return err
		}
		token := cfg.Token(provider.KindGitHub)
		if token == "" {
			return errors.New("GitHub token not configured: set TROTD_GITHUB_TOKEN or providers.github.token in the config file")
		}

		p, err := provider.New(provider.KindGitHub, provider.WithLogger(logger))
		if err != nil {
			return err
		}
		starrer, ok := p.(provider.Starrer)
		if !ok {
			return fmt.Errorf("provider %s cannot star repositories", p.ID())
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Starring %s/%s on GitHub...\n", owner, name)
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ProviderTimeout())
		defer cancel()
		if err := starrer.Star(ctx, token, owner, name); err != nil {
			return fmt.Errorf("starring %s/%s: %w", owner, name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Starred %s/%s\n", owner, name)

		if err := starred.New(config.StarredPath(), starred.WithLogger(logger)).Invalidate(); err != nil {
			logger.Warn("starred cache not invalidated", zap.Error(err))
		}
		return nil
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone owner/repo|url",
	Short: "Clone a trending repository into the current directory",
	Long:  "Clone a repository with git. A bare owner/repo refers to GitHub; other hosts need the full https URL.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cloneURL, err := launch.CloneURL(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Cloning %s...\n", cloneURL)
		if err := launch.Clone(cmd.Context(), args[0], os.Stdout, os.Stderr); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s\n", args[0])
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open owner/repo|url",
	Short: "Open a repository page in the browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := launch.WebURL(args[0])
		if err != nil {
			return err
		}
		return launch.Open(u)
	},
}
