// Command ragctl uploads documents and inspects collections from the shell.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"clinical-rag/internal/app"
	"clinical-rag/internal/config"
)

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadApp reads configuration and connects to the configured backends.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
	return app.New(ctx, cfg)
}

// cli carries the lazily built App through the command tree.
type cli struct {
	load func(ctx context.Context) (*app.App, error)
	app  *app.App
}

func newRootCmd(load func(ctx context.Context) (*app.App, error)) *cobra.Command {
	c := &cli{load: load}

	rootCmd := &cobra.Command{
		Use:           "ragctl",
		Short:         "Manage clinical RAG documents and collections",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}

	rootCmd.AddCommand(
		c.uploadCmd(),
		c.batchCmd(),
		c.collectionsCmd(),
		c.resolveCmd(),
		c.specialtiesCmd(),
	)
	return rootCmd
}
