package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/cache"
	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the graph snapshot cache",
	Long: `The cache command group works against the local snapshot store under the
workspace cache directory. Graph builds consult it before constructing
anything; status shows what is stored, and clear drops every entry so
the next build starts from the manifests.`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache entry count, size, and last write time",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Status(cmd.Context())
		if err != nil {
			return err
		}
		ui.New().CacheStatus(st.Entries, st.Bytes, st.NewestAt)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached graph snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		ui.New().CacheCleared()
		return nil
	},
}

func openCache(ctx context.Context) (*cache.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cache.Open(ctx, filepath.Join(cfg.Workspace, cfg.Cache.Dir, cache.DBName))
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
