package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/builder"
	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/ui"
	"github.com/papapumpkin/pulsar/internal/vcs"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the workspace produces a valid dependency graph",
	Long: `Runs a full graph construction and reports the first problem it finds:
a duplicate project id, an unresolvable or missing dependency, a
dependency cycle, or a constraint violation. A valid workspace prints
its project and edge counts.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	printer := ui.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	wsCfg, err := workspace.Load(cfg.Workspace)
	if err != nil {
		printer.WorkspaceBroken(err)
		return err
	}
	printer.WorkspaceConfigured(wsCfg.Workspace.Name)

	b := builder.New(cfg.Workspace, wsCfg)
	b.VCS = &vcs.CLIQuerier{RepoDir: cfg.Workspace}
	b.ToolVersion = Version
	if cfg.TelemetryFile != "" {
		em, emErr := telemetry.NewEmitter(cfg.TelemetryFile)
		if emErr != nil {
			return emErr
		}
		defer em.Close()
		b.Telemetry = em
	}
	if cfg.Cache.Enabled {
		// An unopenable cache never blocks validation; it only forces
		// a fresh build.
		store, cacheErr := openCache(cmd.Context())
		if cacheErr != nil {
			printer.Info(fmt.Sprintf("cache unavailable: %v", cacheErr))
		} else {
			defer store.Close()
			b.Cache = store
		}
	}

	h, err := b.GetOrBuild(cmd.Context())
	if err != nil {
		printer.GraphInvalid(err)
		return fmt.Errorf("validation failed: %w", err)
	}
	printer.GraphValid(h.Len(), h.EdgeCount())
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
