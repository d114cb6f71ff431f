package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/builder"
	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/query"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/ui"
	"github.com/papapumpkin/pulsar/internal/vcs"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

var queryCmd = &cobra.Command{
	Use:   "query <expression>",
	Short: "List the projects matching a selection expression",
	Long: `Selects projects from the workspace graph with field tests joined by
&& and ||, for example:

  pulsar query 'type=application && tag=backend'
  pulsar query 'language=go || language=rust'

Fields are id, project, type, language, tag, and alias; != negates a
test. Matching project ids print one per line in workspace order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	q, err := query.Parse(strings.Join(args, " "))
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	wsCfg, err := workspace.Load(cfg.Workspace)
	if err != nil {
		return err
	}

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
		// Selection output must stay clean; the cache warning goes to
		// stderr and the build proceeds without a cache.
		store, cacheErr := openCache(cmd.Context())
		if cacheErr != nil {
			ui.New().Info(fmt.Sprintf("cache unavailable: %v", cacheErr))
		} else {
			defer store.Close()
			b.Cache = store
		}
	}

	h, err := b.GetOrBuild(cmd.Context())
	if err != nil {
		return err
	}
	for _, p := range q.Select(h) {
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
