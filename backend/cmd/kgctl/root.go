package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tami-graph/backend/internal/app"
	"tami-graph/backend/pkg/config"
	"tami-graph/backend/pkg/logger"
)

var (
	// Version info, set by build flags in release builds
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// cli carries state shared by the subcommands of one invocation
type cli struct {
	owner string
	app   *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "kgctl",
		Short: "Operate the meeting knowledge graph",
		Long: `kgctl runs maintenance tasks against the knowledge graph configured
through the environment (STORE_DRIVER, NEO4J_URI, EXTRACTION_PROVIDER, ...).`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			defer logger.Sync()
			return c.app.Close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.owner, "owner", "", "Owner (user) id the command acts for")

	root.AddCommand(
		c.schemaCmd(),
		c.inferCmd(),
		c.mergeCmd(),
		c.duplicatesCmd(),
		c.statsCmd(),
		c.ingestCmd(),
		c.healthCmd(),
		versionCmd(),
	)
	return root
}

// open loads configuration and wires the application once per invocation
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	c.app = a
	return a, nil
}

func (c *cli) requireOwner() error {
	if c.owner == "" {
		return fmt.Errorf("--owner is required")
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kgctl\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", buildDate)
		},
	}
}
