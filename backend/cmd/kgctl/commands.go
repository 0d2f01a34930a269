package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tami-graph/backend/internal/engine"
	"tami-graph/backend/internal/extraction"
)

func (c *cli) schemaCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create graph constraints and indexes",
		Long: `Create the uniqueness constraint on (owner, type, normalized value), the lookup
indexes and the entity full-text index. Statements are idempotent; without
--force the command stops early when the current schema version is recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			if err := a.SetupSchema(cmd.Context(), force); err != nil {
				return fmt.Errorf("schema setup failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reapply even if the schema version is already recorded")
	return cmd
}

func (c *cli) inferCmd() *cobra.Command {
	var threshold int
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Refresh inferred COLLABORATES_WITH relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOwner(); err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			n, err := a.Engine.InferCollaborations(cmd.Context(), c.owner, threshold)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"owner_id": c.owner, "updated": n})
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Shared meetings required (0 uses COLLABORATION_THRESHOLD)")
	return cmd
}

func (c *cli) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge KEEP_ID MERGE_ID",
		Short: "Fold one entity into another",
		Long: `Move every mention, relationship and alias of MERGE_ID onto KEEP_ID, add up
the mention counts and delete MERGE_ID.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOwner(); err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			merged, err := a.Engine.MergeEntities(cmd.Context(), c.owner, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, merged)
		},
	}
}

func (c *cli) duplicatesCmd() *cobra.Command {
	var (
		entityType string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List entity pairs that look like duplicates",
		Long: `Compare the most mentioned entities of each type and print likely duplicate
pairs with the entity to keep first. Feed a pair to "kgctl merge" to fold it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOwner(); err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			candidates, err := a.Engine.DuplicateCandidates(cmd.Context(), c.owner, entityType, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, candidates)
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Only compare entities of this type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum pairs to print (0 uses the default page size)")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count entities per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOwner(); err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			stats, err := a.Engine.EntityStats(cmd.Context(), c.owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}

func (c *cli) ingestCmd() *cobra.Command {
	var (
		meetingID string
		title     string
		language  string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract entities from a transcript and record them",
		Long: `Read a transcript from --file (or stdin with "-"), run it through the
configured extraction provider and record entities and mentions under --meeting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOwner(); err != nil {
				return err
			}
			transcript, err := readTranscript(cmd, file)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			summary, err := a.Ingestor.IngestTranscript(cmd.Context(), c.owner, engine.TranscriptRequest{
				MeetingID:  meetingID,
				Title:      title,
				Transcript: transcript,
				Language:   language,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	cmd.Flags().StringVar(&meetingID, "meeting", "", "Meeting id (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "Meeting title")
	cmd.Flags().StringVar(&language, "language", "en", "Transcript language code")
	cmd.Flags().StringVar(&file, "file", "-", "Transcript file, - for stdin")
	return cmd
}

func readTranscript(cmd *cobra.Command, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(data), nil
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the store and the extraction provider",
		Long: `Open the configured store (Neo4j connectivity is verified on open) and, for
the service provider, query the extraction service's /health endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			report := map[string]interface{}{
				"store":      a.Config.StoreDriver,
				"extraction": a.Extractor.Name(),
			}
			if svc, ok := a.Extractor.(*extraction.ServiceClient); ok {
				status, err := svc.Health(cmd.Context())
				if err != nil {
					return err
				}
				report["extraction_status"] = status
			}
			return printJSON(cmd, report)
		},
	}
}
