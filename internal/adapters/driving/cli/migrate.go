package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Drive a zero-downtime backend migration",
	Long: `Migrates the vector index to a new backend without downtime.

The migration advances through dual-write, backfill, verification, and
cutover. Each step is an explicit command; the state machine rejects
out-of-order steps.`,
}

var migrateStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Begin the migration and enable dual-write",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.Start(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Migration started: dual-write enabled.")
		return nil
	},
}

var migrateBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Copy existing documents into the new backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.StartBackfill(cmd.Context()); err != nil {
			return err
		}
		return watchBackfill(cmd)
	},
}

var migrateResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused backfill from its cursor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.ResumeBackfill(cmd.Context()); err != nil {
			return err
		}
		return watchBackfill(cmd)
	},
}

var migratePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the backfill at the next document boundary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.PauseBackfill(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Backfill pause requested.")
		return nil
	},
}

var migrateVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare sampled reads across both backends",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		report, err := migrationControl.Verify(cmd.Context())
		if err != nil {
			return err
		}
		printDivergence(cmd, report)
		return nil
	},
}

var migrateRepairCmd = &cobra.Command{
	Use:   "repair [document-id]",
	Short: "Re-copy one document into the new backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.Repair(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Repaired %s. Run verify again.\n", args[0])
		return nil
	},
}

var migrateRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Replay queued secondary writes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.FlushRetries(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Retry queue drained.")
		return nil
	},
}

var migratePromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Cut reads and writes over to the new backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.Promote(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Promoted: the new backend now serves reads and writes.")
		return nil
	},
}

var migrateDecommissionCmd = &cobra.Command{
	Use:   "decommission",
	Short: "Retire the migration after the grace window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		if err := migrationControl.Decommission(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Migration decommissioned.")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the migration state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireMigration(); err != nil {
			return err
		}
		status, err := migrationControl.Status(cmd.Context())
		if err != nil {
			return err
		}

		if status.State == nil {
			cmd.Println("No migration in progress.")
			return nil
		}
		s := status.State
		cmd.Printf("Migration:        %s\n", s.ID)
		cmd.Printf("Phase:            %s\n", s.Phase)
		cmd.Printf("Halted:           %t\n", s.Halted)
		cmd.Printf("Backfill running: %t\n", status.BackfillRunning)
		cmd.Printf("Migrated:         %d documents\n", status.DocumentsMigrated)
		cmd.Printf("Pending retries:  %d\n", status.PendingRetries)
		if !s.Cursor.IsZero() {
			cmd.Printf("Cursor:           %s @ %s\n", s.Cursor.DocumentID, s.Cursor.CreatedAt.Format(time.RFC3339))
		}
		if !s.GraceUntil.IsZero() {
			cmd.Printf("Grace until:      %s\n", s.GraceUntil.Format(time.RFC3339))
		}
		if status.Divergence != nil {
			printDivergence(cmd, status.Divergence)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStartCmd)
	migrateCmd.AddCommand(migrateBackfillCmd)
	migrateCmd.AddCommand(migratePauseCmd)
	migrateCmd.AddCommand(migrateResumeCmd)
	migrateCmd.AddCommand(migrateVerifyCmd)
	migrateCmd.AddCommand(migrateRepairCmd)
	migrateCmd.AddCommand(migrateRetryCmd)
	migrateCmd.AddCommand(migratePromoteCmd)
	migrateCmd.AddCommand(migrateDecommissionCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func requireMigration() error {
	if migrationControl == nil {
		return errors.New("migration control not configured")
	}
	return nil
}

// watchBackfill blocks until the backfill job finishes, showing
// progress from the status snapshot.
func watchBackfill(cmd *cobra.Command) error {
	total := backfillTotal(cmd.Context())

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Backfilling"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	for {
		select {
		case <-cmd.Context().Done():
			// Ctrl-C pauses at the next document boundary.
			_ = migrationControl.PauseBackfill(context.Background())
			return cmd.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}

		status, err := migrationControl.Status(cmd.Context())
		if err != nil {
			return err
		}
		_ = bar.Set(status.DocumentsMigrated)
		if !status.BackfillRunning {
			_ = bar.Finish()
			cmd.Printf("Backfill done: %d documents migrated.\n", status.DocumentsMigrated)
			return nil
		}
	}
}

// backfillTotal estimates the document count for the progress bar.
func backfillTotal(ctx context.Context) int {
	if documentStore == nil {
		return -1
	}
	docs, err := documentStore.ListDocuments(ctx)
	if err != nil {
		return -1
	}
	return len(docs)
}

func printDivergence(cmd *cobra.Command, report *domain.DivergenceReport) {
	cmd.Printf("Verification (%d samples, epsilon %.3f):\n", len(report.Samples), report.ScoreEpsilon)
	if report.Diverged() {
		cmd.Println("  DIVERGED - migration halted until repaired and re-verified.")
		for _, s := range report.Samples {
			if s.MissingFromSecondary == 0 && s.MaxScoreDelta <= report.ScoreEpsilon {
				continue
			}
			cmd.Printf("  probe %s: %d/%d hits, %d missing, max score delta %.4f\n",
				s.ChunkID, s.SecondaryHits, s.PrimaryHits, s.MissingFromSecondary, s.MaxScoreDelta)
		}
		return
	}
	cmd.Println("  Clean: backends agree within tolerance.")
}
