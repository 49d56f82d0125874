// Package cli implements the vectra command line interface.
// Commands are thin shells over the driving ports; wiring happens in
// cmd/vectra.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driving"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// version is set at wiring time from the build.
var version = "dev"

// Wired services. Nil until SetServices runs; commands check before use.
var (
	ingestService    driving.IngestService
	queryService     driving.QueryService
	migrationControl driving.MigrationControl
	documentStore    driven.DocumentStore
	configStore      driven.ConfigStore
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "vectra",
	Short: "Document ingestion and vector search",
	Long: `Vectra ingests documents into a vector index and retrieves them
by semantic similarity.

It supports multiple vector backends behind one contract and can
migrate between them with zero downtime: dual-write, backfill,
verification, and cutover are driven through the migrate commands.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// Services bundles everything the commands need.
type Services struct {
	Ingest    driving.IngestService
	Query     driving.QueryService
	Migration driving.MigrationControl
	Documents driven.DocumentStore
	Config    driven.ConfigStore
}

// SetServices wires the service implementations into the commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	ingestService = s.Ingest
	queryService = s.Query
	migrationControl = s.Migration
	documentStore = s.Documents
	configStore = s.Config
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
