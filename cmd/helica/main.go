package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helica-bio/helica/cmd/helica/commands"
	"github.com/helica-bio/helica/config"
	"github.com/helica-bio/helica/logger"
)

var rootCmd = &cobra.Command{
	Use:   "helica",
	Short: "Helica - resilient biomedical data ingestion",
	Long: `Helica ingests raw records from external biomedical sources
(ClinVar, PubMed, HPO, UniProt, Ensembl, OMIM) into the curation
platform's raw data store, with per-source rate limiting, retries,
circuit breaking, and full provenance.

Available commands:
  ingest  - Run and inspect source ingestion
  version - Show build information

Examples:
  helica ingest run                  # Ingest all enabled sources
  helica ingest run --critical       # Critical sources only
  helica ingest sources              # List the configured source catalog`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logger.Initialize(cfg.Logging.JSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
