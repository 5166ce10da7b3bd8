package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helica-bio/helica/config"
	"github.com/helica-bio/helica/ingest"
	"github.com/helica-bio/helica/internal/httpclient"
	"github.com/helica-bio/helica/logger"
	"github.com/helica-bio/helica/sources"
)

// IngestCmd represents the ingest command - source ingestion operations
var IngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run and inspect source ingestion",
	Long: `Ingest raw records from the configured external sources.

Each source runs behind its own rate limiter and circuit breaker; a
failing source never aborts its siblings. Raw records land as JSON
artifacts under the configured raw data directory, with a provenance
chain attached to every run.

Example:
  helica ingest run                    # All enabled sources
  helica ingest run --critical         # ClinVar, HPO, and other critical sources
  helica ingest run --max-concurrent 2 # Limit simultaneous sources
  helica ingest sources                # Show the resolved catalog`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// IngestRunCmd executes a coordinated ingestion run
var IngestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a coordinated ingestion across configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		criticalOnly, _ := cmd.Flags().GetBool("critical")
		maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if maxConcurrent <= 0 {
			maxConcurrent = cfg.Ingest.MaxConcurrent
		}

		return runIngest(cfg, criticalOnly, maxConcurrent)
	},
}

// IngestSourcesCmd lists the resolved source catalog
var IngestSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured source catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		defs, err := sources.FromConfig(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("%-10s %-10s %-8s %s\n", "SOURCE", "PRIORITY", "REQS/PER", "ENDPOINT")
		for _, def := range defs {
			fmt.Printf("%-10s %-10s %d/%-6s %s%s\n",
				def.Name, def.Priority, def.RequestsPerPeriod, def.Period, def.BaseURL, def.Path)
		}
		return nil
	},
}

func init() {
	IngestRunCmd.Flags().Bool("critical", false, "Run only critical-priority sources")
	IngestRunCmd.Flags().Int("max-concurrent", 0, "Maximum simultaneous sources (default from config)")
	IngestCmd.PersistentFlags().String("config", "", "Path to a helica.toml config file")

	IngestCmd.AddCommand(IngestRunCmd)
	IngestCmd.AddCommand(IngestSourcesCmd)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func runIngest(cfg *config.Config, criticalOnly bool, maxConcurrent int) error {
	defs, err := sources.FromConfig(cfg)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Println("No sources enabled; nothing to do.")
		return nil
	}

	client := httpclient.New(time.Duration(cfg.Ingest.HTTPTimeoutSecs) * time.Second)
	pool, err := httpclient.NewPool(client, maxConcurrent)
	if err != nil {
		return err
	}
	store := ingest.NewFileRawStore(cfg.Ingest.RawDataDir)

	ingestors, err := sources.BuildIngestors(defs, store, pool, logger.Logger)
	if err != nil {
		return err
	}

	// Interrupt cancels in-flight fetches; completed sources keep their
	// artifacts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupt received, cancelling ingestion...")
		cancel()
	}()

	onProgress := func(source string, phase ingest.Phase, percent float64) {
		fmt.Printf("  [%s] %s (%.0f%%)\n", source, phase, percent)
	}

	coord := ingest.NewCoordinator(logger.Logger)
	var result *ingest.CoordinatorResult
	if criticalOnly {
		result, err = coord.RunCritical(ctx, ingestors, maxConcurrent, onProgress)
	} else {
		result, err = coord.RunAll(ctx, ingestors, maxConcurrent, onProgress)
	}
	if err != nil {
		return err
	}

	printRunSummary(result)
	if result.FailedSources > 0 {
		return fmt.Errorf("%d of %d sources failed", result.FailedSources, result.TotalSources)
	}
	return nil
}

func printRunSummary(result *ingest.CoordinatorResult) {
	fmt.Printf("\nRun %s finished in %.1fs\n", result.RunID, result.TotalDurationSeconds)
	fmt.Printf("  Sources: %d completed, %d failed (of %d)\n",
		result.CompletedSources, result.FailedSources, result.TotalSources)
	fmt.Printf("  Records: %d\n", result.TotalRecords)

	for name, res := range result.PerSource {
		fmt.Printf("  %-10s %-10s processed=%d skipped=%d failed=%d (%.1fs)\n",
			name, res.Status, res.RecordsProcessed, res.RecordsSkipped, res.RecordsFailed,
			res.DurationSeconds)
		for _, resErr := range res.Errors {
			fmt.Printf("    error: %s\n", resErr.Message)
		}
	}
}
