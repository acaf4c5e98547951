package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/idebroy/hnsw/config"
	"github.com/idebroy/hnsw/gallery"
	"github.com/idebroy/hnsw/records"
)

var (
	// Global flags
	cfgFile string
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hnswctl",
	Short: "Image similarity search over an HNSW index",
	Long: `hnswctl - store labelled images and find visually similar ones.

Images are reduced to 64x64 grayscale vectors and indexed in an HNSW graph.
Labels, timestamps and image paths live in a record store (DuckDB by default,
or bbolt). The index file, the record store and the stored images all live in
the data directory.

Configuration is read from --config (default ~/.hnswctl.yml), then from
HNSWCTL_* environment variables.

Examples:
  # Add two images
  hnswctl add alice.jpg --label alice
  hnswctl add bob.png --label bob

  # Find the 3 closest matches
  hnswctl search query.jpg -k 3

  # Look at the graph
  hnswctl inspect`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.hnswctl.yml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openGallery opens the gallery described by the configuration.
func openGallery(cmd *cobra.Command) (*gallery.Gallery, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	idxOpts, err := cfg.Index.Options()
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	g, err := gallery.Open(ctx, gallery.Options{
		Dir:          cfg.DataDir,
		IndexFile:    cfg.Index.File,
		StoreBackend: cfg.Store.Backend,
		StorePath:    cfg.StorePath(),
		IndexOptions: idxOpts,
		Compress:     cfg.Index.Compress,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gallery: %w", err)
	}
	logger.Debug("configuration loaded", slog.String("data_dir", cfg.DataDir), slog.String("store", cfg.Store.Backend))
	return g, nil
}

func printRecord(cmd *cobra.Command, g *gallery.Gallery, i int, rec records.Record) {
	out := cmd.OutOrStdout()
	if i > 0 {
		fmt.Fprintf(out, "  %d. ", i)
	} else {
		fmt.Fprint(out, "  ")
	}
	fmt.Fprintf(out, "[id=%d] %s\n", rec.ID, rec.Label)
	fmt.Fprintf(out, "     image: %s\n", g.ImageFile(rec))
	fmt.Fprintf(out, "     added: %s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
}
