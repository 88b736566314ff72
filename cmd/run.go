package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/database/postgres"
	"github.com/kozaktomas/face-sorter/internal/detector"
	"github.com/kozaktomas/face-sorter/internal/materialize"
	"github.com/kozaktomas/face-sorter/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [input-dir]",
	Short: "Detect, cluster, and sort faces from a photo directory",
	Long: `Run the full sorting pipeline over a directory of photos.
Every image is sent to the face embedding server, the resulting embeddings
are clustered with DBSCAN, and the photos are copied (or moved) into one
directory per detected person under the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("output", "./sorted", "Output directory for the sorted tree")
	runCmd.Flags().Bool("dry-run", false, "Preview the plan without touching the filesystem")
	runCmd.Flags().Bool("move", false, "Move files instead of copying them")
	runCmd.Flags().Float64("epsilon", 0, "DBSCAN neighborhood radius in cosine distance (default from config)")
	runCmd.Flags().Int("min-samples", 0, "DBSCAN core point threshold (default from config)")
	runCmd.Flags().Int("min-faces", 0, "Minimum cluster size to receive a directory (default from config)")
	runCmd.Flags().String("label-prefix", "", "Prefix for generated cluster labels (default from config)")
	runCmd.Flags().Int("concurrency", 5, "Number of parallel detector requests")
	runCmd.Flags().String("detector", "", "Face embedding server URL (default from config)")
	runCmd.Flags().Int64("min-size", 0, "Skip images smaller than this many bytes")
}

// collectImages walks a directory tree and returns all supported image files,
// skipping the output directory when it is nested inside the input.
func collectImages(inputDir, outputDir string, minSize int64) ([]string, error) {
	absOutput, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			abs, err := filepath.Abs(path)
			if err == nil && abs == absOutput {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			return nil
		}
		if minSize > 0 {
			info, err := d.Info()
			if err != nil || info.Size() < minSize {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}
	return paths, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	cfg := config.Load()

	outputDir := mustGetString(cmd, "output")
	dryRun := mustGetBool(cmd, "dry-run")
	concurrency := mustGetInt(cmd, "concurrency")
	minSize := mustGetInt64(cmd, "min-size")

	mode := materialize.ModeCopy
	if mustGetBool(cmd, "move") {
		mode = materialize.ModeMove
	}

	params := pipeline.Params{
		Epsilon:     cfg.Clustering.Epsilon,
		MinSamples:  cfg.Clustering.MinSamples,
		MinFaces:    cfg.Clustering.MinFaces,
		LabelPrefix: cfg.Clustering.LabelPrefix,
	}
	if cmd.Flags().Changed("epsilon") {
		params.Epsilon = mustGetFloat64(cmd, "epsilon")
	}
	if cmd.Flags().Changed("min-samples") {
		params.MinSamples = mustGetInt(cmd, "min-samples")
	}
	if cmd.Flags().Changed("min-faces") {
		params.MinFaces = mustGetInt(cmd, "min-faces")
	}
	if cmd.Flags().Changed("label-prefix") {
		params.LabelPrefix = mustGetString(cmd, "label-prefix")
	}

	detectorURL := cfg.Detector.URL
	if cmd.Flags().Changed("detector") {
		detectorURL = mustGetString(cmd, "detector")
	}

	paths, err := collectImages(inputDir, outputDir, minSize)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d images in %s\n", len(paths), inputDir)

	// Handle Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal...")
		cancel()
	}()

	p := pipeline.New(detector.New(detectorURL), params)
	result, err := p.Run(ctx, paths, outputDir, pipeline.Options{
		DryRun:       dryRun,
		Concurrency:  concurrency,
		Mode:         mode,
		ShowProgress: true,
	})
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Printf("\nProcessed %d images, %d faces\n", result.ProcessedImages, result.FaceCount)
	fmt.Printf("Clusters: %d, unclustered faces: %d, images without faces: %d\n",
		result.ClusterCount, result.Unclustered, result.NoFacesImages)
	if dryRun {
		fmt.Printf("Dry run: %d planned filesystem actions, nothing written\n", result.PlannedActions)
	} else {
		fmt.Printf("Created %d directories, transferred %d files into %s\n",
			result.DirsCreated, result.Transferred, outputDir)
	}
	for _, e := range result.Errors {
		fmt.Printf("Warning: %v\n", e)
	}

	if !dryRun && cfg.Database.URL != "" {
		if err := storeObservations(ctx, cfg, result); err != nil {
			fmt.Printf("Warning: failed to store observations in PostgreSQL: %v\n", err)
		}
	}
	return nil
}

// storeObservations mirrors the run's observations into PostgreSQL so they
// can be queried with pgvector similarity search.
func storeObservations(ctx context.Context, cfg *config.Config, result *pipeline.Result) error {
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return err
	}

	repo := postgres.NewObservationRepository(pool)
	observations := result.Catalog.Store().Observations()
	if err := repo.ReplaceAll(ctx, observations); err != nil {
		return err
	}
	fmt.Printf("Stored %d observations in PostgreSQL\n", len(observations))
	return nil
}
