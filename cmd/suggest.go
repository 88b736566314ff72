package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/index"
	"github.com/kozaktomas/face-sorter/internal/naming"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [sorted-dir] [observation-id]",
	Short: "Suggest clusters for an unclustered face",
	Long: `Suggest clusters for a face observation. The embeddings of all
clustered faces are loaded into an in-memory HNSW index and the nearest
neighbors vote for their clusters.`,
	Args: cobra.ExactArgs(2),
	RunE: runSuggest,
}

var suggestLabelCmd = &cobra.Command{
	Use:   "suggest-label [sorted-dir] [cluster-id]",
	Short: "Suggest a label for a cluster using a vision model",
	Long: `Upload a few photos of a cluster to a vision model and ask it for a
short descriptive label. The model only describes appearance; it never
identifies real people.`,
	Args: cobra.ExactArgs(2),
	RunE: runSuggestLabel,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(suggestLabelCmd)

	suggestLabelCmd.Flags().String("provider", "openai", "Vision provider to use: openai, gemini")
}

// newNamingProvider creates the selected vision provider from config.
func newNamingProvider(cfg *config.Config, name string) (naming.Provider, error) {
	switch name {
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required")
		}
		return naming.NewOpenAIProvider(cfg.OpenAI.Token), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		return naming.NewGeminiProvider(context.Background(), cfg.Gemini.APIKey)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, gemini)", name)
	}
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	observationID, err := parseObservationID(args[1])
	if err != nil {
		return err
	}
	obs := cat.Store().Get(observationID)
	if obs == nil {
		return fmt.Errorf("unknown observation: %d", observationID)
	}

	idx := index.New()
	idx.Build(cat.Store())

	suggestions := idx.Suggest(obs.Embedding, 10)
	if len(suggestions) == 0 {
		fmt.Println("No suggestions; the catalog has no clustered faces")
		return nil
	}
	for _, s := range suggestions {
		info, ok := cat.ByRawID(s.ClusterRawID)
		if !ok {
			continue
		}
		fmt.Printf("%-25s votes=%d distance=%.4f\n", info.Label, s.Votes, s.Distance)
	}
	return nil
}

// collectLabelSamples reads up to n images from a cluster's directory.
func collectLabelSamples(dir string, n int) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster directory: %w", err)
	}

	var samples [][]byte
	for _, entry := range entries {
		if len(samples) >= n {
			break
		}
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		samples = append(samples, data)
	}
	if len(samples) == 0 {
		return nil, errors.New("no readable images in cluster directory")
	}
	return samples, nil
}

func runSuggestLabel(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	info, err := cat.Get(args[1])
	if err != nil {
		return err
	}

	provider, err := newNamingProvider(cfg, mustGetString(cmd, "provider"))
	if err != nil {
		return err
	}

	samples, err := collectLabelSamples(filepath.Join(cat.OutputDir(), info.Label), 4)
	if err != nil {
		return err
	}

	var existing []string
	for _, c := range cat.List() {
		existing = append(existing, c.Label)
	}

	fmt.Printf("Asking %s about %d sample photos...\n", provider.Name(), len(samples))
	suggestion, err := provider.SuggestLabel(context.Background(), samples, existing)
	if err != nil {
		return fmt.Errorf("label suggestion failed: %w", err)
	}
	fmt.Printf("Suggested label: %s (confidence %.2f)\n", suggestion.Label, suggestion.Confidence)
	if suggestion.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", suggestion.Reasoning)
	}
	return nil
}
