package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/catalog"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters [sorted-dir]",
	Short: "List the clusters of a sorted directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusters,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
}

// loadCatalog opens the catalog persisted under a sorted output tree.
func loadCatalog(outputDir string) (*catalog.Catalog, error) {
	cat, err := catalog.Load(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog from %s: %w", outputDir, err)
	}
	return cat, nil
}

func runClusters(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}

	clusters := cat.List()
	fmt.Printf("%-38s %-25s %6s %7s\n", "ID", "LABEL", "FACES", "IMAGES")
	for _, info := range clusters {
		fmt.Printf("%-38s %-25s %6d %7d\n", info.ID, info.Label, info.MemberCount, info.ImageCount)
	}
	fmt.Printf("\n%d clusters, %d unclustered faces\n", len(clusters), len(cat.Unclustered()))
	return nil
}
