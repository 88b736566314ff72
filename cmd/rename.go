package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename [sorted-dir] [cluster-id] [new-label]",
	Short: "Rename a cluster and its directory",
	Long: `Rename a cluster. The label is normalized into a filesystem-safe
directory name (diacritics stripped, spaces replaced with underscores) and
the cluster's directory is renamed along with the metadata.`,
	Args: cobra.ExactArgs(3),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}

	info, err := cat.Rename(args[1], args[2])
	if err != nil {
		return fmt.Errorf("rename failed: %w", err)
	}
	fmt.Printf("Renamed cluster %s to %s (%d faces)\n", info.ID, info.Label, info.MemberCount)
	return nil
}
