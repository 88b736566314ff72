package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create [sorted-dir] [label]",
	Short: "Create an empty cluster",
	Long: `Create an empty cluster to move faces into. The label is normalized
into a filesystem-safe directory name and the directory is created under
the sorted tree.`,
	Args: cobra.ExactArgs(2),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}

	info, err := cat.Create(args[1])
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	fmt.Printf("Created empty cluster %s (%s)\n", info.Label, info.ID)
	return nil
}
