package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [sorted-dir] [cluster-id]",
	Short: "Delete a cluster and its directory",
	Long: `Delete a cluster. Its directory is removed from the sorted tree and
its faces return to the unclustered pool. The original source files are
never touched. Requires --confirm.`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().Bool("confirm", false, "Confirm the deletion")
}

func runDelete(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}

	info, err := cat.Delete(args[1], mustGetBool(cmd, "confirm"))
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Printf("Deleted cluster %s (%d faces returned to unclustered)\n", info.Label, info.MemberCount)
	return nil
}
