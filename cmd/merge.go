package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/catalog"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [sorted-dir] [target-id] [source-id...]",
	Short: "Merge one or more clusters into a target cluster",
	Long: `Merge the source clusters into the target cluster. All files move
into the target's directory and the source clusters disappear. When both
sides hold a file with the same name, the conflict policy decides which
copy survives.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().Bool("keep-existing", false, "Keep the target's copy on file name collisions instead of replacing it")
}

func runMerge(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "keep-existing") {
		cat.SetConflictPolicy(catalog.KeepExisting)
	}

	info, err := cat.Merge(args[2:], args[1])
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	fmt.Printf("Merged %d clusters into %s (%d faces)\n", len(args)-2, info.Label, info.MemberCount)
	return nil
}
