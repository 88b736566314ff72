package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:   "move [sorted-dir] [observation-id] [cluster-id]",
	Short: "Move a face observation into another cluster",
	Long: `Move a single face observation into another cluster. The backing
image file follows: when no other face in the source cluster shares it,
the file moves; otherwise it is copied so both clusters keep the photo.`,
	Args: cobra.ExactArgs(3),
	RunE: runMove,
}

var removeCmd = &cobra.Command{
	Use:   "remove [sorted-dir] [observation-id]",
	Short: "Remove a face observation from its cluster",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(removeCmd)
}

func parseObservationID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid observation id %q: %w", arg, err)
	}
	return id, nil
}

func runMove(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	observationID, err := parseObservationID(args[1])
	if err != nil {
		return err
	}

	info, err := cat.MoveMember(observationID, args[2])
	if err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	fmt.Printf("Moved observation %d into %s (%d faces)\n", observationID, info.Label, info.MemberCount)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	observationID, err := parseObservationID(args[1])
	if err != nil {
		return err
	}

	if err := cat.RemoveMember(observationID); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	fmt.Printf("Moved observation %d to the unclustered pool\n", observationID)
	return nil
}
