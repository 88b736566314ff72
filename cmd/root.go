package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-sorter",
	Short: "A CLI tool for sorting photos by the people in them",
	Long: `Face Sorter scans a directory of photos, detects faces through an
embedding server, clusters them with DBSCAN, and materializes one directory
per person. The resulting catalog can then be reviewed and refined: rename,
merge, and delete clusters, or move individual faces between them.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
