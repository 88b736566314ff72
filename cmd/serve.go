package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/index"
	"github.com/kozaktomas/face-sorter/internal/naming"
	"github.com/kozaktomas/face-sorter/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve [sorted-dir]",
	Short: "Start the web server over a sorted directory",
	Long: `Start the Face Sorter web server. It exposes the catalog of a sorted
directory over a JSON API: listing clusters, renaming, merging, moving
faces, and similarity-based suggestions.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	cat, err := loadCatalog(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Building in-memory HNSW index for face suggestions...\n")
	idx := index.New()
	idx.Build(cat.Store())
	fmt.Printf("Indexed %d clustered faces\n", idx.Count())

	// Label suggestions are optional; pick whichever provider has credentials.
	var namer naming.Provider
	switch {
	case cfg.OpenAI.Token != "":
		namer = naming.NewOpenAIProvider(cfg.OpenAI.Token)
	case cfg.Gemini.APIKey != "":
		namer, err = naming.NewGeminiProvider(context.Background(), cfg.Gemini.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create Gemini provider: %w", err)
		}
	}
	if namer != nil {
		fmt.Printf("Label suggestions enabled (%s)\n", namer.Name())
	}

	addr := cfg.Web.Addr
	if cmd.Flags().Changed("addr") {
		addr = mustGetString(cmd, "addr")
	}

	server := web.NewServer(cat, idx, namer, addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Sorter API on %s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
