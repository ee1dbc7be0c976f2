package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docqa/internal/logger"
	"docqa/internal/workspace"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest documents dropped into an inbox directory",
	Long: `Watches a directory (default: the configured inbox) and imports and
ingests every PDF or DOCX file created there. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", workspace.DefaultSettle, "quiet period before a new file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := appCfg.Workspace.Inbox
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)
	return workspace.Watch(cmd.Context(), dir, watchSettle, func(ctx context.Context, path string) {
		p, err := a.open(path)
		if err != nil {
			logger.Error("Could not import inbox file", "path", path, "error", err)
			return
		}
		defer p.Close()
		summary, err := p.Ingest(ctx)
		if err != nil {
			logger.Error("Could not ingest inbox file", "path", path, "error", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s: %s\n", p.Handle().Identifier, summary.Text)
	})
}
