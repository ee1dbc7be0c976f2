package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Import and index documents",
	Long: `Copies each PDF or DOCX file into the workspace, builds its vector index
and prints its summary. An existing index is reused without re-embedding.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [document]",
	Short: "Print the summary of a document",
	Long:  `Summarizes a stored document (by identifier) or a file, indexing it first when needed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(summarizeCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		p, err := a.open(path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		summary, err := p.Ingest(cmd.Context())
		_ = p.Close()
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s\n", p.Handle().Identifier)
		fmt.Fprintf(cmd.OutOrStdout(), "Summary: %s\n\n", summary.Text)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer p.Close()
	summary, err := p.Ingest(cmd.Context())
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary.Text)
	return nil
}
