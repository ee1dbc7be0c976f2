package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"docqa/internal/chain"
	"docqa/internal/domain"
	"docqa/internal/generation"
	"docqa/internal/workspace"
)

// snippetChars is how much of each retrieved passage is printed.
const snippetChars = 500

var (
	askNoSources  bool
	highlightOut  string
	highlightShow bool
)

var askCmd = &cobra.Command{
	Use:   "ask [document] [question]",
	Short: "Answer a question about a document",
	Long: `Retrieves the passages most relevant to the question and streams an
answer from the configured generation model.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

var highlightCmd = &cobra.Command{
	Use:   "highlight [document] [question]",
	Short: "Answer a question and highlight its sources in the PDF",
	Long: `Answers the question like ask, then writes a copy of the source PDF
with the retrieved passages highlighted.`,
	Args: cobra.ExactArgs(2),
	RunE: runHighlight,
}

func init() {
	askCmd.Flags().BoolVar(&askNoSources, "no-sources", false, "do not print retrieved passages")
	highlightCmd.Flags().StringVarP(&highlightOut, "output", "o", "", "output PDF path (default next to the stored source)")
	highlightCmd.Flags().BoolVar(&highlightShow, "answer", true, "print the streamed answer")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(highlightCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.ready(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	ans, err := p.Answer(cmd.Context(), args[1], a.answerOptions(modelName))
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	if !askNoSources {
		printSources(cmd, ans.Sources)
	}
	return streamAnswer(cmd, ans)
}

func runHighlight(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.ready(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	ans, err := p.Answer(cmd.Context(), args[1], a.answerOptions(modelName))
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	if highlightShow {
		if err := streamAnswer(cmd, ans); err != nil {
			return err
		}
	} else {
		_ = ans.Stream.Close()
	}

	out := highlightOut
	if out == "" {
		out = workspace.HighlightPath(p.Handle())
	}
	res, err := p.Highlight(cmd.Context(), ans.Sources, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d highlights, %d passages skipped)\n", res.OutputPath, res.Annotations, res.Skipped)
	return nil
}

func printSources(cmd *cobra.Command, sources []domain.TextUnit) {
	for i, s := range sources {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n%s\n\n", i+1, s.Position, domain.Snippet(s.Content, snippetChars))
	}
}

// streamAnswer prints fragments as they arrive. A stalled stream keeps the
// partial answer and is reported as a warning.
func streamAnswer(cmd *cobra.Command, ans *chain.Answer) error {
	defer ans.Stream.Close()
	out := cmd.OutOrStdout()
	for {
		frag, err := ans.Stream.Next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if errors.Is(err, generation.ErrIdleTimeout) {
			fmt.Fprintln(out)
			cmd.PrintErrln("warning: answer stream stalled; output is partial")
			return nil
		}
		if err != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("answer failed: %w", err)
		}
		fmt.Fprint(out, frag)
	}
}
