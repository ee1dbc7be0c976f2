package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/chain"
	"docqa/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [document]",
	Short: "Chat about a document in an interactive terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer p.Close()
	summary, err := p.Ingest(ctx)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	opts := a.answerOptions(modelName)
	ask := func(ctx context.Context, q string) (*chain.Answer, error) {
		return p.Answer(ctx, q, opts)
	}
	title := fmt.Sprintf("%s  (%s)", p.Handle().Identifier, opts.Model)
	m := tui.New(ctx, ask, title, summary.Text)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
