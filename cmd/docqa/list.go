package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/index"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the workspace",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handles, err := a.ws.List()
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No documents found in %s.\n", a.ws.Root())
		return nil
	}
	for _, h := range handles {
		state := "not indexed"
		if index.Exists(h.IndexPath) {
			state = "indexed"
		}
		format := strings.TrimPrefix(filepath.Ext(h.SourcePath), ".")
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", h.Identifier, format, state)
	}
	return nil
}
