package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/logger"
)

var (
	cfgPath   string
	modelName string
	appCfg    *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about PDF and DOCX documents",
	Long: `docqa ingests PDF and DOCX files into a per-document vector index,
summarizes them, answers questions with retrieval-augmented generation
and highlights the passages an answer was drawn from.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ./docqa.yaml or ~/.config/docqa/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "generation model (default: first configured model)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	var err error
	if cfgPath == "" {
		appCfg, _, err = config.LoadDefault()
	} else {
		appCfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(appCfg.Log.Level, appCfg.Log.Format, cmd.ErrOrStderr())
	return nil
}
