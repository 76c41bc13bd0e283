package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuygur/llm-council/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "council",
		Short: "Multi-model LLM council over OpenRouter",
		Long:  "Sends a question to a council of LLMs, has them anonymously rank each other's answers, lets each model revise its answer against the peer critique, and asks a chairman model to synthesize the final response.",
	}

	root.PersistentFlags().String("api-key", "", "OpenRouter API key (overrides OPENROUTER_API_KEY env var)")
	root.PersistentFlags().String("data-dir", "", "Conversation storage directory (overrides COUNCIL_DATA_DIR env var)")
	root.PersistentFlags().String("roster", "", "Path to a council.yaml roster file")

	root.AddCommand(newAskCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newExportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: environment (plus .env),
// optional roster file, then persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if apiKey, _ := cmd.Root().PersistentFlags().GetString("api-key"); apiKey != "" {
		os.Setenv("OPENROUTER_API_KEY", apiKey)
	}
	rosterPath, _ := cmd.Root().PersistentFlags().GetString("roster")

	cfg, err := config.Load(rosterPath)
	if err != nil {
		return nil, err
	}
	if dataDir, _ := cmd.Root().PersistentFlags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
