package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuygur/llm-council/internal/models"
	"github.com/cuygur/llm-council/internal/openrouter"
	"github.com/cuygur/llm-council/internal/pricing"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available council models with pricing",
		RunE:  runModels,
	}
	cmd.Flags().Bool("live", false, "Fetch the live OpenRouter catalog instead of the curated list")
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	live, _ := cmd.Flags().GetBool("live")

	entries := models.DefaultCatalog()
	if live {
		apiKey, _ := cmd.Root().PersistentFlags().GetString("api-key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("API key required for --live: set --api-key flag or OPENROUTER_API_KEY env var")
		}
		entries = models.Fetch(cmd.Context(), openrouter.NewClient(apiKey))
	}

	for _, e := range entries {
		price := pricing.ForModel(e.ID)
		fmt.Printf("%-40s %-12s in $%.2f/M out $%.2f/M  %s\n", e.ID, e.Provider, price.Prompt, price.Completion, e.Description)
	}
	return nil
}
