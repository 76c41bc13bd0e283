package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuygur/llm-council/internal/export"
	"github.com/cuygur/llm-council/internal/storage"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <conversation-id>",
		Short: "Export a stored conversation as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	cmd.Flags().String("format", "markdown", "Export format: markdown or json")
	cmd.Flags().String("out", "", "Write to a file instead of stdout")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	// exporting is offline; only the data directory matters
	dataDir, _ := cmd.Root().PersistentFlags().GetString("data-dir")
	if dataDir == "" {
		dataDir = os.Getenv("COUNCIL_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = "data/conversations"
	}

	store, err := storage.NewStore(dataDir)
	if err != nil {
		return err
	}
	conv, err := store.Get(args[0])
	if err != nil {
		return err
	}

	var rendered string
	switch format {
	case "markdown":
		rendered = export.Markdown(conv)
	case "json":
		rendered, err = export.JSON(conv, true)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("format must be markdown or json, got %q", format)
	}

	if out == "" {
		fmt.Print(rendered)
		return nil
	}
	if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("Exported conversation %s to %s\n", conv.ID, out)
	return nil
}
