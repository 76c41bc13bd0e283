package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cuygur/llm-council/internal/openrouter"
	"github.com/cuygur/llm-council/internal/server"
	"github.com/cuygur/llm-council/internal/storage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the council HTTP API server",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "Listen address (overrides COUNCIL_LISTEN_ADDR env var)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	client := openrouter.NewClient(cfg.APIKey)
	srv := server.New(client, client, store, cfg.Council, logger)
	return srv.Run(cfg.ListenAddr)
}
