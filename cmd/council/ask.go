package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuygur/llm-council/internal/council"
	"github.com/cuygur/llm-council/internal/openrouter"
	"github.com/cuygur/llm-council/internal/output"
	"github.com/cuygur/llm-council/internal/persona"
	"github.com/cuygur/llm-council/internal/storage"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the council a question and print the full deliberation",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	cmd.Flags().String("mode", "standard", "Council mode: standard or roleplay (per-question personas)")
	cmd.Flags().Bool("save", false, "Save the run as a conversation in the data directory")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	mode, _ := cmd.Flags().GetString("mode")
	save, _ := cmd.Flags().GetBool("save")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := openrouter.NewClient(cfg.APIKey)
	runCfg := cfg.Council
	runCfg.Mode = mode

	if mode == persona.ModeRoleplay {
		resolver := persona.NewResolver(client, runCfg.Auxiliary())
		runCfg.Personas = resolver.Resolve(ctx, mode, question, runCfg.CouncilModels, runCfg.ChairmanModel)
		for model, p := range runCfg.Personas {
			fmt.Printf("%s: %s\n", output.Bold(model), p)
		}
	}

	engine := council.NewEngine(client, runCfg)
	engine.OnEvent = printEvent

	history := []openrouter.Message{{Role: "user", Content: question}}
	result, err := engine.Run(ctx, history)
	if err != nil {
		return fmt.Errorf("council: %w", err)
	}

	output.PrintAggregate(result.Metadata.AggregateRankings)
	output.PrintChairman(result.Chairman)
	output.PrintCost(result.Metadata)

	if save {
		if err := saveRun(cfg.DataDir, runCfg, question, result, client); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(ev council.Event) {
	switch ev.Type {
	case council.EventStage1Start:
		output.PrintStage("Stage 1: Collecting responses")
	case council.EventStage1Complete:
		if answers, ok := ev.Data.([]council.ModelAnswer); ok {
			for _, a := range answers {
				output.PrintAnswer(a)
			}
		}
	case council.EventStage2Start:
		output.PrintStage("Stage 2: Peer review")
	case council.EventStage2Complete:
		if verdicts, ok := ev.Data.([]council.RankingVerdict); ok {
			for _, v := range verdicts {
				output.PrintVerdict(v)
			}
		}
	case council.EventStage25Start:
		output.PrintStage("Stage 2.5: Rebuttals")
	case council.EventStage3Start:
		output.PrintStage("Stage 3: Chairman synthesis")
	}
}

func saveRun(dataDir string, runCfg council.Config, question string, result *council.RunResult, gw council.Gateway) error {
	store, err := storage.NewStore(dataDir)
	if err != nil {
		return err
	}
	conv, err := store.Create(storage.Options{
		CouncilModels: runCfg.CouncilModels,
		ChairmanModel: runCfg.ChairmanModel,
		Personas:      runCfg.Personas,
		Mode:          runCfg.Mode,
	})
	if err != nil {
		return err
	}
	if err := store.AppendUserMessage(conv.ID, question); err != nil {
		return err
	}
	if err := store.AppendAssistantMessage(conv.ID, result); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	title := council.GenerateTitle(ctx, gw, runCfg.Auxiliary(), question)
	if err := store.SetTitle(conv.ID, title); err != nil {
		return err
	}
	fmt.Printf("Saved conversation %s (%s)\n", conv.ID, title)
	return nil
}
