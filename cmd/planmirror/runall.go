package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/assemble"
	"github.com/dgallion1/planmirror/internal/config"
	"github.com/dgallion1/planmirror/internal/propose"
	"github.com/dgallion1/planmirror/internal/state"
	"github.com/spf13/cobra"
)

var runAllCmd = &cobra.Command{
	Use:   "run-all <dir>",
	Short: "Process every PDF in a directory",
	Long: `Run-all processes each PDF in the given directory (non-recursive)
through the full pipeline. A failure on one file is logged and the
batch continues with the next.

Examples:
  planmirror run-all plans/
  planmirror run-all plans/ --resume-latest --no-propose`,
	Args: cobra.ExactArgs(1),
	RunE: runAll,
}

func init() {
	runAllCmd.Flags().BoolVar(&resumeLatest, "resume-latest", false, "resume each PDF from its most recent snapshot")
	runAllCmd.Flags().BoolVar(&sequential, "sequential", false, "use reading-order alignment instead of per-item matching")
	runAllCmd.Flags().StringVar(&rulesPath, "rules", "", "YAML rules file loaded on top of the built-in registry")
	runAllCmd.Flags().BoolVar(&noPropose, "no-propose", false, "disable LLM rule proposal for unmatched blocks")
	runAllCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "accept proposed rules without prompting")
}

func runAll(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg := config.Load()
	if rulesPath != "" {
		cfg.RulesPath = rulesPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	entries, err := os.ReadDir(args[0])
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	var proposer propose.Proposer
	if !noPropose {
		llm := propose.NewLLMProposer(cfg.ProposerAPIKey, cfg.ProposerModel, cfg.ProposerBaseURL, registry, approvePrompt(log), log)
		defer llm.Close()
		proposer = llm
	}

	aligner := align.New(align.Options{
		BBoxMargin:     cfg.BBoxMargin,
		FuzzyThreshold: cfg.FuzzyThreshold,
		GrowthLimit:    cfg.GrowthLimit,
	})
	asm := assemble.New(aligner, registry, proposer, sequential, log)

	failures := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pdfPath := filepath.Join(args[0], entry.Name())
		log.Info("processing file", "path", pdfPath)
		if err := processFile(ctx, cfg, asm, pdfPath, log); err != nil {
			log.Error("processing failed", "path", pdfPath, "error", err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d file(s) failed", failures)
	}
	return nil
}

func processFile(ctx context.Context, cfg config.Config, asm *assemble.Assembler, pdfPath string, log *slog.Logger) error {
	s, err := buildState(ctx, cfg, pdfPath, log)
	if err != nil {
		return err
	}

	final, runErr := asm.Run(ctx, s)
	if path, saveErr := state.Save(cfg.OutputDir, final); saveErr != nil {
		log.Error("failed to save snapshot", "path", pdfPath, "error", saveErr)
	} else {
		log.Info("snapshot saved", "path", path)
	}
	if runErr != nil {
		return runErr
	}
	return persist(ctx, cfg, pdfPath, final, log)
}
