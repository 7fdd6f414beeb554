package main

import (
	"bufio"
	"context"
	"encoding/json"
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
	"github.com/dgallion1/planmirror/internal/export"
	"github.com/dgallion1/planmirror/internal/extract"
	"github.com/dgallion1/planmirror/internal/propose"
	"github.com/dgallion1/planmirror/internal/rules"
	"github.com/dgallion1/planmirror/internal/state"
	"github.com/dgallion1/planmirror/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeLatest bool
	sequential   bool
	rulesPath    string
	noPropose    bool
	autoApprove  bool
	docxPath     string
	docTitle     string
)

var processCmd = &cobra.Command{
	Use:   "process <pdf>",
	Short: "Process a PDF into a document tree",
	Long: `Process runs the full pipeline on one PDF: semantic extraction,
style extraction, block alignment, rule-based assembly, and image
reconciliation.

Examples:
  # Process a PDF from scratch
  planmirror process plans/chapter1.pdf

  # Resume from the most recent snapshot after a crash
  planmirror process plans/chapter1.pdf --resume-latest

  # Use declarative rules and skip the LLM fallback
  planmirror process plans/chapter1.pdf --rules rules.yaml --no-propose`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&resumeLatest, "resume-latest", false, "resume from the most recent snapshot for this PDF")
	processCmd.Flags().BoolVar(&sequential, "sequential", false, "use reading-order alignment instead of per-item matching")
	processCmd.Flags().StringVar(&rulesPath, "rules", "", "YAML rules file loaded on top of the built-in registry")
	processCmd.Flags().BoolVar(&noPropose, "no-propose", false, "disable LLM rule proposal for unmatched blocks")
	processCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "accept proposed rules without prompting")
	processCmd.Flags().StringVar(&docxPath, "docx", "", "also export the assembled document as DOCX")
	processCmd.Flags().StringVar(&docTitle, "title", "", "document title for the store (defaults to the PDF name)")
}

func runProcess(cmd *cobra.Command, args []string) error {
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

	pdfPath := args[0]
	s, err := buildState(ctx, cfg, pdfPath, log)
	if err != nil {
		return err
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

	final, runErr := asm.Run(ctx, s)

	// Always snapshot, even a partial state after a failure; that is
	// what --resume-latest picks up.
	path, saveErr := state.Save(cfg.OutputDir, final)
	if saveErr != nil {
		log.Error("failed to save snapshot", "error", saveErr)
	} else {
		log.Info("snapshot saved", "path", path)
	}
	if runErr != nil {
		return fmt.Errorf("assembly stopped: %w", runErr)
	}

	if err := persist(ctx, cfg, pdfPath, final, log); err != nil {
		return err
	}
	if docxPath != "" {
		if err := export.DOCX(final.Doc, docxPath); err != nil {
			return fmt.Errorf("docx export: %w", err)
		}
		log.Info("docx written", "path", docxPath)
	}
	return nil
}

// buildState either resumes the newest snapshot or runs both
// extraction passes fresh.
func buildState(ctx context.Context, cfg config.Config, pdfPath string, log *slog.Logger) (*assemble.State, error) {
	if resumeLatest {
		s, err := state.LoadLatest(cfg.OutputDir, pdfPath)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if s != nil {
			log.Info("resuming from snapshot", "page", s.PageIndex, "block", s.BlockIndex)
			return s, nil
		}
		log.Info("no snapshot found, starting fresh")
	}

	semClient := extract.NewSemanticClient(cfg.SemanticAPIKey, cfg.SemanticBaseURL, cfg.CacheDir, log)
	semPages, err := semClient.Parse(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("semantic extraction: %w", err)
	}

	styleExtractor := extract.NewStyleExtractor(cfg.OutputDir, log)
	stylePages, err := styleExtractor.Extract(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("style extraction: %w", err)
	}

	return assemble.NewState(pdfPath, semPages, stylePages), nil
}

func buildRegistry(cfg config.Config, log *slog.Logger) (*rules.Registry, error) {
	registry := rules.Builtin()
	if cfg.RulesPath != "" {
		n, err := rules.LoadFile(registry, cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		log.Info("loaded rules file", "path", cfg.RulesPath, "rules", n)
	}
	return registry, nil
}

// approvePrompt shows a proposed rule on the terminal and asks for a
// yes/no. With --auto-approve every proposal is accepted.
func approvePrompt(log *slog.Logger) propose.ApproveFunc {
	if autoApprove {
		return func(p *propose.Proposal) bool {
			log.Info("auto-approved proposed rule", "rule_id", p.RuleID)
			return true
		}
	}
	reader := bufio.NewReader(os.Stdin)
	return func(p *propose.Proposal) bool {
		if p.Rule != nil {
			body, _ := json.MarshalIndent(p.Rule, "", "  ")
			fmt.Fprintf(os.Stderr, "\nProposed rule %s:\n%s\n", p.RuleID, body)
		} else {
			fmt.Fprintf(os.Stderr, "\nProposed existing rule %s\n", p.RuleID)
		}
		fmt.Fprint(os.Stderr, "Accept? [y/N] ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func persist(ctx context.Context, cfg config.Config, pdfPath string, s *assemble.State, log *slog.Logger) error {
	if cfg.DBPath == "" {
		return nil
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	title := docTitle
	if title == "" {
		title = pdfBase(pdfPath)
	}
	docID, err := st.SaveDocument(ctx, cfg.Collection, title, slugify(title), pdfPath, s.Doc)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	log.Info("document stored", "doc_id", docID, "collection", cfg.Collection, "title", title)
	return nil
}

func pdfBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
