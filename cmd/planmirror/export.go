package main

import (
	"fmt"

	"github.com/dgallion1/planmirror/internal/config"
	"github.com/dgallion1/planmirror/internal/export"
	"github.com/dgallion1/planmirror/internal/state"
	"github.com/dgallion1/planmirror/internal/store"
	"github.com/spf13/cobra"
)

var (
	exportOut   string
	exportDocID string
)

var exportCmd = &cobra.Command{
	Use:   "export <pdf>",
	Short: "Export an assembled document as DOCX",
	Long: `Export renders a document to DOCX. By default it reads the newest
snapshot for the given PDF; with --doc-id it reads the document store
instead.

Examples:
  planmirror export plans/chapter1.pdf -o chapter1.docx
  planmirror export --doc-id 7f3c... -o chapter1.docx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output DOCX path (required)")
	exportCmd.Flags().StringVar(&exportDocID, "doc-id", "", "export a stored document by id instead of a snapshot")
	exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg := config.Load()

	if exportDocID != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		doc, err := st.LoadDocument(cmd.Context(), exportDocID)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		if err := export.DOCX(doc, exportOut); err != nil {
			return fmt.Errorf("docx export: %w", err)
		}
		log.Info("docx written", "path", exportOut, "doc_id", exportDocID)
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("a PDF argument or --doc-id is required")
	}
	s, err := state.LoadLatest(cfg.OutputDir, args[0])
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if s == nil || s.Doc == nil {
		return fmt.Errorf("no snapshot found for %s", args[0])
	}
	if err := export.DOCX(s.Doc, exportOut); err != nil {
		return fmt.Errorf("docx export: %w", err)
	}
	log.Info("docx written", "path", exportOut, "pdf", args[0])
	return nil
}
