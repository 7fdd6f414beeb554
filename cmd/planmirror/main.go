package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "planmirror",
	Short: "Planmirror - PDF to rich-document assembly",
	Long: `Planmirror turns PDFs into editor-ready document trees.

It runs two extraction passes over a PDF (a semantic parse and a
style/layout parse), aligns the two into unified blocks, and maps each
block to a document node through a rule registry. Blocks no rule
matches can be escalated to an LLM that proposes a new rule.

Outputs are timestamped JSON snapshots, a SQLite document store, and
optional DOCX exports. A small HTTP server feeds live browser editors.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(runAllCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
