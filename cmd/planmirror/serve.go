package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/planmirror/internal/api"
	"github.com/dgallion1/planmirror/internal/config"
	"github.com/dgallion1/planmirror/internal/state"
	"github.com/dgallion1/planmirror/internal/store"
	"github.com/spf13/cobra"
)

var serveDoc string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live-preview HTTP server",
	Long: `Serve starts the HTTP server that browser editors poll for the
current document and push edits back to.

Examples:
  # Serve with an empty document
  planmirror serve

  # Preload the newest snapshot for a PDF
  planmirror serve --doc plans/chapter1.pdf`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDoc, "doc", "", "PDF whose newest snapshot is preloaded into the preview")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg := config.Load()

	var st *store.Store
	if cfg.DBPath != "" {
		var err error
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	srv := api.NewServer(st, log)

	if serveDoc != "" {
		s, err := state.LoadLatest(cfg.OutputDir, serveDoc)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if s == nil || s.Doc == nil {
			return fmt.Errorf("no snapshot found for %s", serveDoc)
		}
		srv.SetDocument(s.Doc)
		log.Info("preloaded snapshot", "pdf", serveDoc)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
