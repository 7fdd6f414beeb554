// Package state persists pipeline snapshots to disk so an interrupted
// run can resume from its latest good state.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/dgallion1/planmirror/internal/assemble"
)

// Dir returns the snapshot directory for a PDF under the output root.
func Dir(outputDir, pdfPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(outputDir, "pipeline", base)
}

// Save writes a timestamped snapshot and returns its path. Snapshots are
// append-only; older ones are kept as inspectable prior states.
func Save(outputDir string, s *assemble.State) (string, error) {
	dir := Dir(outputDir, s.PDFPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := sonic.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("output_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadLatest returns the most recent snapshot for the PDF, or nil when
// none exists.
func LoadLatest(outputDir, pdfPath string) (*assemble.State, error) {
	dir := Dir(outputDir, pdfPath)
	matches, err := filepath.Glob(filepath.Join(dir, "output_*.json"))
	if err != nil || len(matches) == 0 {
		return nil, nil
	}

	var latest string
	var latestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = m
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return nil, nil
	}

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", latest, err)
	}
	var s assemble.State
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", latest, err)
	}
	return &s, nil
}
