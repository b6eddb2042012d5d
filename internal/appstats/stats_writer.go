package appstats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

type StatsFileOutput struct {
	SessionStats   *SessionStats `json:"sessionStats"`
	StatsTimestamp int64         `json:"statsTimestamp"`
}

// StatsFileWriter persists one finalize report per session under
// basePath, for offline inspection of what was recorded and what
// uploaded.
type StatsFileWriter struct {
	basePath string
	fileMode os.FileMode
}

func NewStatsFileWriter(basePath string, fileMode os.FileMode) *StatsFileWriter {
	return &StatsFileWriter{
		basePath: basePath,
		fileMode: fileMode,
	}
}

func (w *StatsFileWriter) WriteStats(sessionID string, stats *StatsFileOutput) error {
	statsFilePath := filepath.Join(w.basePath, fmt.Sprintf("session-%s-stats.json", sessionID))

	jsonData, err := json.MarshalIndent(stats, "", "  ")

	if err != nil {
		return fmt.Errorf("JSON marshalling failed: %w", err)
	}

	if err := os.WriteFile(statsFilePath, jsonData, w.fileMode); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}

	log.WithField("path", statsFilePath).
		WithField("stats", string(jsonData)).
		Tracef("Wrote session stats to file")

	return nil
}
