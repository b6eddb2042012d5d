package appstats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatsFileWriter(t *testing.T) {
	// Create a temporary directory for testing
	tmpDir, err := os.MkdirTemp("", "stats-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Fatalf("Failed to remove temp dir: %v", err)
		}
	}()

	// Create a test writer
	writer := NewStatsFileWriter(tmpDir, 0600)

	// Test data
	testStats := &StatsFileOutput{
		SessionStats: &SessionStats{
			OwnerID: "test-owner",
			Segments: []*SegmentStats{
				{
					CreatedAt: time.Now().UnixMilli(),
					SizeBytes: 1024 * 512,
					MimeType:  "video/webm",
				},
				{
					CreatedAt: time.Now().UnixMilli() + 1000,
					SizeBytes: 1024 * 768,
					MimeType:  "video/webm",
				},
			},
			Uploads: &UploadStats{
				Attempted:   2,
				Uploaded:    1,
				Failed:      1,
				ProgressPct: 50,
			},
		},
		StatsTimestamp: time.Now().Unix(),
	}

	t.Run("WriteStats_Success", func(t *testing.T) {
		if err := writer.WriteStats("abc123", testStats); err != nil {
			t.Errorf("WriteStats failed: %v", err)
		}

		// Verify file was created
		statsPath := filepath.Join(tmpDir, "session-abc123-stats.json")
		if _, err := os.Stat(statsPath); os.IsNotExist(err) {
			t.Errorf("Stats file was not created: %v", err)
		}

		// Verify file content
		content, err := os.ReadFile(statsPath)
		if err != nil {
			t.Errorf("Failed to read stats file: %v", err)
		}

		var readStats StatsFileOutput
		if err := json.Unmarshal(content, &readStats); err != nil {
			t.Errorf("Failed to unmarshal stats file: %v", err)
		}

		// Verify content matches
		if readStats.SessionStats.OwnerID != testStats.SessionStats.OwnerID {
			t.Errorf("OwnerID mismatch: got %s, want %s",
				readStats.SessionStats.OwnerID, testStats.SessionStats.OwnerID)
		}

		if len(readStats.SessionStats.Segments) != len(testStats.SessionStats.Segments) {
			t.Errorf("Segment count mismatch: got %d, want %d",
				len(readStats.SessionStats.Segments), len(testStats.SessionStats.Segments))
		}

		if readStats.SessionStats.Uploads.Uploaded != testStats.SessionStats.Uploads.Uploaded {
			t.Errorf("Uploaded count mismatch: got %d, want %d",
				readStats.SessionStats.Uploads.Uploaded, testStats.SessionStats.Uploads.Uploaded)
		}
	})

	t.Run("WriteStats_InvalidPath", func(t *testing.T) {
		// Test with a base path that does not exist
		badWriter := NewStatsFileWriter(filepath.Join(tmpDir, "nonexistent"), 0600)
		if err := badWriter.WriteStats("abc123", testStats); err == nil {
			t.Error("Expected error for invalid path, got nil")
		}
	})

	t.Run("WriteStats_ReadOnlyDir", func(t *testing.T) {
		// Create a read-only directory
		roDir := filepath.Join(tmpDir, "readonly")
		if err := os.Mkdir(roDir, 0444); err != nil {
			t.Fatalf("Failed to create read-only dir: %v", err)
		}

		roWriter := NewStatsFileWriter(roDir, 0600)
		if err := roWriter.WriteStats("abc123", testStats); err == nil {
			t.Error("Expected error for read-only directory, got nil")
		}
	})
}
