package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/vidx/internal/shared"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ManifestEntry is the outcome of one playlist in a bulk export.
type ManifestEntry struct {
	PlaylistID string   `json:"playlist_id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	Format            Format          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	OutputDirectory   string          `json:"output_directory"`
	TotalPlaylists    int             `json:"total_playlists"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Playlists         []ManifestEntry `json:"playlists"`
}

// Add appends an entry and updates the counters.
func (m *Manifest) Add(e ManifestEntry) {
	if e.Status == StatusSuccess {
		m.SuccessfulExports++
	} else {
		m.FailedExports++
	}
	m.Playlists = append(m.Playlists, e)
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
