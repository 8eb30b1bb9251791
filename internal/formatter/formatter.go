// package formatter renders playlists for export (JSON, CSV, Markdown, plain text) and writes bulk export manifests
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts a format name or a common alias (md, text). Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// ExportToJSON renders the playlist with its entries as indented JSON.
func ExportToJSON(p *models.Playlist) ([]byte, error) {
	return shared.MarshalJSON(p, true)
}

// ExportToCSV converts a playlist to CSV with columns: Position, ID, Title, Duration, Views, Likes
func ExportToCSV(p *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Duration", "Views", "Likes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range p.Videos {
		record := []string{
			strconv.Itoa(entry.Position),
			entry.Video.ID,
			entry.Video.Title,
			strconv.Itoa(entry.Video.Duration),
			strconv.FormatInt(entry.Video.Views, 10),
			strconv.FormatInt(entry.Video.Likes, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func owner(p *models.Playlist) string {
	if p.User == nil {
		return ""
	}
	if p.User.DisplayName != "" {
		return p.User.DisplayName
	}
	return p.User.Username
}

// ExportToMarkdown converts a playlist to Markdown with an optional cover image
func ExportToMarkdown(p *models.Playlist, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", p.Title)
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}
	if p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	}
	if name := owner(p); name != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", name)
	}
	fmt.Fprintf(&buf, "**Videos**: %d\n", len(p.Videos))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", shared.VisibilityString(p.IsPrivate))

	buf.WriteString("## Videos\n\n")
	for _, entry := range p.Videos {
		v := entry.Video
		fmt.Fprintf(&buf, "%d. %s [%s] (%s views)\n", entry.Position+1, v.Title, shared.FormatDuration(v.Duration), shared.FormatCount(v.Views))
	}
	return buf.Bytes(), nil
}

// ExportToText converts a playlist to plain text
func ExportToText(p *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", p.Title)
	if p.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&buf, "Videos: %d\n\n", len(p.Videos))

	for _, entry := range p.Videos {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", entry.Position+1, entry.Video.Title, shared.FormatDuration(entry.Video.Duration))
	}
	return buf.Bytes(), nil
}

// DownloadImage fetches url and returns the raw bytes.
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// ToMetadataJSON renders playlist metadata without its entries
func ToMetadataJSON(p models.Playlist) ([]byte, error) {
	p.Videos = nil
	return shared.MarshalJSON(p, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	VideosFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_videos.csv and {base}_metadata.json.
//
// base defaults to the playlist ID.
func WriteCSVExport(p *models.Playlist, base string) (*CSVExportResult, error) {
	if base == "" {
		base = p.ID
	}

	csvData, err := ExportToCSV(p)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}
	videosFile := base + "_videos.csv"
	if err := os.WriteFile(videosFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadata, err := ToMetadataJSON(*p)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}
	metadataFile := base + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadata, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{VideosFile: videosFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	Warning    string // set when the cover could not be saved
}

// WriteMarkdownExport writes {dir}/README.md and, when imageURL is set, {dir}/cover.jpg.
//
// A cover download failure is reported in Warning and does not fail the export.
func WriteMarkdownExport(ctx context.Context, p *models.Playlist, dir, imageURL string) (*MarkdownExportResult, error) {
	if dir == "" {
		dir = p.ID
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: dir, Files: []string{}}

	var cover string
	if imageURL != "" {
		if data, err := DownloadImage(ctx, imageURL); err != nil {
			result.Warning = err.Error()
		} else {
			path := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(path, data, 0644); err != nil {
				result.Warning = fmt.Sprintf("failed to save cover image: %v", err)
			} else {
				cover = "cover.jpg"
				result.CoverImage = path
				result.Files = append(result.Files, path)
			}
		}
	}

	md, err := ExportToMarkdown(p, cover)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport writes the text rendering to path, defaulting to {ID}_videos.txt.
func WriteTextExport(p *models.Playlist, path string) (string, error) {
	if path == "" {
		path = p.ID + "_videos.txt"
	}
	data, err := ExportToText(p)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes the JSON rendering to path, defaulting to {ID}.json.
func WriteJSONExport(p *models.Playlist, path string) (string, error) {
	if path == "" {
		path = p.ID + ".json"
	}
	data, err := ExportToJSON(p)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// WriteExport writes p into dir in the given format and returns the created files.
func WriteExport(ctx context.Context, p *models.Playlist, format Format, dir, imageURL string) ([]string, error) {
	switch format {
	case FormatCSV:
		res, err := WriteCSVExport(p, filepath.Join(dir, p.ID))
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.VideosFile, res.MetadataFile}, nil
	case FormatMarkdown:
		res, err := WriteMarkdownExport(ctx, p, filepath.Join(dir, p.ID), imageURL)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return res.Files, nil
	case FormatText:
		path, err := WriteTextExport(p, filepath.Join(dir, p.ID+"_videos.txt"))
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil
	default:
		path, err := WriteJSONExport(p, filepath.Join(dir, p.ID+".json"))
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
}
