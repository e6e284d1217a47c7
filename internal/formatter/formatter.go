// package formatter renders pages of tracks as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/desertthunder/crux/internal/models"
)

var ErrUnknownFormat = fmt.Errorf("unknown output format")

// Format selects how a page is rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists every supported [Format].
func Formats() []Format {
	return []Format{FormatText, FormatCSV, FormatMarkdown, FormatJSON}
}

// ParseFormat converts a name such as "md" or "CSV" into a [Format].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension is the file extension, without the dot, used for the format.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// ExportToCSV converts a page to CSV with columns: ID, Service, Title, Artist, Album, Duration, ISRC
func ExportToCSV(page models.Page[models.TrackView]) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Service", "Title", "Artist", "Album", "Duration", "ISRC"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range page.Content {
		record := []string{
			track.ID,
			track.Service,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.ISRC,
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

// ExportToMarkdown converts a page to a Markdown document headed by title.
func ExportToMarkdown(page models.Page[models.TrackView], title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Tracks"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d of %d\n", page.Len(), page.TotalElements)
	if page.Pagination.IsPaged() {
		fmt.Fprintf(&buf, "**Page**: %d of %d\n", page.Pagination.Number+1, page.TotalPages())
	}
	if page.Sort.IsSorted() {
		fmt.Fprintf(&buf, "**Sort**: %s\n", page.Sort)
	}

	buf.WriteString("\n## Tracks\n\n")
	for i, track := range page.Content {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", page.Pagination.Offset()+i+1, track.Artist, track.Title, albumPart, track.Length())
	}

	return buf.Bytes(), nil
}

// ExportToText converts a page to plain text format
func ExportToText(page models.Page[models.TrackView]) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Tracks: %d of %d", page.Len(), page.TotalElements)
	if page.Pagination.IsPaged() {
		fmt.Fprintf(&buf, " (page %d/%d)", page.Pagination.Number+1, page.TotalPages())
	}
	buf.WriteString("\n\n")

	for i, track := range page.Content {
		fmt.Fprintf(&buf, "%d. %s - %s [%s] %s\n", page.Pagination.Offset()+i+1, track.Artist, track.Title, track.Length(), track.ID)
	}

	return buf.Bytes(), nil
}

// ExportToJSON marshals v, indented when pretty is set.
func ExportToJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// Render converts a page to the requested format.
func Render(page models.Page[models.TrackView], format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(page)
	case FormatMarkdown:
		return ExportToMarkdown(page, "")
	case FormatJSON:
		return ExportToJSON(page, true)
	case FormatText, "":
		return ExportToText(page)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Write renders page to w.
func Write(w io.Writer, page models.Page[models.TrackView], format Format) error {
	data, err := Render(page, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteExport renders page to a file.
//
// Defaults to tracks.{ext} when path is empty. Returns the path written.
func WriteExport(page models.Page[models.TrackView], path string, format Format) (string, error) {
	if path == "" {
		path = "tracks." + format.Extension()
	}

	data, err := Render(page, format)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
