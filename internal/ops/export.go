package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

		"github.com/hpungsan/lector/internal/db"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
)

// Export formats.
const (
	ExportMarkdown = "markdown"
	ExportJSONL    = "jsonl"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path          string // optional, default: <base>/exports/reading-list-<timestamp>.<ext>
	Format        string // markdown (default) or jsonl
	ProcessedOnly bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes stored items to a file. The file is written to a temp path
// and renamed into place, so an existing export survives a failed run.
func Export(ctx context.Context, database *sql.DB, baseDir string, input ExportInput) (*ExportOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = ExportMarkdown
	}
	if format != ExportMarkdown && format != ExportJSONL {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want markdown or jsonl)", input.Format))
	}

	now := time.Now().UTC()
	exportPath := input.Path
	if exportPath == "" {
		exportPath = defaultExportPath(baseDir, format, now)
	}

	items, err := db.ListItems(ctx, database, db.AllItems)
	if err != nil {
		return nil, err
	}
	if input.ProcessedOnly {
		items = processedItems(items)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	file, err := os.CreateTemp(filepath.Dir(exportPath), filepath.Base(exportPath)+".*.tmp")
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	tempPath := file.Name()

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	if format == ExportJSONL {
		err = writeJSONL(w, items)
	} else {
		err = writeMarkdown(w, items, now)
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to write export: %w", err))
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path must not be a symlink")
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	success = true

	logrus.WithFields(logrus.Fields{
		"path":   exportPath,
		"format": format,
		"items":  len(items),
	}).Info("Export complete")

	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      len(items),
		ExportedAt: now.Unix(),
	}, nil
}

// DefaultExportDir returns the directory default exports are written to.
func DefaultExportDir(baseDir string) string {
	return filepath.Join(baseDir, "exports")
}

// defaultExportPath builds <base>/exports/reading-list-<timestamp>.<ext>.
func defaultExportPath(baseDir, format string, now time.Time) string {
	ext := "md"
	if format == ExportJSONL {
		ext = "jsonl"
	}
	name := fmt.Sprintf("reading-list-%s.%s", now.Format("2006-01-02T150405"), ext)
	return filepath.Join(DefaultExportDir(baseDir), name)
}

func processedItems(items []item.Item) []item.Item {
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		if it.Processed {
			out = append(out, it)
		}
	}
	return out
}

// writeJSONL writes one item per line without the extracted page content.
func writeJSONL(w *bufio.Writer, items []item.Item) error {
	enc := json.NewEncoder(w)
	for i := range items {
		record := items[i]
		record.Content = nil
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// writeMarkdown writes a digest with one section per item.
func writeMarkdown(w *bufio.Writer, items []item.Item, now time.Time) error {
	fmt.Fprintf(w, "# Reading List\n\nExported %s, %d items.\n", now.Format("2006-01-02 15:04 UTC"), len(items))

	for i := range items {
		it := &items[i]
		fmt.Fprintf(w, "\n## [%s](%s)\n\n", escapeLinkText(it.DisplayTitle()), escapeLinkDestination(it.URL))
		fmt.Fprintf(w, "Added %s", it.AddedDate.Format("2006-01-02"))
		if it.ProcessedDate != nil {
			fmt.Fprintf(w, " · summarized %s", it.ProcessedDate.Format("2006-01-02"))
		}
		w.WriteString("\n\n")

		if it.Summary != nil {
			w.WriteString(strings.TrimSpace(*it.Summary))
		} else {
			w.WriteString("_Not summarized yet._")
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

// escapeLinkDestination percent-encodes characters that would end or split a
// markdown link destination.
func escapeLinkDestination(u string) string {
	return strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E").Replace(u)
}

// escapeLinkText escapes characters that would end a markdown link label.
func escapeLinkText(s string) string {
	return strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`).Replace(s)
}
