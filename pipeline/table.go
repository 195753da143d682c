// Package pipeline contains the resumable CSV stages: collecting listing
// URLs, scraping base info per listing, precomputing station coordinates, and
// enriching base info with nearest-station data. Every stage skips rows whose
// identifier already exists in its output table, so an interrupted run can be
// re-run without redoing work.
package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	mapset "github.com/deckarep/golang-set/v2"

	"hdbscout/models"
)

// ReadURLColumn reads a headerless one-column table of listing URLs.
func ReadURLColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var urls []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("read %s", path), err)
		}
		if len(rec) != 1 {
			return nil, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("%s: expected 1 column, row has %d", path, len(rec)), nil)
		}
		urls = append(urls, rec[0])
	}
	return urls, nil
}

// ReadRows reads a header-keyed table into one map per row.
func ReadRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBadTable,
			fmt.Sprintf("%s: unreadable header", path), err)
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("read %s", path), err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ResumeSet collects the identifier column of an existing output table. When
// the table does not exist yet, exists is false and the set is empty. A table
// that exists but lacks the identifier column is corrupt resume state and is
// a fatal error, not something to silently append to.
func ResumeSet(path, keyColumn string) (exists bool, seen mapset.Set[string], err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		slog.Debug("output table does not exist yet", "path", path)
		return false, mapset.NewSet[string](), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return false, nil, models.NewScrapeError(models.ErrCodeBadTable,
			fmt.Sprintf("%s: unreadable header", path), err)
	}

	keyIdx := -1
	for i, col := range header {
		if col == keyColumn {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return false, nil, models.NewScrapeError(models.ErrCodeBadTable,
			fmt.Sprintf("%s: missing identifier column %q", path, keyColumn), nil)
	}

	seen = mapset.NewSet[string]()
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, nil, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("read %s", path), err)
		}
		if keyIdx >= len(rec) {
			return false, nil, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("%s: row missing identifier column", path), nil)
		}
		seen.Add(rec[keyIdx])
	}

	slog.Info("already-processed rows found", "path", path, "count", seen.Cardinality())
	return true, seen, nil
}

// AppendWriter appends rows to a CSV table, flushing and fsyncing after every
// row so a crash mid-run loses at most the in-flight item.
type AppendWriter struct {
	file *os.File
	w    *csv.Writer
}

// NewAppendWriter opens (or creates) the table at path. The header is written
// only when writeHeader is true, i.e. when the file is fresh.
func NewAppendWriter(path string, header []string, writeHeader bool) (*AppendWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s for append: %w", path, err)
	}
	aw := &AppendWriter{file: f, w: csv.NewWriter(f)}
	if writeHeader && len(header) > 0 {
		if err := aw.WriteRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return aw, nil
}

// WriteRow appends one row and makes it durable before returning.
func (a *AppendWriter) WriteRow(row []string) error {
	if err := a.w.Write(row); err != nil {
		return err
	}
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		return err
	}
	return a.file.Sync()
}

func (a *AppendWriter) Close() error {
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		a.file.Close()
		return err
	}
	return a.file.Close()
}
