package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVImporter handles .csv files with a header row. A "title" and a "body"
// column are expected (case-insensitive); a "nid" column is optional. Each
// data row becomes one note.
type CSVImporter struct{}

// CanHandle returns true for CSV file extensions.
func (c *CSVImporter) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".csv"
}

// Import parses a CSV file into notes.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]Note, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV in %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	nidCol, titleCol, bodyCol := -1, -1, -1
	for i, name := range records[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "nid":
			nidCol = i
		case "title":
			titleCol = i
		case "body", "content":
			bodyCol = i
		}
	}
	if titleCol < 0 && bodyCol < 0 {
		return nil, fmt.Errorf("csv %s has no title or body column", path)
	}

	cell := func(row []string, col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	var notes []Note
	for i, row := range records[1:] {
		title := cell(row, titleCol)
		body := cell(row, bodyCol)
		if title == "" && body == "" {
			continue
		}
		if title == "" {
			title = fmt.Sprintf("%s [%d]", titleFromPath(path), i+1)
		}
		notes = append(notes, Note{
			NID:        cell(row, nidCol),
			Title:      title,
			Body:       body,
			SourceFile: absPath,
		})
	}
	return notes, nil
}
