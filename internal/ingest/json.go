package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// JSONImporter handles .json note dumps: an array of note objects. Dumps
// carry identity and lifecycle state, so nid, timestamps, and flags pass
// through when present.
type JSONImporter struct{}

// CanHandle returns true for JSON file extensions.
func (j *JSONImporter) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

type jsonNote struct {
	NID        string    `json:"nid"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Disabled   bool      `json:"disabled"`
	InTrash    bool      `json:"in_trash"`
}

// Import parses a JSON dump file into notes.
func (j *JSONImporter) Import(ctx context.Context, path string) ([]Note, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var entries []jsonNote
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid JSON dump in %s: %w", path, err)
	}

	var notes []Note
	for i, e := range entries {
		if strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Body) == "" {
			continue
		}
		title := e.Title
		if title == "" {
			title = fmt.Sprintf("%s [%d]", titleFromPath(path), i)
		}
		notes = append(notes, Note{
			NID:        e.NID,
			Title:      title,
			Body:       e.Body,
			SourceFile: absPath,
			CreatedAt:  e.CreatedAt,
			ModifiedAt: e.ModifiedAt,
			Disabled:   e.Disabled,
			InTrash:    e.InTrash,
		})
	}
	return notes, nil
}
