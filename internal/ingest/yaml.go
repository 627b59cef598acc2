package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLImporter handles .yaml and .yml files. Multi-document YAML (separated
// by ---) produces one note per document.
type YAMLImporter struct{}

// CanHandle returns true for YAML file extensions.
func (y *YAMLImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

type yamlNote struct {
	NID   string            `yaml:"nid"`
	Title string            `yaml:"title"`
	Body  string            `yaml:"body"`
	Tags  map[string]string `yaml:"tags"`
}

// Import parses a YAML file into notes, one per document.
func (y *YAMLImporter) Import(ctx context.Context, path string) ([]Note, error) {
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

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var notes []Note
	docNum := 0
	for {
		var doc yamlNote
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid YAML in %s (document %d): %w", path, docNum+1, err)
		}
		docNum++
		if strings.TrimSpace(doc.Title) == "" && strings.TrimSpace(doc.Body) == "" {
			continue
		}
		title := doc.Title
		if title == "" {
			title = titleFromPath(path)
			if docNum > 1 {
				title = fmt.Sprintf("%s [%d]", title, docNum)
			}
		}
		notes = append(notes, Note{
			NID:        doc.NID,
			Title:      title,
			Body:       doc.Body,
			SourceFile: absPath,
			Metadata:   doc.Tags,
		})
	}
	return notes, nil
}
