package ingest

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MarkdownImporter handles .md and .markdown files. One file is one note.
type MarkdownImporter struct{}

// CanHandle returns true for Markdown file extensions.
func (m *MarkdownImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

var h1Re = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// Import parses a Markdown file into a single note.
//
// Title resolution order: front matter "title" key, first h1 heading, file
// name. YAML front matter is stripped from the body but kept as metadata.
func (m *MarkdownImporter) Import(ctx context.Context, path string) ([]Note, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	metadata, body := stripFrontMatter(content)

	title := ""
	if metadata != nil {
		title = metadata["title"]
	}
	if title == "" {
		if match := h1Re.FindStringSubmatch(body); match != nil {
			title = strings.TrimSpace(match[1])
		}
	}
	if title == "" {
		title = titleFromPath(path)
	}

	return []Note{{
		Title:      title,
		Body:       strings.TrimSpace(body),
		SourceFile: absPath,
		Metadata:   metadata,
	}}, nil
}

// stripFrontMatter removes YAML front matter (--- delimited) from content.
// Returns the key/value metadata and the remaining body.
func stripFrontMatter(content string) (map[string]string, string) {
	if !strings.HasPrefix(strings.TrimSpace(content), "---") {
		return nil, content
	}

	trimmed := strings.TrimSpace(content)
	rest := trimmed[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, content
	}

	fmContent := strings.TrimSpace(rest[:idx])
	body := rest[idx+4:]

	metadata := make(map[string]string)
	for _, line := range strings.Split(fmContent, "\n") {
		line = strings.TrimSpace(line)
		if colonIdx := strings.Index(line, ":"); colonIdx > 0 {
			key := strings.TrimSpace(line[:colonIdx])
			val := strings.Trim(strings.TrimSpace(line[colonIdx+1:]), `"'`)
			if key != "" && val != "" {
				metadata[key] = val
			}
		}
	}
	return metadata, body
}
