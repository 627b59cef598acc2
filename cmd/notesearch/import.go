package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/notevault/notesearch/internal/index"
	"github.com/notevault/notesearch/internal/ingest"
	"github.com/notevault/notesearch/internal/store"
)

func runImport(args []string) error {
	var (
		paths     []string
		tenant    string
		recursive bool
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant":
			i++
			tenant = argAt(args, i)
		case arg == "--recursive" || arg == "-r":
			recursive = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			paths = append(paths, arg)
		}
	}
	if tenant == "" {
		return fmt.Errorf("--tenant is required")
	}
	if len(paths) == 0 {
		return fmt.Errorf("usage: notesearch import <path>... --tenant <uid>")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	imported, skipped := 0, 0
	for _, path := range paths {
		res, err := ingest.ImportPath(ctx, path, ingest.Options{Recursive: recursive})
		if err != nil {
			return err
		}
		for _, fe := range res.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.File, fe.Message)
		}
		for _, note := range res.Notes {
			ok, err := storeNote(ctx, a, tenant, note)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", note.SourceFile, err)
				continue
			}
			if ok {
				imported++
			} else {
				skipped++
			}
		}
	}

	fmt.Printf("Imported %d note(s), skipped %d already indexed\n", imported, skipped)
	return nil
}

// storeNote inserts one parsed note into the node store and the index.
// Returns false when the note is already indexed.
func storeNote(ctx context.Context, a *app, tenant string, note ingest.Note) (bool, error) {
	nid := note.NID
	if nid == "" {
		nid = nidFor(tenant, note.SourceFile, note.Title)
	}

	err := a.idx.Add(ctx, tenant, index.Document{NID: nid, Title: note.Title, Body: note.Body})
	if errors.Is(err, index.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := a.nodes.Insert(ctx, &store.Node{
		NID:      nid,
		UID:      tenant,
		Title:    note.Title,
		Body:     note.Body,
		Type:     store.TypeMarkdown,
		Disabled: note.Disabled,
		InTrash:  note.InTrash,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// nidFor derives a stable node id from tenant, source path, and title, so
// re-importing the same file is a no-op and multi-note files stay distinct.
func nidFor(tenant, path, title string) string {
	sum := sha256.Sum256([]byte(tenant + "\x00" + path + "\x00" + title))
	return hex.EncodeToString(sum[:])[:12]
}

// runRestoreDump rebuilds a tenant's index from a JSON dump, preserving
// timestamps and lifecycle flags. Safe to re-run: the restore is idempotent.
func runRestoreDump(args []string) error {
	var file, tenant string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant":
			i++
			tenant = argAt(args, i)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			file = arg
		}
	}
	if tenant == "" || file == "" {
		return fmt.Errorf("usage: notesearch restore-dump <file.json> --tenant <uid>")
	}

	ctx := context.Background()
	notes, err := (&ingest.JSONImporter{}).Import(ctx, file)
	if err != nil {
		return err
	}

	docs := make([]index.RestoreDocument, len(notes))
	for i, n := range notes {
		if n.NID == "" {
			return fmt.Errorf("dump entry %d has no nid", i)
		}
		docs[i] = index.RestoreDocument{
			NID:        n.NID,
			Title:      n.Title,
			Body:       n.Body,
			CreatedAt:  n.CreatedAt,
			ModifiedAt: n.ModifiedAt,
			Disabled:   n.Disabled,
			InTrash:    n.InTrash,
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	failed := a.idx.BatchRestoreDocs(ctx, tenant, docs)
	for _, f := range failed {
		fmt.Fprintf(os.Stderr, "  failed: %v\n", f)
	}
	fmt.Printf("Restored %d of %d document(s)\n", len(docs)-len(failed), len(docs))
	return nil
}
