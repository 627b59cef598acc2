package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/notevault/notesearch/internal/config"
	"github.com/notevault/notesearch/internal/index"
	"github.com/notevault/notesearch/internal/recent"
	"github.com/notevault/notesearch/internal/search"
	"github.com/notevault/notesearch/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "recommend":
		err = runRecommend(os.Args[2:])
	case "at":
		err = runAt(os.Args[2:])
	case "trash":
		err = runTrash(os.Args[2:], true)
	case "restore":
		err = runTrash(os.Args[2:], false)
	case "restore-dump":
		err = runRestoreDump(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("notesearch %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the constructed subsystem for one CLI invocation.
type app struct {
	cfg    config.Config
	nodes  store.NodeStore
	idx    index.Engine
	engine *search.Engine
	log    *zap.Logger
}

// openApp builds the store, index, and search engine from configuration.
// The caller must call close.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(os.Getenv("NOTESEARCH_CONFIG"))
	if err != nil {
		return nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	var nodes store.NodeStore
	switch cfg.Store.Driver {
	case "mongo":
		nodes, err = store.NewMongoStore(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	default:
		nodes, err = store.NewSQLiteStore(cfg.NodeDBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("opening node store: %w", err)
	}

	idx, err := index.NewSQLiteEngine(index.Options{
		DBPath:        cfg.IndexDBPath,
		Tokenizer:     cfg.Search.Tokenizer,
		Stopwords:     cfg.Search.Stopwords,
		HighlightPre:  cfg.Search.HighlightPre,
		HighlightPost: cfg.Search.HighlightPost,
		Ellipsis:      cfg.Search.Ellipsis,
		SnippetTokens: cfg.Search.SnippetTokens,
		MaxPageSize:   cfg.Search.MaxPageSize,
	})
	if err != nil {
		nodes.Close(ctx)
		return nil, fmt.Errorf("opening index: %w", err)
	}

	tracker := recent.NewTracker(nodes)
	return &app{
		cfg:    cfg,
		nodes:  nodes,
		idx:    idx,
		engine: search.NewEngine(idx, nodes, tracker, log),
		log:    log,
	}, nil
}

func (a *app) close(ctx context.Context) {
	a.idx.Close()
	a.nodes.Close(ctx)
	a.log.Sync()
}

func printUsage() {
	fmt.Println(`notesearch - personal note search and recommendation engine

Usage:
  notesearch import <path>... --tenant <uid> [--recursive]
  notesearch search <query> --tenant <uid> [--sort relevance|created|modified|title]
                    [--reverse] [--page N] [--limit N] [--trash]
  notesearch recommend <content> --tenant <uid> [--max N] [--exclude nid,nid]
  notesearch at --tenant <uid> --nid <nid> [--select <nid>] [query]
  notesearch trash <nid> --tenant <uid>
  notesearch restore <nid> --tenant <uid>
  notesearch restore-dump <file.json> --tenant <uid>
  notesearch stats
  notesearch serve
  notesearch version

Configuration is read from ~/.notesearch/config.yaml (override with
NOTESEARCH_CONFIG).`)
}
