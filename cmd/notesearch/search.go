package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/notevault/notesearch/internal/index"
	"github.com/notevault/notesearch/internal/mcp"
	"github.com/notevault/notesearch/internal/search"
)

func runSearch(args []string) error {
	var (
		query   []string
		tenant  string
		sortKey string
		reverse bool
		trash   bool
		page    = 1
		limit   = 0
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant":
			i++
			tenant = argAt(args, i)
		case arg == "--sort":
			i++
			sortKey = argAt(args, i)
		case arg == "--reverse":
			reverse = true
		case arg == "--trash":
			trash = true
		case arg == "--page":
			i++
			page = argInt(args, i, 1)
		case arg == "--limit":
			i++
			limit = argInt(args, i, 0)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			query = append(query, arg)
		}
	}
	if tenant == "" {
		return fmt.Errorf("--tenant is required")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	hits, total, err := a.engine.UserNodes(ctx, tenant, strings.Join(query, " "), search.Options{
		Sort:    index.Sort(sortKey),
		Reverse: reverse,
		Page:    page,
		Limit:   limit,
		InTrash: trash,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d result(s), page %d\n\n", total, page)
	printHits(hits)
	return nil
}

func runRecommend(args []string) error {
	var (
		content   []string
		tenant    string
		maxReturn int
		exclude   []string
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant":
			i++
			tenant = argAt(args, i)
		case arg == "--max":
			i++
			maxReturn = argInt(args, i, 0)
		case arg == "--exclude":
			i++
			for _, nid := range strings.Split(argAt(args, i), ",") {
				if nid = strings.TrimSpace(nid); nid != "" {
					exclude = append(exclude, nid)
				}
			}
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			content = append(content, arg)
		}
	}
	if tenant == "" {
		return fmt.Errorf("--tenant is required")
	}
	if len(content) == 0 {
		return fmt.Errorf("usage: notesearch recommend <content> --tenant <uid>")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	hits, err := a.engine.Recommend(ctx, tenant, strings.Join(content, " "), maxReturn, exclude)
	if err != nil {
		return err
	}
	printHits(hits)
	return nil
}

func runAt(args []string) error {
	var (
		query  []string
		tenant string
		nid    string
		toNid  string
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant":
			i++
			tenant = argAt(args, i)
		case arg == "--nid":
			i++
			nid = argAt(args, i)
		case arg == "--select":
			i++
			toNid = argAt(args, i)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			query = append(query, arg)
		}
	}
	if tenant == "" || nid == "" {
		return fmt.Errorf("--tenant and --nid are required")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if toNid != "" {
		if err := a.engine.MentionAdded(ctx, tenant, nid, toNid); err != nil {
			return err
		}
		fmt.Printf("Recorded mention of %s from %s\n", toNid, nid)
		return nil
	}

	hits, total, err := a.engine.At(ctx, tenant, nid, strings.Join(query, " "), 1, 0)
	if err != nil {
		return err
	}
	fmt.Printf("%d candidate(s)\n\n", total)
	printHits(hits)
	return nil
}

func runTrash(args []string, toTrash bool) error {
	var tenant, nid string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant":
			i++
			tenant = argAt(args, i)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			nid = arg
		}
	}
	if tenant == "" || nid == "" {
		return fmt.Errorf("usage: notesearch trash|restore <nid> --tenant <uid>")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if toTrash {
		if err := a.idx.ToTrash(ctx, tenant, nid); err != nil {
			return err
		}
		if err := a.nodes.SetTrash(ctx, tenant, nid, true); err != nil {
			return err
		}
		fmt.Printf("Moved %s to trash\n", nid)
		return nil
	}
	if err := a.idx.RestoreFromTrash(ctx, tenant, nid); err != nil {
		return err
	}
	if err := a.nodes.SetTrash(ctx, tenant, nid, false); err != nil {
		return err
	}
	fmt.Printf("Restored %s from trash\n", nid)
	return nil
}

func runStats(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	n, err := a.idx.CountAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed documents: %d\n", n)
	return nil
}

func runServe(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	srv := mcp.NewServer(mcp.ServerConfig{
		Engine:  a.engine,
		Index:   a.idx,
		Version: version,
	})
	return server.ServeStdio(srv)
}

func printHits(hits []search.NodeHit) {
	for i, h := range hits {
		fmt.Printf("%d. [%s] %s (score %.3f)\n", i+1, h.NID, h.Title, h.Score)
		if len(h.BodyHighlights) > 0 {
			fmt.Printf("   %s\n", h.BodyHighlights[0])
		} else if h.Snippet != "" {
			fmt.Printf("   %s\n", h.Snippet)
		}
	}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func argInt(args []string, i, def int) int {
	if i < len(args) {
		if n, err := strconv.Atoi(args[i]); err == nil {
			return n
		}
	}
	return def
}
