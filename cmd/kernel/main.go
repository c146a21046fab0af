// Command kernel is a small inspection shell over the storage kernel: it
// opens a database file, attaches a buffer pool of a given size, and lets
// the caller put/get int64 keys against a named B+-tree index.
//
// Usage:
//
//	kernel -db path/to/file.db -index orders put 42 100:0
//	kernel -db path/to/file.db -index orders get 42
//	kernel -db path/to/file.db -index orders scan
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/srdczk/CMU15-445/internal/pkg/logging"
	"github.com/srdczk/CMU15-445/internal/storage/btree"
	"github.com/srdczk/CMU15-445/internal/storage/buffer"
	"github.com/srdczk/CMU15-445/internal/storage/header"
	"github.com/srdczk/CMU15-445/internal/storage/pageid"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kernel:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("kernel", flag.ContinueOnError)
	dbPath := fs.String("db", "kernel.db", "path to the database file")
	indexName := fs.String("index", "default", "name of the index to operate on")
	poolSize := fs.Int("pool-size", 64, "number of frames in the buffer pool")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: kernel [flags] put <key> <pageID:slot> | get <key> | scan")
	}

	logger, err := logging.NewSugaredLogger(*logLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	disk, err := buffer.NewFileDiskManager(*dbPath)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer disk.Close()

	pool := buffer.New(*poolSize, disk, buffer.WithLogger(logger))
	dir := header.New(pool)

	ctx := context.Background()
	idx, err := btree.New[int64](ctx, *indexName, pool, dir, nil, btree.WithLogger[int64](logger))
	if err != nil {
		return fmt.Errorf("open index %q: %w", *indexName, err)
	}

	switch rest[0] {
	case "put":
		if len(rest) != 3 {
			return fmt.Errorf("usage: put <key> <pageID:slot>")
		}
		return runPut(ctx, pool, idx, rest[1], rest[2])
	case "get":
		if len(rest) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		return runGet(ctx, idx, rest[1])
	case "scan":
		return runScan(ctx, idx)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func runPut(ctx context.Context, pool *buffer.Pool, idx *btree.Index[int64], rawKey, rawRID string) error {
	key, err := strconv.ParseInt(rawKey, 10, 64)
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}

	rid, err := parseRID(rawRID)
	if err != nil {
		return fmt.Errorf("parse rid: %w", err)
	}

	ok, err := idx.Insert(ctx, key, rid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("key %d already exists", key)
	}

	// Write the header page and every tree page to the file before exiting,
	// so a later invocation sees this insert.
	levels, err := idx.BFS(ctx)
	if err != nil {
		return err
	}
	pages := []pageid.ID{pageid.Header}
	for _, level := range levels {
		pages = append(pages, level...)
	}
	for _, pid := range pages {
		if _, err := pool.FlushPage(ctx, pid); err != nil {
			return err
		}
	}
	fmt.Printf("inserted %d -> %+v\n", key, rid)
	return nil
}

func runGet(ctx context.Context, idx *btree.Index[int64], rawKey string) error {
	key, err := strconv.ParseInt(rawKey, 10, 64)
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}

	rid, found, err := idx.GetValue(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("key %d not found", key)
	}
	fmt.Printf("%d -> %+v\n", key, rid)
	return nil
}

func runScan(ctx context.Context, idx *btree.Index[int64]) error {
	it, err := idx.Begin(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	for !it.IsEnd() {
		fmt.Printf("%d -> %+v\n", it.Key(), it.Value())
		if err := it.Next(ctx); err != nil {
			return err
		}
	}
	return nil
}

func parseRID(s string) (btree.RID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return btree.RID{}, fmt.Errorf("want pageID:slot, got %q", s)
	}

	page, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return btree.RID{}, err
	}
	slot, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return btree.RID{}, err
	}
	return btree.RID{PageID: pageid.ID(page), Slot: uint32(slot)}, nil
}
