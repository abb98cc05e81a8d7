package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lanshare/storagecore/config"
	"github.com/lanshare/storagecore/internal/cache"
	"github.com/lanshare/storagecore/internal/fsentry"
	"github.com/lanshare/storagecore/internal/hash"
	"github.com/lanshare/storagecore/internal/hasher"
	"github.com/lanshare/storagecore/internal/hashpersist"
	"github.com/lanshare/storagecore/pkg/env"
	"github.com/lanshare/storagecore/pkg/logging"
	"github.com/urfave/cli/v2"
)

func main() {
	env.LoadEnv()
	config.LoadConfig(".")
	logging.InitLogger(config.Config.LogLevel, config.Config.LogFormat)

	app := &cli.App{
		Name:  "storagecli",
		Usage: "content-addressed file and chunk storage core",
		Commands: []*cli.Command{
			scanCommand(),
			searchCommand(),
			statsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Log.Fatal(err)
	}
}

var pathAndNameFlags = []cli.Flag{
	&cli.StringFlag{Name: "path", Required: true, Usage: "directory to treat as a shared directory"},
	&cli.StringFlag{Name: "name", Value: "share", Usage: "display name for the shared directory"},
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "scan a directory, hash its files, and persist the chunk-hash cache",
		Flags: pathAndNameFlags,
		Action: func(c *cli.Context) error {
			sd, store, cch, err := openShare(c.String("path"), c.String("name"))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := rescan(context.Background(), sd, cch, store); err != nil {
				return err
			}

			files, chunks := walkStats(&sd.Directory)
			logging.WithComponent("storagecli").Infof("✅ scanned %s: %d bytes across %d files (%d chunks)", sd.RootPath(), sd.Size(), files, chunks)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "scan a directory, then list entries whose name matches every given token",
		ArgsUsage: "TOKEN [TOKEN...]",
		Flags:     pathAndNameFlags,
		Action: func(c *cli.Context) error {
			sd, store, cch, err := openShare(c.String("path"), c.String("name"))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := rescan(context.Background(), sd, cch, store); err != nil {
				return err
			}

			tokens := c.Args().Slice()
			for _, e := range cch.Search(tokens) {
				fmt.Printf("%s\t%d bytes\n", e.FullPath(), e.Size())
			}
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "scan a directory and report aggregate file/chunk counts",
		Flags: pathAndNameFlags,
		Action: func(c *cli.Context) error {
			sd, store, cch, err := openShare(c.String("path"), c.String("name"))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := rescan(context.Background(), sd, cch, store); err != nil {
				return err
			}

			files, chunks := walkStats(&sd.Directory)
			fmt.Printf("shared directory: %s (%s)\n", sd.Name(), sd.RootPath())
			fmt.Printf("  total size:  %d bytes\n", sd.Size())
			fmt.Printf("  files:       %d\n", files)
			fmt.Printf("  chunks:      %d\n", chunks)
			return nil
		},
	}
}

// openShare builds the in-memory Cache/SharedDirectory pair for path,
// derived id stable across restarts: the SHA-1 of the directory's
// absolute path, so the same --path always maps to the same hash-cache
// key without a separate id file to manage.
func openShare(path, name string) (*fsentry.SharedDirectory, *hashpersist.Store, *cache.Cache, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	cfg := fsentry.Config{
		ChunkSize:        config.Config.ChunkSize,
		UnfinishedSuffix: config.Config.UnfinishedSuffixTerm,
		MinimumFreeSpace: config.Config.MinimumFreeSpace,
	}
	cch := cache.New(cfg, logging.Log)

	id, err := hash.Sum(strings.NewReader(absPath))
	if err != nil {
		return nil, nil, nil, err
	}

	sd := fsentry.NewSharedDirectory(cch, id, absPath, name)
	cch.AddSharedDirectory(sd)

	store, err := hashpersist.Open(config.Config.HashCachePath, logging.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	return sd, store, cch, nil
}

// rescan walks the filesystem to (re)build sd's in-memory tree, applies
// any previously persisted chunk-hash state on top of it — so a hash
// that matches what's already on disk doesn't need to be trusted twice
// — and persists the merged result back.
func rescan(ctx context.Context, sd *fsentry.SharedDirectory, registry fsentry.Registry, store *hashpersist.Store) error {
	if err := hasher.Scan(ctx, sd, registry, config.Config.ScanWorkers); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	restored, total, err := store.Restore(sd)
	if err != nil {
		return fmt.Errorf("restore hash cache: %w", err)
	}
	logging.WithComponent("storagecli").Infof("restored %d/%d previously hashed files from cache", restored, total)

	if err := store.Save(sd); err != nil {
		return fmt.Errorf("save hash cache: %w", err)
	}
	return nil
}

func walkStats(dir *fsentry.Directory) (files, chunks int) {
	for _, f := range dir.Files() {
		files++
		chunks += len(f.Chunks())
	}
	for _, sub := range dir.Subdirs() {
		subFiles, subChunks := walkStats(sub)
		files += subFiles
		chunks += subChunks
	}
	return files, chunks
}
