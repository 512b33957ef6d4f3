package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/embed"
	"github.com/Aman-CERP/amanrag/internal/index"
	"github.com/Aman-CERP/amanrag/internal/parse"
	"github.com/Aman-CERP/amanrag/internal/store"
	"github.com/Aman-CERP/amanrag/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	tenant   string
	strategy string
	debounce time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and keep the index in sync",
		Long: `Watch a directory tree and re-index files as they change.

Runs a full indexing pass first, then reacts to filesystem events:
created and modified files are re-indexed, deleted files are removed
from the index. Events are debounced so editor save bursts coalesce
into one indexing run. Stops on Ctrl-C.

Examples:
  amanrag watch docs/
  amanrag watch --tenant team-a --debounce 500ms docs/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant partition to index into")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Segmentation strategy override")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "Event coalescing window (default 200ms)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string, opts watchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	// Held for the whole watch session: the watcher is the only writer.
	lock, err := store.AcquireIndexLock(cfg.Paths.IndexDir, indexLockTimeout)
	if err != nil {
		return fmt.Errorf("another amanrag process is indexing: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("failed to release index lock", "error", err)
		}
	}()

	stores, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer stores.close()

	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings, slog.Default())
	if err != nil {
		return err
	}
	if embedder != nil {
		defer func() { _ = embedder.Close() }()
	}

	parsers := parse.NewRegistry()
	ix := index.New(indexerConfig(cfg, indexOptions{tenant: opts.tenant, strategy: opts.strategy}),
		stores.meta, stores.text, stores.vectors, embedder, parsers, slog.Default())

	// Catch up before watching so events only ever describe deltas.
	stats, err := ix.IndexDir(ctx, root)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initial pass: %d indexed, %d skipped, %d failed. Watching %s\n",
		stats.Indexed, stats.Skipped, stats.Failed, root)

	w, err := watcher.New(watcher.Options{
		DebounceWindow: opts.debounce,
		Extensions:     parsers.Extensions(),
	})
	if err != nil {
		return err
	}

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- w.Start(ctx, root)
	}()
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			// Persist vectors on the way out; text and metadata stores
			// write through on every batch.
			if err := stores.saveVectors(); err != nil {
				return fmt.Errorf("failed to persist vector index: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stopped.")
			return nil

		case err := <-watchDone:
			if err != nil && ctx.Err() == nil {
				return err
			}

		case err := <-w.Errors():
			slog.Warn("watch error", "error", err)

		case batch, ok := <-w.Events():
			if !ok {
				continue
			}
			applyBatch(ctx, cmd, ix, stores, root, batch)
		}
	}
}

// applyBatch replays one debounced event batch against the indexer.
// Per-file failures are logged, never fatal to the watch session.
func applyBatch(ctx context.Context, cmd *cobra.Command, ix *index.Indexer, stores *backends, root string, batch []watcher.FileEvent) {
	changed := 0
	for _, ev := range batch {
		switch ev.Operation {
		case watcher.OpDelete:
			if err := ix.RemoveDocument(ctx, ev.Path); err != nil {
				slog.Warn("failed to remove document", "path", ev.Path, "error", err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed  %s\n", ev.Path)
			changed++

		case watcher.OpCreate, watcher.OpModify:
			stats, err := ix.IndexFile(ctx, root, filepath.Join(root, ev.Path))
			if err != nil {
				slog.Warn("failed to index file", "path", ev.Path, "error", err)
				continue
			}
			if stats.Indexed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "indexed  %s (%d chunks)\n", ev.Path, stats.Chunks)
				changed++
			}
		}
	}

	if changed > 0 {
		if err := stores.saveVectors(); err != nil {
			slog.Warn("failed to persist vector index", "error", err)
		}
	}
}
