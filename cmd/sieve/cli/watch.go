package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"sieve/internal/compiler"
	"sieve/internal/condition"
	"sieve/internal/document"
	"sieve/internal/filter"
	"sieve/internal/index"
	"sieve/internal/querylang"
)

func newWatchCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile a condition file whenever it changes",
		Long: "Compiles --file and prints the filter, then recompiles on every write until " +
			"interrupted. With --docs the filter is also executed, and the index is rebuilt " +
			"whenever the documents change.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			docsPath, _ := cmd.Flags().GetString("docs")
			opts, err := compilerOptions(cmd)
			if err != nil {
				return err
			}
			loader, err := newLoader(cmd, logger)
			if err != nil {
				return err
			}

			wl := newWatchLoop(compiler.New(opts, logger), loader, path, docsPath, cmd.OutOrStdout(), logger)
			ctx := cmd.Context()
			if wl.docsPath != "" {
				wl.reload(ctx)
			}
			wl.recompile(ctx)

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()

			// Watch parent directories so that editors replacing the file
			// by rename are still seen.
			for _, dir := range wl.dirs() {
				if err := watcher.Add(dir); err != nil {
					return fmt.Errorf("watch %s: %w", dir, err)
				}
			}
			return wl.run(ctx, watcher.Events, watcher.Errors)
		},
	}
	cmd.Flags().StringP("file", "f", "", "condition file to watch")
	cmd.Flags().String("docs", "", "JSON or JSON Lines documents to execute the filter against")
	cmd.Flags().StringArray("field", nil, "bind a field to a JSONPath, e.g. sku=$.items[*].sku (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	addCompilerFlags(cmd)
	return cmd
}

// watchLoop recompiles the condition file and re-executes the filter as
// files change. Errors are reported and the loop keeps running, since a
// file is often seen half-written.
type watchLoop struct {
	compiler *compiler.Compiler
	loader   *document.Loader
	builder  *index.Builder
	path     string
	docsPath string
	out      io.Writer
	logger   *slog.Logger

	node filter.Node
}

func newWatchLoop(c *compiler.Compiler, loader *document.Loader, path, docsPath string, out io.Writer, logger *slog.Logger) *watchLoop {
	wl := &watchLoop{
		compiler: c,
		loader:   loader,
		builder:  index.NewBuilder(index.WithLogger(logger)),
		path:     filepath.Clean(path),
		out:      out,
		logger:   logger.With("component", "watch"),
	}
	if docsPath != "" {
		wl.docsPath = filepath.Clean(docsPath)
	}
	return wl
}

func (wl *watchLoop) dirs() []string {
	dirs := []string{filepath.Dir(wl.path)}
	if wl.docsPath != "" && filepath.Dir(wl.docsPath) != dirs[0] {
		dirs = append(dirs, filepath.Dir(wl.docsPath))
	}
	return dirs
}

func (wl *watchLoop) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			wl.handle(ctx, event)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			wl.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// handle reacts to a write or create of one of the watched files.
func (wl *watchLoop) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	switch filepath.Clean(event.Name) {
	case wl.path:
		wl.recompile(ctx)
	case wl.docsPath:
		wl.reload(ctx)
		wl.evaluate(ctx)
	}
}

func (wl *watchLoop) recompile(ctx context.Context) {
	data, err := os.ReadFile(wl.path)
	if err != nil {
		wl.report(err)
		return
	}
	e, err := querylang.Parse(string(data))
	if err != nil {
		wl.report(err)
		return
	}
	n, err := wl.compiler.Compile(e)
	if err != nil {
		wl.report(err)
		return
	}
	wl.node = n
	_, _ = fmt.Fprintf(wl.out, "filter: %s\n", n)
	wl.evaluate(ctx)
}

func (wl *watchLoop) reload(ctx context.Context) {
	_, err := wl.builder.Build(ctx, wl.docsPath, func(context.Context) ([]condition.Document, error) {
		f, err := os.Open(wl.docsPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return wl.loader.Load(f)
	})
	if err != nil {
		wl.report(fmt.Errorf("%s: %w", wl.docsPath, err))
	}
}

// evaluate executes the current filter against the latest good index.
func (wl *watchLoop) evaluate(ctx context.Context) {
	if wl.docsPath == "" || wl.node == nil {
		return
	}
	idx := wl.builder.Latest(wl.docsPath)
	if idx == nil {
		return
	}
	matches, err := idx.Search(ctx, wl.node)
	if err != nil {
		wl.report(err)
		return
	}
	ids := make([]string, len(matches))
	for i, id := range matches {
		ids[i] = strconv.FormatUint(uint64(id), 10)
	}
	_, _ = fmt.Fprintf(wl.out, "matches: [%s]\n", strings.Join(ids, " "))
}

func (wl *watchLoop) report(err error) {
	_, _ = fmt.Fprintf(wl.out, "error: %v\n", err)
	wl.logger.Debug("watch update failed", "error", err)
}
