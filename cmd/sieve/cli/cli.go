// Package cli implements the sieve subcommands: compiling conditions,
// tracing the optimizer, and executing filters against JSON documents.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sieve/internal/compiler"
	"sieve/internal/condition"
	"sieve/internal/document"
	"sieve/internal/index"
	"sieve/internal/logging"
	"sieve/internal/querylang"
)

var ErrNoCondition = errors.New("no condition given")

// Commands returns the subcommands, all logging through logger.
func Commands(logger *slog.Logger) []*cobra.Command {
	logger = logging.Default(logger)
	return []*cobra.Command{
		newCompileCmd(logger),
		newExplainCmd(logger),
		newEvalCmd(logger),
		newBatchCmd(logger),
		newWatchCmd(logger),
		newIndexCmd(logger),
	}
}

func addCompilerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("options", "", `query options as JSON, e.g. {"conditionOptimization":"nodnf"}`)
	f.String("condition-optimization", "auto", "optimization level: auto, nodnf, noneg or none")
	f.Int("filter-optimization", 0, "-1 merges fuzzy matches explicitly, 0 disables merging (default: automatic)")
	f.Bool("single-valued", false, "assume every field holds at most one value per document")
	f.Int("max-dnf-branches", 0, "DNF branch limit per subtree (0 = unlimited)")
}

// compilerOptions resolves --options first, then the individual flags that
// were set explicitly.
func compilerOptions(cmd *cobra.Command) (compiler.Options, error) {
	f := cmd.Flags()
	raw, _ := f.GetString("options")
	opts, err := compiler.ParseQueryOptions([]byte(raw))
	if err != nil {
		return opts, err
	}

	if f.Changed("condition-optimization") {
		v, _ := f.GetString("condition-optimization")
		level, err := compiler.ParseLevel(v)
		if err != nil {
			return opts, err
		}
		opts.Level = level
	}
	if f.Changed("filter-optimization") {
		v, _ := f.GetInt("filter-optimization")
		mode, err := compiler.ParseFuzzyMerge(v, true)
		if err != nil {
			return opts, err
		}
		opts.FuzzyMerge = mode
	}

	opts.SingleValued, _ = f.GetBool("single-valued")
	opts.MaxDNFBranches, _ = f.GetInt("max-dnf-branches")
	if opts.MaxDNFBranches < 0 {
		return opts, fmt.Errorf("--max-dnf-branches must not be negative, got %d", opts.MaxDNFBranches)
	}
	return opts, nil
}

func addConditionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", `read the condition from a file ("-" for stdin)`)
}

// readCondition parses the condition from --file or the joined arguments.
func readCondition(cmd *cobra.Command, args []string) (condition.Expr, error) {
	src, err := conditionSource(cmd, args)
	if err != nil {
		return nil, err
	}
	return querylang.Parse(src)
}

func conditionSource(cmd *cobra.Command, args []string) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	if path != "" {
		if len(args) > 0 {
			return "", errors.New("give the condition either as arguments or with --file, not both")
		}
		data, err := readInput(cmd, path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	src := strings.TrimSpace(strings.Join(args, " "))
	if src == "" {
		return "", ErrNoCondition
	}
	return src, nil
}

// readInput reads path, or the command's stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func addDocumentFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("docs", "", "JSON or JSON Lines documents to index")
	f.String("index", "", "index snapshot written by 'sieve index --out'")
	f.StringArray("field", nil, "bind a field to a JSONPath, e.g. sku=$.items[*].sku (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("docs", "index")
	cmd.MarkFlagsOneRequired("docs", "index")
}

func newLoader(cmd *cobra.Command, logger *slog.Logger) (*document.Loader, error) {
	bindings, _ := cmd.Flags().GetStringArray("field")
	opts := []document.Option{document.WithLogger(logger)}
	for _, b := range bindings {
		opts = append(opts, document.WithBinding(b))
	}
	return document.NewLoader(opts...)
}

func loadDocuments(cmd *cobra.Command, path string, logger *slog.Logger) ([]condition.Document, error) {
	loader, err := newLoader(cmd, logger)
	if err != nil {
		return nil, err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return loader.LoadBytes(data)
}

// openIndex builds an index from --docs or loads the --index snapshot.
// The documents are returned when they were read.
func openIndex(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (*index.Index, []condition.Document, error) {
	snapshot, _ := cmd.Flags().GetString("index")
	if snapshot != "" {
		data, err := os.ReadFile(snapshot)
		if err != nil {
			return nil, nil, err
		}
		idx, err := index.Load(data, index.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", snapshot, err)
		}
		return idx, nil, nil
	}

	path, _ := cmd.Flags().GetString("docs")
	docs, err := loadDocuments(cmd, path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	idx, err := index.Build(ctx, docs, index.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return idx, docs, nil
}
