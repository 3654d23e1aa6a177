package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"sieve/internal/compiler"
	"sieve/internal/condition"
	"sieve/internal/filter"
)

// ErrMismatch reports that the compiled filter and the reference evaluation
// of the condition selected different documents.
var ErrMismatch = errors.New("filter result differs from reference evaluation")

type evalOutput struct {
	Filter  json.RawMessage `json:"filter"`
	Matches []uint32        `json:"matches"`
	Checked bool            `json:"checked"`
}

func newEvalCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [expression]",
		Short: "Execute a condition against documents",
		Long: "Compiles a condition, executes the filter against an index and prints the " +
			"numbers of matching documents. With --docs the result is cross-checked against " +
			"a direct evaluation of the condition on every document.",
		Example: `  sieve eval --docs docs.jsonl "tags == 'a' AND NOT tags == 'b'"
  sieve eval --index snapshot.idx -f query.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readCondition(cmd, args)
			if err != nil {
				return err
			}
			opts, err := compilerOptions(cmd)
			if err != nil {
				return err
			}
			n, err := compiler.New(opts, logger).Compile(e)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			idx, docs, err := openIndex(ctx, cmd, logger)
			if err != nil {
				return err
			}
			matches, err := idx.Search(ctx, n)
			if err != nil {
				return err
			}

			checked := docs != nil
			if checked {
				if want := reference(e, docs); !slices.Equal(matches, want) {
					return fmt.Errorf("%w: filter %s matched %v, condition matched %v", ErrMismatch, n, matches, want)
				}
			}

			p := newPrinter(cmd)
			switch p.format {
			case "text":
				for _, id := range matches {
					p.line(strconv.FormatUint(uint64(id), 10))
				}
				return nil
			case "json":
				out := evalOutput{Matches: matches, Checked: checked}
				if out.Matches == nil {
					out.Matches = []uint32{}
				}
				out.Filter, err = filter.MarshalJSON(n)
				if err != nil {
					return err
				}
				return p.json(out)
			default:
				return unknownFormat(p.format)
			}
		},
	}
	addConditionFlags(cmd)
	addCompilerFlags(cmd)
	addDocumentFlags(cmd)
	addOutputFlag(cmd, "text or json")
	return cmd
}

// reference evaluates e directly on every document.
func reference(e condition.Expr, docs []condition.Document) []uint32 {
	var ids []uint32
	for i, doc := range docs {
		if condition.Eval(e, doc) {
			ids = append(ids, uint32(i))
		}
	}
	return ids
}
