package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sieve/internal/compiler"
	"sieve/internal/querylang"
)

// batchResult is one output line of "sieve batch". Per-query failures are
// reported in Error and do not stop the batch.
type batchResult struct {
	ID     string `json:"id"`
	Line   int    `json:"line"`
	Query  string `json:"query"`
	Filter string `json:"filter,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newBatchCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compile one condition per line concurrently",
		Long: "Reads conditions from --file, one per line, and prints one JSON record per " +
			"condition in input order. Blank lines and lines starting with # are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			opts, err := compilerOptions(cmd)
			if err != nil {
				return err
			}
			workers, _ := cmd.Flags().GetInt("workers")

			results, err := compileBatch(cmd, data, opts, workers, logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "-", `conditions, one per line ("-" for stdin)`)
	cmd.Flags().Int("workers", runtime.GOMAXPROCS(0), "maximum concurrent compilations")
	addCompilerFlags(cmd)
	return cmd
}

// compileBatch compiles every condition line of data with at most workers
// compilations in flight. Results keep input order.
func compileBatch(cmd *cobra.Command, data []byte, opts compiler.Options, workers int, logger *slog.Logger) ([]batchResult, error) {
	var results []batchResult
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		q := strings.TrimSpace(sc.Text())
		if q == "" || strings.HasPrefix(q, "#") {
			continue
		}
		results = append(results, batchResult{ID: uuid.Must(uuid.NewV7()).String(), Line: n, Query: q})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(workers, 1))
	for i := range results {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := &results[i]
			c := compiler.New(opts, logger.With("request_id", r.ID))
			e, err := querylang.Parse(r.Query)
			if err != nil {
				r.Error = err.Error()
				return nil
			}
			f, err := c.Compile(e)
			if err != nil {
				r.Error = err.Error()
				return nil
			}
			r.Filter = f.String()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("batch compiled", "queries", len(results), "workers", workers)
	return results, nil
}
