package cli

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"sieve/internal/index"
)

func newIndexCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build, save or inspect an inverted index",
		Long: "Builds an index from --docs (or loads an --index snapshot), optionally writes " +
			"a snapshot with --out, and prints per-field term counts.",
		Example: `  sieve index --docs docs.jsonl --out docs.idx --zstd
  sieve index --index docs.idx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := openIndex(cmd.Context(), cmd, logger)
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			out, _ := cmd.Flags().GetString("out")
			if out != "" {
				compress, _ := cmd.Flags().GetBool("zstd")
				data, err := idx.Snapshot(compress)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				logger.Info("snapshot written", "path", out, "bytes", len(data), "compressed", compress)
			}

			switch p.format {
			case "text":
				p.kv([][2]string{
					{"documents", strconv.FormatUint(uint64(idx.DocCount()), 10)},
					{"fields", strconv.Itoa(len(idx.Fields()))},
					{"terms", strconv.Itoa(idx.TermCount())},
				})
				var rows [][]string
				for _, name := range idx.Fields() {
					rows = append(rows, []string{name, strconv.Itoa(len(idx.Field(name).Postings))})
				}
				if len(rows) > 0 {
					p.line("")
					p.table([]string{"FIELD", "TERMS"}, rows)
				}
				return nil
			case "json":
				fields := make(map[string]int)
				for _, name := range idx.Fields() {
					fields[name] = len(idx.Field(name).Postings)
				}
				return p.json(map[string]any{
					"documents": idx.DocCount(),
					"terms":     idx.TermCount(),
					"fields":    fields,
				})
			default:
				return unknownFormat(p.format)
			}
		},
	}
	addDocumentFlags(cmd)
	cmd.Flags().String("out", "", "write a snapshot to this file")
	cmd.Flags().Bool("zstd", false, "zstd-compress the snapshot")
	addOutputFlag(cmd, "text or json")
	return cmd
}
