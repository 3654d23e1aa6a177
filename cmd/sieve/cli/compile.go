package cli

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"sieve/internal/compiler"
	"sieve/internal/filter"
)

func newCompileCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [expression]",
		Short: "Compile a condition into a filter tree",
		Long: "Parses a condition, optimizes it and prints the resulting filter tree. " +
			"The msgpack output is the binary form an index engine decodes.",
		Example: `  sieve compile "d.values IN ['@', 'A'] AND d.values == 'C'"
  sieve compile -o msgpack --zstd -f query.txt > filter.bin`,
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
			return writeFilter(cmd, n)
		},
	}
	addConditionFlags(cmd)
	addCompilerFlags(cmd)
	addOutputFlag(cmd, "text, json or msgpack")
	cmd.Flags().Bool("zstd", false, "zstd-compress msgpack output")
	return cmd
}

func writeFilter(cmd *cobra.Command, n filter.Node) error {
	p := newPrinter(cmd)
	switch p.format {
	case "text":
		p.line(n.String())
		return nil
	case "json":
		data, err := filter.MarshalJSON(n)
		if err != nil {
			return err
		}
		return p.json(json.RawMessage(data))
	case "msgpack":
		compress, _ := cmd.Flags().GetBool("zstd")
		data, err := filter.Encode(n, compress)
		if err != nil {
			return err
		}
		_, err = p.w.Write(data)
		return err
	default:
		return unknownFormat(p.format)
	}
}
