package cli

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"sieve/internal/compiler"
	"sieve/internal/filter"
)

type explainStep struct {
	Stage   string `json:"stage"`
	Skipped bool   `json:"skipped,omitempty"`
	Tree    string `json:"tree"`
}

type explainOutput struct {
	Input  string          `json:"input"`
	Steps  []explainStep   `json:"steps"`
	Filter json.RawMessage `json:"filter"`
}

func newExplainCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [expression]",
		Short: "Show the condition tree after every optimizer stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readCondition(cmd, args)
			if err != nil {
				return err
			}
			opts, err := compilerOptions(cmd)
			if err != nil {
				return err
			}
			ex, err := compiler.New(opts, logger).Explain(e)
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			switch p.format {
			case "text":
				pairs := [][2]string{{"input", ex.Input.String()}}
				for _, s := range ex.Steps {
					tree := s.Tree.String()
					if s.Skipped {
						tree = "(skipped)"
					}
					pairs = append(pairs, [2]string{s.Stage, tree})
				}
				pairs = append(pairs, [2]string{"filter", ex.Filter.String()})
				p.kv(pairs)
				return nil
			case "json":
				out := explainOutput{Input: ex.Input.String()}
				for _, s := range ex.Steps {
					out.Steps = append(out.Steps, explainStep{Stage: s.Stage, Skipped: s.Skipped, Tree: s.Tree.String()})
				}
				out.Filter, err = filter.MarshalJSON(ex.Filter)
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
	addOutputFlag(cmd, "text or json")
	return cmd
}
