package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// printer handles text, table or JSON output.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(cmd *cobra.Command) *printer {
	f, _ := cmd.Flags().GetString("output")
	return &printer{format: f, w: cmd.OutOrStdout()}
}

func addOutputFlag(cmd *cobra.Command, formats string) {
	cmd.Flags().StringP("output", "o", "text", "output format: "+formats)
}

// json marshals v as indented JSON.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// line writes one line of text.
func (p *printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
	_ = tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, col)
	}
	_, _ = fmt.Fprintln(w)
}

// kv prints a key-value detail view.
func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

func unknownFormat(format string) error {
	return fmt.Errorf("unknown output format %q", format)
}
