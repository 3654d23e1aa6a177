package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sieve/internal/compiler"
	"sieve/internal/condition"
	"sieve/internal/document"
	"sieve/internal/filter"
	"sieve/internal/logging"
	"sieve/internal/querylang"
)

// execute runs cmd with args and stdin and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustParseCondition(t *testing.T, query string) condition.Expr {
	t.Helper()
	e, err := querylang.Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	return e
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const fixtureDocs = `{"tags": ["a", "b"], "name": "alice"}
{"tags": ["b"], "name": "bob"}
{"tags": "a", "name": "carol"}
`

func TestCompileCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			"default",
			[]string{"d.values IN ['@', 'A'] AND d.values == 'C'"},
			`And(Or(Term(d.values, "@"), Term(d.values, "A")), Term(d.values, "C"))`,
		},
		{
			"joined arguments",
			[]string{"a", "==", "'1'"},
			`Term(a, "1")`,
		},
		{
			"level flag",
			[]string{"--condition-optimization", "none", "d.values < 'B' AND d.values == 'C'"},
			`And(Range(d.values, (-inf, "B")), Term(d.values, "C"))`,
		},
		{
			"options json",
			[]string{"--options", `{"conditionOptimization":"none"}`, "d.values < 'B' AND d.values == 'C'"},
			`And(Range(d.values, (-inf, "B")), Term(d.values, "C"))`,
		},
		{
			"single valued",
			[]string{"--single-valued", "f > 'b' AND f < 'k'"},
			`Range(f, ("b", "k"))`,
		},
		{
			"fuzzy merge disabled",
			[]string{"--filter-optimization", "0", "LEVENSHTEIN_MATCH(n, 'bar', 1) AND STARTS_WITH(n, 'ba')"},
			`And(Prefix(n, "ba"), FuzzyPrefix(n, prefix="", term="bar", distance=1, terms=64, transpositions=true))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, newCompileCmd(logging.Discard()), "", tt.args...)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if got != tt.want+"\n" {
				t.Errorf("got  %q\nwant %q", got, tt.want+"\n")
			}
		})
	}
}

func TestCompileCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"no condition", nil, ErrNoCondition},
		{"unknown level", []string{"--condition-optimization", "fast", "a == '1'"}, compiler.ErrUnknownOptionValue},
		{"unknown fuzzy mode", []string{"--filter-optimization", "5", "a == '1'"}, compiler.ErrUnknownOptionValue},
		{"unknown level in options", []string{"--options", `{"conditionOptimization":"x"}`, "a == '1'"}, compiler.ErrUnknownOptionValue},
		{"parse error", []string{"a =="}, nil},
		{"negative branch limit", []string{"--max-dnf-branches", "-1", "a == '1'"}, nil},
		{"unknown format", []string{"-o", "yaml", "a == '1'"}, nil},
		{"file and arguments", []string{"-f", "-", "a == '1'"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, newCompileCmd(logging.Discard()), "", tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestCompileCommandEncodings(t *testing.T) {
	query := "NOT (a == '1' AND STARTS_WITH(b, ['x', 'y'], 2))"
	want, err := compiler.Compile(mustParseCondition(t, query), compiler.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	for _, compress := range []bool{false, true} {
		args := []string{"-o", "msgpack", query}
		if compress {
			args = append(args, "--zstd")
		}
		out, err := execute(t, newCompileCmd(logging.Discard()), "", args...)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		got, err := filter.Decode([]byte(out))
		if err != nil {
			t.Fatalf("Decode (zstd=%v): %v", compress, err)
		}
		if !filter.Equal(got, want) {
			t.Errorf("msgpack (zstd=%v): got %s, want %s", compress, got, want)
		}
	}

	out, err := execute(t, newCompileCmd(logging.Discard()), "", "-o", "json", query)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := filter.UnmarshalJSON([]byte(out))
	if err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !filter.Equal(got, want) {
		t.Errorf("json: got %s, want %s", got, want)
	}
}

func TestCompileFromStdin(t *testing.T) {
	got, err := execute(t, newCompileCmd(logging.Discard()), "a == '1'\n", "-f", "-")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != "Term(a, \"1\")\n" {
		t.Errorf("got %q", got)
	}
}

func TestCompilerOptionsPrecedence(t *testing.T) {
	cmd := &cobra.Command{}
	addCompilerFlags(cmd)
	err := cmd.ParseFlags([]string{
		"--options", `{"conditionOptimization":"nodnf","filterOptimization":-1}`,
		"--condition-optimization", "none",
		"--max-dnf-branches", "16",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	got, err := compilerOptions(cmd)
	if err != nil {
		t.Fatalf("compilerOptions: %v", err)
	}
	want := compiler.Options{Level: compiler.LevelNone, FuzzyMerge: compiler.FuzzyMergeExplicit, MaxDNFBranches: 16}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, newExplainCmd(logging.Discard()), "", "--condition-optimization", "none", "NOT NOT f IN ['b', 'a']")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	for _, want := range []string{"input:", "negation:", "in-list:", "(skipped)", "f IN ['a', 'b']", `filter:`, `Or(Term(f, "a"), Term(f, "b"))`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, newExplainCmd(logging.Discard()), "", "-o", "json", "a == '1'")
	if err != nil {
		t.Fatalf("explain json: %v", err)
	}
	var got explainOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if len(got.Steps) != 7 {
		t.Errorf("got %d steps, want 7", len(got.Steps))
	}
	if got.Input != "a == '1'" {
		t.Errorf("input = %q", got.Input)
	}
}

func TestEvalCommand(t *testing.T) {
	docs := writeFile(t, t.TempDir(), "docs.jsonl", fixtureDocs)

	tests := []struct {
		query string
		want  string
	}{
		{"tags == 'a'", "0\n2\n"},
		{"NOT tags == 'b'", "2\n"},
		{"tags == 'a' AND tags == 'b'", "0\n"},
		{"STARTS_WITH(name, ['al', 'bo'], 1)", "0\n1\n"},
		{"LEVENSHTEIN_MATCH(name, 'carl', 1)", "2\n"},
		{"name > 'b' AND name < 'c'", "1\n"},
		{"missing == 'x'", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := execute(t, newEvalCmd(logging.Discard()), "", "--docs", docs, tt.query)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvalCommandJSON(t *testing.T) {
	docs := writeFile(t, t.TempDir(), "docs.jsonl", fixtureDocs)
	out, err := execute(t, newEvalCmd(logging.Discard()), "", "--docs", docs, "-o", "json", "tags == 'b'")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	var got evalOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if !got.Checked || len(got.Matches) != 2 || got.Matches[0] != 0 || got.Matches[1] != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestEvalFieldBinding(t *testing.T) {
	docs := writeFile(t, t.TempDir(), "docs.json", `[{"items": [{"sku": "x"}]}, {"items": [{"sku": "y"}]}]`)
	got, err := execute(t, newEvalCmd(logging.Discard()), "", "--docs", docs, "--field", "sku=$.items[*].sku", "sku == 'y'")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != "1\n" {
		t.Errorf("got %q", got)
	}
}

func TestEvalNeedsDocuments(t *testing.T) {
	if _, err := execute(t, newEvalCmd(logging.Discard()), "", "a == '1'"); err == nil {
		t.Error("expected error without --docs or --index")
	}
}

func TestIndexSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	docs := writeFile(t, dir, "docs.jsonl", fixtureDocs)
	snapshot := filepath.Join(dir, "docs.idx")

	out, err := execute(t, newIndexCmd(logging.Discard()), "", "--docs", docs, "--out", snapshot, "--zstd")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	for _, want := range []string{"documents:", "3", "FIELD", "tags"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	got, err := execute(t, newEvalCmd(logging.Discard()), "", "--index", snapshot, "tags == 'b'")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != "0\n1\n" {
		t.Errorf("got %q", got)
	}

	out, err = execute(t, newIndexCmd(logging.Discard()), "", "--index", snapshot, "-o", "json")
	if err != nil {
		t.Fatalf("index stat: %v", err)
	}
	var stats struct {
		Documents int            `json:"documents"`
		Terms     int            `json:"terms"`
		Fields    map[string]int `json:"fields"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Documents != 3 || stats.Fields["tags"] != 2 || stats.Fields["name"] != 3 || stats.Terms != 5 {
		t.Errorf("got %+v", stats)
	}
}

func TestBatchCommand(t *testing.T) {
	input := "a == '1'\n\n# comment\nbogus ((\nb IN ['y', 'x']\n"
	out, err := execute(t, newBatchCmd(logging.Discard()), input, "--workers", "2")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	var results []batchResult
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var r batchResult
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		results = append(results, r)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3:\n%s", len(results), out)
	}

	wantLines := []int{1, 4, 5}
	wantFilters := []string{`Term(a, "1")`, "", `Or(Term(b, "x"), Term(b, "y"))`}
	ids := make(map[string]bool)
	for i, r := range results {
		if r.Line != wantLines[i] {
			t.Errorf("result %d: line %d, want %d", i, r.Line, wantLines[i])
		}
		if r.Filter != wantFilters[i] {
			t.Errorf("result %d: filter %q, want %q", i, r.Filter, wantFilters[i])
		}
		if _, err := uuid.Parse(r.ID); err != nil {
			t.Errorf("result %d: bad id %q", i, r.ID)
		}
		ids[r.ID] = true
	}
	if results[1].Error == "" {
		t.Error("expected a parse error for line 4")
	}
	if len(ids) != 3 {
		t.Error("request ids are not unique")
	}
}

func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	cond := writeFile(t, dir, "query.txt", "tags == 'a'")
	docs := writeFile(t, dir, "docs.jsonl", fixtureDocs)

	loader, err := document.NewLoader()
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	var out bytes.Buffer
	wl := newWatchLoop(compiler.New(compiler.Options{}, nil), loader, cond, docs, &out, logging.Discard())
	ctx := context.Background()

	wl.reload(ctx)
	wl.recompile(ctx)
	if got, want := out.String(), "filter: Term(tags, \"a\")\nmatches: [0 2]\n"; got != want {
		t.Fatalf("initial: got %q, want %q", got, want)
	}

	out.Reset()
	writeFile(t, dir, "query.txt", "tags == 'b'")
	wl.handle(ctx, fsnotify.Event{Name: cond, Op: fsnotify.Chmod})
	if out.Len() != 0 {
		t.Errorf("chmod event produced output: %q", out.String())
	}
	wl.handle(ctx, fsnotify.Event{Name: cond, Op: fsnotify.Write})
	if got, want := out.String(), "filter: Term(tags, \"b\")\nmatches: [0 1]\n"; got != want {
		t.Errorf("after write: got %q, want %q", got, want)
	}

	out.Reset()
	writeFile(t, dir, "docs.jsonl", `{"tags": "b"}`)
	wl.handle(ctx, fsnotify.Event{Name: docs, Op: fsnotify.Create})
	if got, want := out.String(), "matches: [0]\n"; got != want {
		t.Errorf("after docs change: got %q, want %q", got, want)
	}

	out.Reset()
	writeFile(t, dir, "query.txt", "tags ==")
	wl.handle(ctx, fsnotify.Event{Name: cond, Op: fsnotify.Write})
	if !strings.HasPrefix(out.String(), "error: ") {
		t.Errorf("after bad write: got %q", out.String())
	}
	if wl.node.String() != `Term(tags, "b")` {
		t.Errorf("bad write replaced the filter: %s", wl.node)
	}
}

func TestWatchLoopStops(t *testing.T) {
	wl := newWatchLoop(compiler.New(compiler.Options{}, nil), nil, "q.txt", "", io.Discard, logging.Discard())

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	close(events)
	if err := wl.run(context.Background(), events, errs); err != nil {
		t.Errorf("closed events: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := wl.run(ctx, make(chan fsnotify.Event), errs); err != nil {
		t.Errorf("cancelled: %v", err)
	}
}
