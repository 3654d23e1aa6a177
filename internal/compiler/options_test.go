package compiler

import (
	"errors"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"", LevelFull},
		{"auto", LevelFull},
		{"nodnf", LevelNoDnf},
		{"noneg", LevelNoNegation},
		{"none", LevelNone},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	_, err := ParseLevel("fast")
	if !errors.Is(err, ErrUnknownOptionValue) {
		t.Fatalf("expected ErrUnknownOptionValue, got %v", err)
	}
	if want := "unknown value 'fast' for option 'conditionOptimization'"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
	var optErr *OptionError
	if !errors.As(err, &optErr) || optErr.Option != OptionConditionOptimization {
		t.Errorf("expected *OptionError for %s, got %#v", OptionConditionOptimization, err)
	}
}

func TestParseFuzzyMerge(t *testing.T) {
	tests := []struct {
		v       int
		set     bool
		want    FuzzyMerge
		wantErr bool
	}{
		{0, false, FuzzyMergeAuto, false},
		{5, false, FuzzyMergeAuto, false},
		{-1, true, FuzzyMergeExplicit, false},
		{0, true, FuzzyMergeDisabled, false},
		{1, true, FuzzyMergeAuto, true},
		{-2, true, FuzzyMergeAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseFuzzyMerge(tt.v, tt.set)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFuzzyMerge(%d, %v) error = %v, wantErr %v", tt.v, tt.set, err, tt.wantErr)
		}
		if err != nil {
			if !errors.Is(err, ErrUnknownOptionValue) {
				t.Errorf("expected ErrUnknownOptionValue, got %v", err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFuzzyMerge(%d, %v) = %s, want %s", tt.v, tt.set, got, tt.want)
		}
	}
}

func TestParseQueryOptions(t *testing.T) {
	tests := []struct {
		in   string
		want Options
	}{
		{``, Options{}},
		{`{}`, Options{}},
		{`{"conditionOptimization": "nodnf", "filterOptimization": 0}`, Options{Level: LevelNoDnf, FuzzyMerge: FuzzyMergeDisabled}},
		{`{"filterOptimization": -1}`, Options{FuzzyMerge: FuzzyMergeExplicit}},
		{`{"conditionOptimization": "none", "unrelated": true}`, Options{Level: LevelNone}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQueryOptions([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseQueryOptions: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseQueryOptionsErrors(t *testing.T) {
	tests := []struct {
		in      string
		unknown bool
		message string
	}{
		{`{"conditionOptimization": "fast"}`, true, "unknown value 'fast' for option 'conditionOptimization'"},
		{`{"filterOptimization": 3}`, true, "unknown value '3' for option 'filterOptimization'"},
		{`{"conditionOptimization": 1}`, false, ""},
		{`not json`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseQueryOptions([]byte(tt.in))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrUnknownOptionValue) != tt.unknown {
				t.Errorf("errors.Is(ErrUnknownOptionValue) = %v for %v", !tt.unknown, err)
			}
			if tt.message != "" && err.Error() != tt.message {
				t.Errorf("error = %q, want %q", err, tt.message)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range allLevels {
		parsed, err := ParseLevel(level.String())
		if err != nil || parsed != level {
			t.Errorf("ParseLevel(%s.String()) = %v, %v", level, parsed, err)
		}
	}
	if got := Level(9).String(); got != "level(9)" {
		t.Errorf("unknown level string = %s", got)
	}
}
