package diff

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseReport(t *testing.T) {
	testCases := []struct {
		name     string
		output   string
		expected Report
		ok       bool
	}{
		{
			"plain report",
			`{"diffPixels": 120, "totalPixels": 480000, "diffRatio": 0.00025}`,
			Report{DiffPixels: 120, TotalPixels: 480000, DiffRatio: 0.00025},
			true,
		},
		{
			"progress lines before report",
			"comparing...\ndone\n{\"diffPixels\": 0, \"totalPixels\": 100}",
			Report{TotalPixels: 100},
			true,
		},
		{
			"ratio derived when tool omits it",
			`{"diffPixels": 50, "totalPixels": 200}`,
			Report{DiffPixels: 50, TotalPixels: 200, DiffRatio: 0.25},
			true,
		},
		{
			"output path preserved",
			`{"diffPixels": 1, "totalPixels": 4, "diffRatio": 0.25, "outputPath": "/tmp/d.png"}`,
			Report{DiffPixels: 1, TotalPixels: 4, DiffRatio: 0.25, OutputPath: "/tmp/d.png"},
			true,
		},
		{"empty output", "", Report{}, false},
		{"no json", "images differ", Report{}, false},
	}

	for _, tc := range testCases {
		got, err := parseReport([]byte(tc.output))
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s: expected parse error", tc.name)
			}
			continue
		}
		if got != tc.expected {
			t.Errorf("%s: expected %+v, got %+v", tc.name, tc.expected, got)
		}
	}
}

func TestReportIdentical(t *testing.T) {
	if !(Report{TotalPixels: 100}).Identical() {
		t.Error("expected zero-diff report to be identical")
	}
	if (Report{DiffPixels: 1, TotalPixels: 100}).Identical() {
		t.Error("expected nonzero-diff report to not be identical")
	}
}

func TestRunnerDisabledWithoutBinary(t *testing.T) {
	r := NewRunner(Config{})
	if r.Enabled() {
		t.Error("expected runner disabled with no binary")
	}
	if _, err := r.Compare(context.Background(), "a.png", "b.png", ""); err == nil {
		t.Error("expected error comparing without a configured tool")
	}
}

func TestCompareMissingBinaryReturnsCommandError(t *testing.T) {
	r := NewRunner(Config{Binary: "/nonexistent/pixel-diff"})

	_, err := r.Compare(context.Background(), "a.png", "b.png", "d.png")
	if err == nil {
		t.Fatal("expected error from missing binary")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %T: %v", err, err)
	}
	if cmdErr.Command != "/nonexistent/pixel-diff" {
		t.Errorf("unexpected command in error: %s", cmdErr.Command)
	}
}

func TestCommandErrorFormatting(t *testing.T) {
	inner := errors.New("exit status 2")
	err := &CommandError{
		Command: "odiff",
		Args:    []string{"--json", "a.png", "b.png"},
		Output:  "bad image header",
		Err:     inner,
	}

	msg := err.Error()
	if !strings.Contains(msg, "odiff failed") || !strings.Contains(msg, "bad image header") {
		t.Errorf("unexpected error message: %s", msg)
	}
	if !errors.Is(err, inner) {
		t.Error("expected CommandError to unwrap to the underlying error")
	}
}
