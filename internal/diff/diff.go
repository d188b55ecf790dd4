// Package diff compares a captured screenshot pair by shelling out to an
// external pixel-diff tool. The tool is expected to print a JSON report on
// stdout; odiff and pixelmatch wrappers both fit the contract.
package diff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"time"
)

const defaultRunTimeout = 30 * time.Second

// Report is the parsed output of one comparison run.
type Report struct {
	DiffPixels  int     `json:"diffPixels"`
	TotalPixels int     `json:"totalPixels"`
	DiffRatio   float64 `json:"diffRatio"`
	OutputPath  string  `json:"outputPath,omitempty"`
}

// Identical reports whether no pixel differed.
func (r Report) Identical() bool { return r.DiffPixels == 0 }

// CommandError carries the failed invocation alongside its output.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %v\nOutput: %s", e.Command, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Config configures a Runner.
type Config struct {
	// Binary is the pixel-diff executable. Empty disables comparison.
	Binary     string
	Logger     *log.Logger
	RunTimeout time.Duration
}

// Runner invokes the configured diff tool on screenshot pairs.
type Runner struct {
	binary  string
	logger  *log.Logger
	timeout time.Duration
}

// NewRunner creates a Runner for cfg.Binary.
func NewRunner(cfg Config) *Runner {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{
		binary:  cfg.Binary,
		logger:  logger,
		timeout: cfg.RunTimeout,
	}
}

// Enabled reports whether a diff tool is configured.
func (r *Runner) Enabled() bool { return r.binary != "" }

// Compare diffs expected against actual, writing the visual diff image to
// diffPath when the tool supports it.
func (r *Runner) Compare(ctx context.Context, expectedPath, actualPath, diffPath string) (Report, error) {
	if !r.Enabled() {
		return Report{}, fmt.Errorf("no diff tool configured")
	}

	args := []string{"--json", expectedPath, actualPath}
	if diffPath != "" {
		args = append(args, diffPath)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Diff tools conventionally exit nonzero when the images differ, so a
	// run that produced a report is a success regardless of exit code.
	runErr := cmd.Run()
	report, parseErr := parseReport(stdout.Bytes())
	if parseErr != nil {
		err := runErr
		if err == nil {
			err = parseErr
		}
		return Report{}, &CommandError{
			Command: r.binary,
			Args:    args,
			Output:  strings.TrimSpace(stdout.String() + stderr.String()),
			Err:     err,
		}
	}
	if report.OutputPath == "" {
		report.OutputPath = diffPath
	}

	r.logger.Printf("diff: %d/%d pixels differ (%.4f)", report.DiffPixels, report.TotalPixels, report.DiffRatio)
	return report, nil
}

func parseReport(out []byte) (Report, error) {
	// Some tools print progress lines before the report; take the last
	// line that parses as a JSON object.
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var report Report
		if err := json.Unmarshal(line, &report); err == nil {
			if report.TotalPixels > 0 && report.DiffRatio == 0 && report.DiffPixels > 0 {
				report.DiffRatio = float64(report.DiffPixels) / float64(report.TotalPixels)
			}
			return report, nil
		}
	}
	return Report{}, fmt.Errorf("no JSON report in tool output")
}
