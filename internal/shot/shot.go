// Package shot captures a paired screenshot of the two views so the result
// of a synchronized session can be compared offline.
package shot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

const defaultCaptureTimeout = 15 * time.Second

// Source is a view that can be photographed.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Config configures a Capturer.
type Config struct {
	Dir            string
	Logger         *log.Logger
	CaptureTimeout time.Duration
	Now            func() time.Time // test hook
}

// Pair is one captured screenshot pair on disk.
type Pair struct {
	ExpectedPath string
	ActualPath   string
}

// Capturer writes expected/actual screenshot pairs into a directory. The
// left page is the expected image, the right page the actual one.
type Capturer struct {
	dir     string
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewCapturer creates a Capturer writing into cfg.Dir.
func NewCapturer(cfg Config) *Capturer {
	if cfg.Dir == "" {
		cfg.Dir = "shots"
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = defaultCaptureTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Capturer{
		dir:     cfg.Dir,
		logger:  logger,
		timeout: cfg.CaptureTimeout,
		now:     cfg.Now,
	}
}

// Capture photographs both views and writes the pair to disk. The two
// captures share one timestamp so the filenames line up.
func (c *Capturer) Capture(ctx context.Context, left, right Source) (Pair, error) {
	if left == nil || right == nil {
		return Pair{}, fmt.Errorf("capture needs both views")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Pair{}, fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	stamp := c.now().Format("20060102-150405.000")
	pair := Pair{
		ExpectedPath: filepath.Join(c.dir, "expected_"+stamp+".png"),
		ActualPath:   filepath.Join(c.dir, "actual_"+stamp+".png"),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.shoot(ctx, left, pair.ExpectedPath); err != nil {
		return Pair{}, fmt.Errorf("left capture: %w", err)
	}
	if err := c.shoot(ctx, right, pair.ActualPath); err != nil {
		// Half a pair is useless for comparison.
		_ = os.Remove(pair.ExpectedPath)
		return Pair{}, fmt.Errorf("right capture: %w", err)
	}

	c.logger.Printf("shot: wrote %s and %s", pair.ExpectedPath, pair.ActualPath)
	return pair, nil
}

func (c *Capturer) shoot(ctx context.Context, src Source, path string) error {
	png, err := src.Screenshot(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
