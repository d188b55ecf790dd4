package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/negi1232/Twin-sub000/internal/diff"
	"github.com/negi1232/Twin-sub000/internal/shot"
	"github.com/negi1232/Twin-sub000/internal/syncer"
	"github.com/negi1232/Twin-sub000/internal/view"
)

type controlDeps struct {
	logger   *log.Logger
	manager  *syncer.Manager
	left     *view.View
	right    *view.View
	capturer *shot.Capturer
	differ   *diff.Runner
}

// runControls drives the interactive session from stdin. The terminal is
// put in raw mode so single keys act immediately; when stdin is not a
// terminal (piped, CI) it just waits for the context.
func runControls(ctx context.Context, deps controlDeps) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		deps.logger.Print("stdin is not a terminal; running until interrupted")
		<-ctx.Done()
		return nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	printHelp()

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n == 1 {
				keys <- buf[0]
			}
		}
	}()

	var lastPair shot.Pair
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			switch key {
			case 's':
				deps.manager.SetEnabled(!deps.manager.IsEnabled())
				status("sync %s", onOff(deps.manager.IsEnabled()))
			case 'p':
				if deps.manager.IsPaused() {
					deps.manager.Resume()
					status("resumed")
				} else {
					deps.manager.Pause()
					status("paused")
				}
			case 'c':
				pair, err := deps.capturer.Capture(ctx, deps.left, deps.right)
				if err != nil {
					status("capture failed: %v", err)
					continue
				}
				lastPair = pair
				status("captured %s", filepath.Base(pair.ActualPath))
			case 'd':
				runDiff(ctx, deps, lastPair)
			case 'h', '?':
				printHelp()
			case 'q', 3: // q or ctrl-c
				return nil
			}
		}
	}
}

func runDiff(ctx context.Context, deps controlDeps, pair shot.Pair) {
	if !deps.differ.Enabled() {
		status("no diff tool configured (-diff-bin)")
		return
	}
	if pair.ExpectedPath == "" {
		status("no screenshot pair captured yet (press c first)")
		return
	}
	diffPath := pair.ActualPath[:len(pair.ActualPath)-len(".png")] + "_diff.png"
	diffCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	report, err := deps.differ.Compare(diffCtx, pair.ExpectedPath, pair.ActualPath, diffPath)
	if err != nil {
		status("diff failed: %v", err)
		return
	}
	if report.Identical() {
		status("views identical (%d pixels)", report.TotalPixels)
		return
	}
	status("%d/%d pixels differ (%.2f%%), see %s",
		report.DiffPixels, report.TotalPixels, report.DiffRatio*100, diffPath)
}

// Raw mode disables output post-processing, so every line needs an
// explicit \r\n.
func status(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format+"\r\n", args...)
}

func printHelp() {
	status("controls: [s] toggle sync  [p] pause/resume  [c] capture pair  [d] diff last pair  [q] quit")
}
