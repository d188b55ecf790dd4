// Command twin pairs two browser tabs: interactions performed in the left
// tab are captured and replayed into the right tab, navigations are
// mirrored, and the session can be screenshotted and pixel-diffed on
// demand.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/negi1232/Twin-sub000/internal/diff"
	"github.com/negi1232/Twin-sub000/internal/navsync"
	"github.com/negi1232/Twin-sub000/internal/shot"
	"github.com/negi1232/Twin-sub000/internal/syncer"
	"github.com/negi1232/Twin-sub000/internal/tap"
	"github.com/negi1232/Twin-sub000/internal/view"
)

func main() {
	var (
		cdpURL         string
		cdpPort        int
		leftURL        string
		rightURL       string
		tapAddr        string
		diffBin        string
		shotsDir       string
		suppressWindow time.Duration
		noSync         bool
		verbose        bool
	)

	flag.StringVar(&cdpURL, "cdp-url", "", "DevTools websocket URL of a running browser")
	flag.IntVar(&cdpPort, "cdp-port", 0, "local DevTools debugging port of a running browser")
	flag.StringVar(&leftURL, "left", "", "URL for the captured (left) page")
	flag.StringVar(&rightURL, "right", "", "URL for the replayed (right) page")
	flag.StringVar(&tapAddr, "tap", "", "serve the message inspector on this address (empty disables)")
	flag.StringVar(&diffBin, "diff-bin", "", "pixel-diff executable for comparing screenshot pairs")
	flag.StringVar(&shotsDir, "shots-dir", "shots", "directory for screenshot pairs")
	flag.DurationVar(&suppressWindow, "suppress-window", syncer.DefaultSuppressWindow, "navigation mirror hold-off after a replayed click")
	flag.BoolVar(&noSync, "no-sync", false, "start with synchronization off")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	debugLogger := logger
	if !verbose {
		debugLogger = log.New(io.Discard, "", 0)
	}

	if leftURL == "" || rightURL == "" {
		logger.Fatal("both -left and -right URLs are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browser, err := view.Connect(ctx, view.Config{
		CDPURL:  cdpURL,
		CDPPort: cdpPort,
		Logger:  debugLogger,
	})
	if err != nil {
		logger.Fatalf("failed to connect to browser: %v", err)
	}
	defer browser.Close()

	left, err := browser.OpenView(ctx, leftURL)
	if err != nil {
		logger.Fatalf("failed to open left page: %v", err)
	}
	right, err := browser.OpenView(ctx, rightURL)
	if err != nil {
		logger.Fatalf("failed to open right page: %v", err)
	}

	manager := syncer.NewManager(syncer.Config{
		Left:           left,
		Right:          right,
		Logger:         debugLogger,
		SuppressWindow: suppressWindow,
	})
	if noSync {
		manager.SetEnabled(false)
	}
	manager.Start()
	defer manager.Stop()

	mirror := navsync.NewMirror(navsync.Config{
		Source: left,
		Target: right,
		State:  manager,
		Logger: debugLogger,
	})
	mirror.Start()
	defer mirror.Stop()

	if tapAddr != "" {
		tapServer := tap.NewServer(tap.Config{ListenAddr: tapAddr, Logger: logger})
		removeTap := left.OnConsoleLine(func(line string) {
			if strings.HasPrefix(line, syncer.MessagePrefix) {
				tapServer.Publish(strings.TrimPrefix(line, syncer.MessagePrefix))
			}
		})
		defer removeTap()
		go func() {
			if err := tapServer.Run(ctx); err != nil {
				logger.Printf("tap server exited: %v", err)
			}
		}()
	}

	capturer := shot.NewCapturer(shot.Config{Dir: shotsDir, Logger: logger})
	differ := diff.NewRunner(diff.Config{Binary: diffBin, Logger: logger})

	logger.Printf("pairing %s -> %s (sync %s)", leftURL, rightURL, onOff(manager.IsEnabled()))
	if err := runControls(ctx, controlDeps{
		logger:   logger,
		manager:  manager,
		left:     left,
		right:    right,
		capturer: capturer,
		differ:   differ,
	}); err != nil {
		logger.Fatalf("control loop failed: %v", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
