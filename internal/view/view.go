// Package view attaches to Chrome page targets over the DevTools protocol
// (via chromedp) and adapts them to the sync engine's capture and replay
// interfaces: script evaluation, synthetic input, zoom queries, and the
// load/console/navigation event hooks.
package view

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/negi1232/Twin-sub000/internal/syncer"
)

// Config configures the browser connection. When neither CDPURL nor CDPPort
// is set, a local Chrome is launched.
type Config struct {
	CDPURL   string // full DevTools websocket URL
	CDPPort  int    // local debugging port, e.g. 9222
	Headless bool   // only used when launching
	Logger   *log.Logger
}

// Browser is one connected (or launched) Chrome instance. Both pages of a
// pairing are opened as tabs of the same instance.
type Browser struct {
	logger      *log.Logger
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
}

// Connect establishes the browser connection and verifies it with one
// round trip.
func Connect(ctx context.Context, cfg Config) (*Browser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	switch {
	case cfg.CDPURL != "":
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.CDPURL, chromedp.NoModifyURL)
	case cfg.CDPPort > 0:
		wsURL := fmt.Sprintf("ws://localhost:%d", cfg.CDPPort)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, wsURL, chromedp.NoModifyURL)
	default:
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !cfg.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	rootCtx, rootCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	return &Browser{
		logger:      logger,
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
	}, nil
}

// OpenView opens a new tab and navigates it to url.
func (b *Browser) OpenView(ctx context.Context, url string) (*View, error) {
	vctx, vcancel := chromedp.NewContext(b.rootCtx)
	v := newView(vctx, vcancel, b.logger)
	chromedp.ListenTarget(vctx, v.route)
	if err := chromedp.Run(vctx, chromedp.Navigate(url)); err != nil {
		vcancel()
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return v, nil
}

// Close tears down the browser connection and every view opened from it.
func (b *Browser) Close() {
	b.rootCancel()
	b.allocCancel()
}

// View is one page target. It implements both syncer.CaptureView and
// syncer.ReplayView; the sync engine decides which side of the pairing a
// view plays.
type View struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	mu      sync.Mutex
	nextID  int
	loadFns map[int]func()
	lineFns map[int]func(string)
	navFns  map[int]func(string)
}

var (
	_ syncer.CaptureView = (*View)(nil)
	_ syncer.ReplayView  = (*View)(nil)
)

func newView(ctx context.Context, cancel context.CancelFunc, logger *log.Logger) *View {
	return &View{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		loadFns: make(map[int]func()),
		lineFns: make(map[int]func(string)),
		navFns:  make(map[int]func(string)),
	}
}

// runCtx derives a chromedp-compatible context from the view's own,
// honoring the caller's deadline.
func (v *View) runCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(v.ctx, deadline)
	}
	return context.WithCancel(v.ctx)
}

// Evaluate runs a script in the page and returns its JSON value. A script
// returning null or undefined yields the JSON literal null, not an error;
// the engine's element lookups depend on that.
func (v *View) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	runCtx, cancel := v.runCtx(ctx)
	defer cancel()

	var raw json.RawMessage
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(script).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if obj == nil || len(obj.Value) == 0 {
			raw = json.RawMessage("null")
			return nil
		}
		raw = json.RawMessage(obj.Value)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// DispatchMouseEvent issues one synthetic pointer event.
func (v *View) DispatchMouseEvent(ctx context.Context, ev syncer.MouseEvent) error {
	typ, ok := mouseTypes[ev.Type]
	if !ok {
		return fmt.Errorf("%w: mouse %q", ErrUnknownInputEvent, ev.Type)
	}
	params := mouseParams(typ, ev)

	runCtx, cancel := v.runCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return params.Do(ctx)
	}))
}

// DispatchKeyEvent issues one synthetic keyboard event.
func (v *View) DispatchKeyEvent(ctx context.Context, ev syncer.KeyEvent) error {
	typ, ok := keyTypes[ev.Type]
	if !ok {
		return fmt.Errorf("%w: key %q", ErrUnknownInputEvent, ev.Type)
	}
	params := keyParams(typ, ev)

	runCtx, cancel := v.runCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return params.Do(ctx)
	}))
}

// ZoomFactor returns the page's current zoom multiplier.
func (v *View) ZoomFactor(ctx context.Context) (float64, error) {
	runCtx, cancel := v.runCtx(ctx)
	defer cancel()

	zoom := 1.0
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, visual, _, _, _, _, err := page.GetLayoutMetrics().Do(ctx)
		if err != nil {
			return err
		}
		zoom = zoomFromViewport(visual)
		return nil
	}))
	if err != nil {
		return 0, err
	}
	return zoom, nil
}

func zoomFromViewport(visual *page.VisualViewport) float64 {
	if visual == nil {
		return 1
	}
	if visual.Zoom > 0 {
		return visual.Zoom
	}
	if visual.Scale > 0 {
		return visual.Scale
	}
	return 1
}

// Navigate loads url in the page.
func (v *View) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := v.runCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Navigate(url))
}

// URL returns the page's current location.
func (v *View) URL(ctx context.Context) (string, error) {
	runCtx, cancel := v.runCtx(ctx)
	defer cancel()
	var u string
	if err := chromedp.Run(runCtx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// Screenshot captures the visible viewport as PNG.
func (v *View) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := v.runCtx(ctx)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close detaches from the page target.
func (v *View) Close() {
	v.cancel()
}

// Closed reports whether the page target is gone.
func (v *View) Closed() bool {
	return v.ctx.Err() != nil
}

// OnLoadFinished registers fn to run after every finished page load.
func (v *View) OnLoadFinished(fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.loadFns[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.loadFns, id)
	}
}

// OnConsoleLine registers fn for every console line whose first argument is
// a string. Handlers run on the event goroutine in arrival order and must
// not block.
func (v *View) OnConsoleLine(fn func(string)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.lineFns[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.lineFns, id)
	}
}

// OnNavigated registers fn for every top-frame navigation.
func (v *View) OnNavigated(fn func(url string)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.navFns[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.navFns, id)
	}
}

// route fans CDP target events out to the registered hooks. Console lines
// are delivered synchronously to preserve arrival order; load and
// navigation handlers may issue CDP calls of their own, so they run off
// the event goroutine.
func (v *View) route(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventLoadEventFired:
		for _, fn := range v.loadHandlers() {
			go fn()
		}
	case *runtime.EventConsoleAPICalled:
		line, ok := consoleLine(e)
		if !ok {
			return
		}
		for _, fn := range v.lineHandlers() {
			fn(line)
		}
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		url := e.Frame.URL
		for _, fn := range v.navHandlers() {
			go fn(url)
		}
	}
}

func (v *View) loadHandlers() []func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fns := make([]func(), 0, len(v.loadFns))
	for _, fn := range v.loadFns {
		fns = append(fns, fn)
	}
	return fns
}

func (v *View) lineHandlers() []func(string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fns := make([]func(string), 0, len(v.lineFns))
	for _, fn := range v.lineFns {
		fns = append(fns, fn)
	}
	return fns
}

func (v *View) navHandlers() []func(string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fns := make([]func(string), 0, len(v.navFns))
	for _, fn := range v.navFns {
		fns = append(fns, fn)
	}
	return fns
}

// consoleLine extracts the first string argument of a console call.
func consoleLine(e *runtime.EventConsoleAPICalled) (string, bool) {
	if e == nil || len(e.Args) == 0 {
		return "", false
	}
	arg := e.Args[0]
	if arg == nil || arg.Type != runtime.TypeString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(arg.Value, &s); err != nil {
		return "", false
	}
	return s, true
}
