package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultSuppressWindow is how long the navigation-sync suppression
	// flag stays armed after a click replay. Click replay can itself
	// navigate the right page (clicking a link), and the independent
	// navigation mirror must not apply that navigation a second time.
	DefaultSuppressWindow = 500 * time.Millisecond

	// DefaultReplayTimeout bounds each round trip into the right page.
	DefaultReplayTimeout = 5 * time.Second
)

// Config configures a Manager. Left and Right are the two page handles of
// one pairing; Logger defaults to a discarding logger.
type Config struct {
	Left           CaptureView
	Right          ReplayView
	Logger         *log.Logger
	SuppressWindow time.Duration
	ReplayTimeout  time.Duration
}

// Manager owns the sync engine state for one (left, right) page pairing:
// the user-facing enable toggle, the focus-driven pause flag, the
// navigation-sync suppression timer, capture script injection into the left
// page, and replay of decoded messages against the right page.
//
// Replays run fire-and-forget: the dispatcher is a synchronous decision
// tree that starts asynchronous work and never waits for it, so a slow or
// failing right page cannot stall message processing. In-flight replays are
// not cancelled by Pause or Stop, and overlapping replays may complete out
// of order; for scroll position and hover state the last write wins, which
// matches what the operator sees.
type Manager struct {
	left           CaptureView
	right          ReplayView
	logger         *log.Logger
	suppressWindow time.Duration
	replayTimeout  time.Duration

	mu          sync.Mutex
	enabled     bool
	paused      bool
	started     bool
	suppressed  bool
	suppressGen int
	removeLoad  func()
	removeLine  func()

	inflight sync.WaitGroup
}

// NewManager creates a Manager for one page pairing. Sync starts enabled
// and unpaused; Start must be called before any capture reaches it.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.SuppressWindow <= 0 {
		cfg.SuppressWindow = DefaultSuppressWindow
	}
	if cfg.ReplayTimeout <= 0 {
		cfg.ReplayTimeout = DefaultReplayTimeout
	}
	return &Manager{
		left:           cfg.Left,
		right:          cfg.Right,
		logger:         logger,
		suppressWindow: cfg.SuppressWindow,
		replayTimeout:  cfg.ReplayTimeout,
		enabled:        true,
	}
}

// Start attaches the load and console hooks to the left page and performs
// one immediate injection for the already-loaded case. No-op when the left
// page is absent or already closed.
func (m *Manager) Start() {
	if m.left == nil || m.left.Closed() {
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	removeLoad := m.left.OnLoadFinished(m.Inject)
	removeLine := m.left.OnConsoleLine(m.HandleConsoleLine)

	m.mu.Lock()
	m.removeLoad = removeLoad
	m.removeLine = removeLine
	m.mu.Unlock()

	m.Inject()
}

// Stop detaches the hooks. No-op when never started or the left page is
// already gone.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	removeLoad := m.removeLoad
	removeLine := m.removeLine
	m.removeLoad = nil
	m.removeLine = nil
	m.mu.Unlock()

	if removeLoad != nil {
		removeLoad()
	}
	if removeLine != nil {
		removeLine()
	}
}

// Inject evaluates the capture script in the left page. The script's own
// guard makes repeated injection a no-op, so this runs after every
// navigation as well as once at Start. Failures (page mid-navigation, page
// gone) are swallowed; the next load will inject again.
func (m *Manager) Inject() {
	if m.left == nil || m.left.Closed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.replayTimeout)
	defer cancel()
	if _, err := m.left.Evaluate(ctx, CaptureScript); err != nil {
		m.logger.Printf("sync: capture script injection failed: %v", err)
	}
}

// IsEnabled reports the user-facing master switch.
func (m *Manager) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// SetEnabled flips the user-facing master switch. It does not require
// re-injection: the capture script keeps emitting and the dispatcher
// simply drops messages while disabled.
func (m *Manager) SetEnabled(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = v
}

// IsPaused reports the focus-driven pause flag.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Pause stops replay without touching the user's enable preference, for
// use while the operator's window is in the background. Idempotent.
// In-flight replays are not aborted.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume undoes Pause. Idempotent.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// SuppressNavSync arms the navigation-sync suppression flag for the
// configured window. Re-arming restarts the window; it does not stack.
func (m *Manager) SuppressNavSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed = true
	m.suppressGen++
	gen := m.suppressGen
	time.AfterFunc(m.suppressWindow, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.suppressGen == gen {
			m.suppressed = false
		}
	})
}

// IsNavSyncSuppressed reports whether a click replay recently armed the
// suppression window. The navigation mirror consults this to avoid
// double-applying a navigation the click already caused.
func (m *Manager) IsNavSyncSuppressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressed
}

// HandleConsoleLine is the dispatcher: it receives every console line from
// the left page, filters and decodes sync messages, and starts the
// type-specific replay. It always returns normally; every failure mode
// downstream costs at most the one interaction it belonged to.
func (m *Manager) HandleConsoleLine(line string) {
	m.mu.Lock()
	enabled, paused := m.enabled, m.paused
	m.mu.Unlock()
	if !enabled || paused {
		return
	}
	msg, ok := DecodeMessage(line)
	if !ok {
		return
	}
	if m.right == nil || m.right.Closed() {
		return
	}

	switch msg.Type {
	case TypeScroll:
		m.replayScroll(msg.Scroll)
	case TypeElementScroll:
		m.replayElementScroll(msg.ElementScroll)
	case TypeHover:
		m.replayHover(msg.Hover)
	case TypeClick:
		m.replayClick(msg.Click)
	case TypeInputValue:
		m.replayInputValue(msg.InputValue)
	case TypeKeyDown:
		m.replayKey(KeyDown, msg.Key)
	case TypeKeyUp:
		m.replayKey(KeyUp, msg.Key)
	default:
		// Unknown tag from a newer capture script: drop.
	}
}

// spawn runs one replay step off the dispatcher goroutine.
func (m *Manager) spawn(fn func(ctx context.Context)) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.replayTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (m *Manager) evalDiscard(ctx context.Context, script string) {
	if _, err := m.right.Evaluate(ctx, script); err != nil {
		m.logger.Printf("sync: replay evaluation failed: %v", err)
	}
}

func (m *Manager) replayScroll(d *ScrollData) {
	if !finite(d.ScrollX) || !finite(d.ScrollY) {
		return
	}
	x, y := *d.ScrollX, *d.ScrollY
	m.spawn(func(ctx context.Context) {
		m.evalDiscard(ctx, fmt.Sprintf("window.scrollTo(%v, %v);", x, y))
	})
}

func (m *Manager) replayElementScroll(d *ElementScrollData) {
	// Either invalid axis aborts the whole operation; a half-applied
	// scroll is worse than none.
	if !finite(d.ScrollLeft) || !finite(d.ScrollTop) {
		return
	}
	script := fmt.Sprintf(
		"(() => { const el = document.querySelector('%s'); if (!el) { return; } el.scrollLeft = %v; el.scrollTop = %v; })();",
		EscapeForScript(d.Selector), *d.ScrollLeft, *d.ScrollTop,
	)
	m.spawn(func(ctx context.Context) {
		m.evalDiscard(ctx, script)
	})
}

// resolveCenter looks the selector up in the right page and returns the
// center of its bounding rectangle, scaled by the page's current zoom
// factor. ok is false when the element is missing or the lookup failed.
func (m *Manager) resolveCenter(ctx context.Context, selector string) (x, y float64, ok bool) {
	script := fmt.Sprintf(
		"(() => { const el = document.querySelector('%s'); if (!el) { return null; } const r = el.getBoundingClientRect(); return { x: r.left + r.width / 2, y: r.top + r.height / 2 }; })();",
		EscapeForScript(selector),
	)
	raw, err := m.right.Evaluate(ctx, script)
	if err != nil {
		return 0, 0, false
	}
	var p struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.X == nil || p.Y == nil {
		return 0, 0, false
	}
	zoom, err := m.right.ZoomFactor(ctx)
	if err != nil || zoom <= 0 {
		zoom = 1
	}
	return *p.X * zoom, *p.Y * zoom, true
}

func (m *Manager) replayHover(d *HoverData) {
	selector := d.Selector
	m.spawn(func(ctx context.Context) {
		x, y, ok := m.resolveCenter(ctx, selector)
		if !ok {
			return
		}
		err := m.right.DispatchMouseEvent(ctx, MouseEvent{Type: MouseMoved, X: x, Y: y, Button: "none"})
		if err != nil {
			m.logger.Printf("sync: hover replay failed: %v", err)
		}
	})
}

func (m *Manager) replayClick(d *ClickData) {
	// Armed before the lookup, not after it succeeds: the navigation a
	// click triggers can beat a post-lookup flag to the mirror. A lookup
	// miss leaves a short false-positive suppression behind, which is
	// harmless.
	m.SuppressNavSync()

	selector, button := d.Selector, d.Button
	switch button {
	case "middle", "right":
	default:
		button = "left"
	}
	m.spawn(func(ctx context.Context) {
		x, y, ok := m.resolveCenter(ctx, selector)
		if !ok {
			return
		}
		down := MouseEvent{Type: MousePressed, X: x, Y: y, Button: button, ClickCount: 1}
		if err := m.right.DispatchMouseEvent(ctx, down); err != nil {
			m.logger.Printf("sync: click replay failed: %v", err)
			return
		}
		up := MouseEvent{Type: MouseReleased, X: x, Y: y, Button: button, ClickCount: 1}
		if err := m.right.DispatchMouseEvent(ctx, up); err != nil {
			m.logger.Printf("sync: click replay failed: %v", err)
		}
	})
}

func (m *Manager) replayInputValue(d *InputValueData) {
	selector := EscapeForScript(d.Selector)
	var script string
	if d.TextContent != nil {
		script = fmt.Sprintf(
			"(() => { const el = document.querySelector('%s'); if (!el) { return; } el.textContent = '%s'; el.dispatchEvent(new Event('input', { bubbles: true })); })();",
			selector, EscapeForScript(*d.TextContent),
		)
	} else {
		value := ""
		if d.Value != nil {
			value = *d.Value
		}
		escaped := EscapeForScript(value)
		// Frameworks that track controlled inputs intercept the element's
		// own value setter; going through the prototype's native setter and
		// then dispatching input makes their listeners see the change as a
		// real keystroke would. Plain assignment is the fallback when the
		// native descriptor is unavailable.
		script = fmt.Sprintf(
			"(() => { const el = document.querySelector('%s'); if (!el) { return; } "+
				"const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype; "+
				"const desc = Object.getOwnPropertyDescriptor(proto, 'value'); "+
				"if (desc && desc.set) { desc.set.call(el, '%s'); } else { el.value = '%s'; } "+
				"el.dispatchEvent(new Event('input', { bubbles: true })); })();",
			selector, escaped, escaped,
		)
	}
	m.spawn(func(ctx context.Context) {
		m.evalDiscard(ctx, script)
	})
}

func (m *Manager) replayKey(typ KeyEventType, d *KeyData) {
	var modifiers []string
	// Fixed order, not press order.
	if d.Shift {
		modifiers = append(modifiers, "shift")
	}
	if d.Ctrl {
		modifiers = append(modifiers, "control")
	}
	if d.Alt {
		modifiers = append(modifiers, "alt")
	}
	if d.Meta {
		modifiers = append(modifiers, "meta")
	}

	ev := KeyEvent{Type: typ, Key: string(rune(d.KeyCode)), Modifiers: modifiers}
	printable := d.Key
	sendChar := typ == KeyDown && utf8.RuneCountInString(printable) == 1

	m.spawn(func(ctx context.Context) {
		if err := m.right.DispatchKeyEvent(ctx, ev); err != nil {
			m.logger.Printf("sync: key replay failed: %v", err)
			return
		}
		if !sendChar {
			return
		}
		char := KeyEvent{Type: KeyChar, Key: printable, Modifiers: modifiers}
		if err := m.right.DispatchKeyEvent(ctx, char); err != nil {
			m.logger.Printf("sync: key replay failed: %v", err)
		}
	})
}
