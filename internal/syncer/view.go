package syncer

import (
	"context"
	"encoding/json"
)

// MouseEventType names a synthetic pointer event.
type MouseEventType string

const (
	MouseMoved    MouseEventType = "mouseMoved"
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
)

// KeyEventType names a synthetic keyboard event. KeyChar carries the
// printable character produced by a key press and is only ever issued
// immediately after a KeyDown.
type KeyEventType string

const (
	KeyDown KeyEventType = "keyDown"
	KeyUp   KeyEventType = "keyUp"
	KeyChar KeyEventType = "char"
)

// MouseEvent is a synthetic pointer event in page coordinates, already
// scaled by the target view's zoom factor.
type MouseEvent struct {
	Type       MouseEventType
	X          float64
	Y          float64
	Button     string // "left", "middle", "right" or "none"
	ClickCount int
}

// KeyEvent is a synthetic keyboard event. Modifiers is drawn from
// {"shift", "control", "alt", "meta"}, always in that order.
type KeyEvent struct {
	Type      KeyEventType
	Key       string
	Modifiers []string
}

// CaptureView is what the engine needs from the left (expected) page:
// script evaluation for injection, a hook for finished loads so the capture
// script can be re-installed after navigation, and the console line stream
// the capture script emits on. The returned removal funcs detach the hook.
type CaptureView interface {
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	OnLoadFinished(fn func()) (remove func())
	OnConsoleLine(fn func(line string)) (remove func())
	Closed() bool
}

// ReplayView is what the engine needs from the right (actual) page: script
// evaluation for element and state mutation, low-level synthetic input, and
// the current zoom factor for coordinate scaling.
type ReplayView interface {
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	DispatchMouseEvent(ctx context.Context, ev MouseEvent) error
	DispatchKeyEvent(ctx context.Context, ev KeyEvent) error
	ZoomFactor(ctx context.Context) (float64, error)
	Closed() bool
}
