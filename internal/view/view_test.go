package view

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"

	"github.com/negi1232/Twin-sub000/internal/syncer"
)

func newTestView() *View {
	ctx, cancel := context.WithCancel(context.Background())
	return newView(ctx, cancel, nil)
}

func TestConsoleLineExtraction(t *testing.T) {
	testCases := []struct {
		name string
		ev   *runtime.EventConsoleAPICalled
		want string
		ok   bool
	}{
		{
			"string arg",
			&runtime.EventConsoleAPICalled{Args: []*runtime.RemoteObject{
				{Type: runtime.TypeString, Value: []byte(`"__twin_sync__{}"`)},
			}},
			"__twin_sync__{}", true,
		},
		{
			"number arg",
			&runtime.EventConsoleAPICalled{Args: []*runtime.RemoteObject{
				{Type: runtime.TypeNumber, Value: []byte(`42`)},
			}},
			"", false,
		},
		{"no args", &runtime.EventConsoleAPICalled{}, "", false},
		{"nil event", nil, "", false},
		{
			"nil arg",
			&runtime.EventConsoleAPICalled{Args: []*runtime.RemoteObject{nil}},
			"", false,
		},
	}

	for _, tc := range testCases {
		got, ok := consoleLine(tc.ev)
		if ok != tc.ok || got != tc.want {
			t.Errorf("%s: expected (%q, %v), got (%q, %v)", tc.name, tc.want, tc.ok, got, ok)
		}
	}
}

func TestZoomFromViewport(t *testing.T) {
	testCases := []struct {
		name     string
		viewport *page.VisualViewport
		expected float64
	}{
		{"nil viewport", nil, 1},
		{"zoom set", &page.VisualViewport{Zoom: 1.5, Scale: 2}, 1.5},
		{"scale fallback", &page.VisualViewport{Scale: 0.5}, 0.5},
		{"neither set", &page.VisualViewport{}, 1},
	}

	for _, tc := range testCases {
		if got := zoomFromViewport(tc.viewport); got != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestModifierBits(t *testing.T) {
	testCases := []struct {
		names    []string
		expected input.Modifier
	}{
		{nil, input.ModifierNone},
		{[]string{"shift"}, input.ModifierShift},
		{[]string{"shift", "control", "alt", "meta"},
			input.ModifierShift | input.ModifierCtrl | input.ModifierAlt | input.ModifierMeta},
		{[]string{"hyper"}, input.ModifierNone},
	}

	for _, tc := range testCases {
		if got := modifierBits(tc.names); got != tc.expected {
			t.Errorf("%v: expected %d, got %d", tc.names, tc.expected, got)
		}
	}
}

func TestMouseButtonMapping(t *testing.T) {
	testCases := []struct {
		name     string
		expected input.MouseButton
	}{
		{"left", input.Left},
		{"middle", input.Middle},
		{"right", input.Right},
		{"none", input.None},
		{"wheel", input.None},
	}

	for _, tc := range testCases {
		if got := mouseButton(tc.name); got != tc.expected {
			t.Errorf("%q: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

func TestKeyParamsCharCarriesText(t *testing.T) {
	params := keyParams(input.KeyChar, syncer.KeyEvent{Type: syncer.KeyChar, Key: "a"})
	if params.Text != "a" {
		t.Errorf("expected char event text %q, got %q", "a", params.Text)
	}
	if params.Key != "" {
		t.Errorf("expected no key identity on char event, got %q", params.Key)
	}

	params = keyParams(input.KeyDown, syncer.KeyEvent{Type: syncer.KeyDown, Key: "A", Modifiers: []string{"shift"}})
	if params.Key != "A" {
		t.Errorf("expected keyDown key %q, got %q", "A", params.Key)
	}
	if params.Text != "" {
		t.Errorf("expected no text on keyDown, got %q", params.Text)
	}
	if params.Modifiers != input.ModifierShift {
		t.Errorf("expected shift modifier, got %d", params.Modifiers)
	}
}

func TestMouseParamsClickCount(t *testing.T) {
	ev := syncer.MouseEvent{Type: syncer.MousePressed, X: 10, Y: 20, Button: "left", ClickCount: 1}
	params := mouseParams(input.MousePressed, ev)
	if params.X != 10 || params.Y != 20 {
		t.Errorf("expected (10, 20), got (%v, %v)", params.X, params.Y)
	}
	if params.Button != input.Left || params.ClickCount != 1 {
		t.Errorf("unexpected button/clickCount: %s/%d", params.Button, params.ClickCount)
	}

	move := mouseParams(input.MouseMoved, syncer.MouseEvent{Type: syncer.MouseMoved, Button: "none"})
	if move.ClickCount != 0 {
		t.Errorf("expected no clickCount on move, got %d", move.ClickCount)
	}
}

func TestConsoleHookDeliveryAndRemoval(t *testing.T) {
	v := newTestView()
	defer v.Close()

	var got []string
	remove := v.OnConsoleLine(func(line string) { got = append(got, line) })

	ev := &runtime.EventConsoleAPICalled{Args: []*runtime.RemoteObject{
		{Type: runtime.TypeString, Value: []byte(`"one"`)},
	}}
	v.route(ev)
	v.route(&runtime.EventConsoleAPICalled{Args: []*runtime.RemoteObject{
		{Type: runtime.TypeNumber, Value: []byte(`7`)},
	}})

	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("expected [one], got %v", got)
	}

	remove()
	v.route(ev)
	if len(got) != 1 {
		t.Errorf("expected no delivery after removal, got %v", got)
	}
}

func TestLoadHookDelivery(t *testing.T) {
	v := newTestView()
	defer v.Close()

	fired := make(chan struct{}, 2)
	remove := v.OnLoadFinished(func() { fired <- struct{}{} })

	v.route(&page.EventLoadEventFired{})
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected load hook to fire")
	}

	remove()
	v.route(&page.EventLoadEventFired{})
	select {
	case <-fired:
		t.Error("expected no delivery after removal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNavigationHookTopFrameOnly(t *testing.T) {
	v := newTestView()
	defer v.Close()

	urls := make(chan string, 2)
	v.OnNavigated(func(u string) { urls <- u })

	v.route(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "f1", URL: "https://example.com/a"}})
	select {
	case u := <-urls:
		if u != "https://example.com/a" {
			t.Errorf("unexpected url: %s", u)
		}
	case <-time.After(time.Second):
		t.Fatal("expected navigation hook to fire")
	}

	// Subframe navigations are not mirrored.
	v.route(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "f2", ParentID: "f1", URL: "https://example.com/iframe"}})
	select {
	case u := <-urls:
		t.Errorf("expected no delivery for subframe, got %s", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClosed(t *testing.T) {
	v := newTestView()
	if v.Closed() {
		t.Error("expected open view")
	}
	v.Close()
	if !v.Closed() {
		t.Error("expected closed view")
	}
}
