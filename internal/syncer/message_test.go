package syncer

import "testing"

func TestDecodeMessageScroll(t *testing.T) {
	msg, ok := DecodeMessage(MessagePrefix + `{"type":"scroll","data":{"scrollX":120,"scrollY":480.5}}`)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if msg.Type != TypeScroll {
		t.Errorf("expected type scroll, got %s", msg.Type)
	}
	if msg.Scroll == nil {
		t.Fatal("expected scroll payload")
	}
	if !finite(msg.Scroll.ScrollX) || *msg.Scroll.ScrollX != 120 {
		t.Errorf("unexpected scrollX: %v", msg.Scroll.ScrollX)
	}
	if !finite(msg.Scroll.ScrollY) || *msg.Scroll.ScrollY != 480.5 {
		t.Errorf("unexpected scrollY: %v", msg.Scroll.ScrollY)
	}
}

func TestDecodeMessageNullCoordinates(t *testing.T) {
	// JSON.stringify turns NaN and Infinity into null.
	msg, ok := DecodeMessage(MessagePrefix + `{"type":"scroll","data":{"scrollX":null,"scrollY":10}}`)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if finite(msg.Scroll.ScrollX) {
		t.Error("expected null scrollX to be non-finite")
	}
	if !finite(msg.Scroll.ScrollY) {
		t.Error("expected scrollY to be finite")
	}
}

func TestDecodeMessageVariants(t *testing.T) {
	testCases := []struct {
		name string
		line string
		want MessageType
	}{
		{"elementscroll", `{"type":"elementscroll","data":{"selector":".modal","scrollLeft":0,"scrollTop":250}}`, TypeElementScroll},
		{"hover", `{"type":"hover","data":{"selector":"#nav > a:nth-of-type(2)"}}`, TypeHover},
		{"click", `{"type":"click","data":{"selector":"#search-btn","button":"left"}}`, TypeClick},
		{"inputvalue", `{"type":"inputvalue","data":{"selector":"input[name=\"q\"]","value":"hello"}}`, TypeInputValue},
		{"keydown", `{"type":"keydown","data":{"key":"a","code":"KeyA","keyCode":65,"shift":false,"ctrl":false,"alt":false,"meta":false}}`, TypeKeyDown},
		{"keyup", `{"type":"keyup","data":{"key":"Escape","code":"Escape","keyCode":27,"shift":false,"ctrl":false,"alt":false,"meta":false}}`, TypeKeyUp},
	}

	for _, tc := range testCases {
		msg, ok := DecodeMessage(MessagePrefix + tc.line)
		if !ok {
			t.Errorf("%s: expected decode to succeed", tc.name)
			continue
		}
		if msg.Type != tc.want {
			t.Errorf("%s: expected type %s, got %s", tc.name, tc.want, msg.Type)
		}
	}
}

func TestDecodeMessageInputValueVariants(t *testing.T) {
	msg, ok := DecodeMessage(MessagePrefix + `{"type":"inputvalue","data":{"selector":"#editor","textContent":"typed text"}}`)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if msg.InputValue.Value != nil {
		t.Error("expected value to be absent")
	}
	if msg.InputValue.TextContent == nil || *msg.InputValue.TextContent != "typed text" {
		t.Errorf("unexpected textContent: %v", msg.InputValue.TextContent)
	}
}

func TestDecodeMessageRejects(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"no prefix", `{"type":"scroll","data":{"scrollX":0,"scrollY":0}}`},
		{"unrelated log line", "failed to load resource: net::ERR_BLOCKED"},
		{"empty", ""},
		{"prefix only", MessagePrefix},
		{"invalid json", MessagePrefix + `{"type":"scroll",`},
		{"payload schema mismatch", MessagePrefix + `{"type":"scroll","data":{"scrollX":"abc","scrollY":0}}`},
		{"array payload", MessagePrefix + `{"type":"hover","data":[1,2,3]}`},
	}

	for _, tc := range testCases {
		if _, ok := DecodeMessage(tc.line); ok {
			t.Errorf("%s: expected decode to fail", tc.name)
		}
	}
}

func TestDecodeMessageUnknownType(t *testing.T) {
	// Unknown tags decode so the dispatcher can drop them explicitly;
	// they must never be an error, or a newer capture script would break
	// an older engine.
	msg, ok := DecodeMessage(MessagePrefix + `{"type":"dragstart","data":{"selector":"#x"}}`)
	if !ok {
		t.Fatal("expected unknown type to decode")
	}
	if msg.Type != "dragstart" {
		t.Errorf("expected tag to be preserved, got %s", msg.Type)
	}
	if msg.Scroll != nil || msg.ElementScroll != nil || msg.Hover != nil ||
		msg.Click != nil || msg.InputValue != nil || msg.Key != nil {
		t.Error("expected no payload variant for unknown type")
	}
}
