// Package syncer implements the interaction sync engine: it injects a
// capture script into the expected (left) page, decodes the sync messages
// the script emits over the page's console log stream, and replays each
// interaction against the actual (right) page.
package syncer

import (
	"encoding/json"
	"math"
	"strings"
)

// MessagePrefix frames sync messages on the console log channel. The channel
// also carries the page's own console output, so receivers must check the
// prefix before attempting to parse.
const MessagePrefix = "__twin_sync__"

// MessageType tags a sync message payload.
type MessageType string

const (
	TypeScroll        MessageType = "scroll"
	TypeElementScroll MessageType = "elementscroll"
	TypeHover         MessageType = "hover"
	TypeClick         MessageType = "click"
	TypeInputValue    MessageType = "inputvalue"
	TypeKeyDown       MessageType = "keydown"
	TypeKeyUp         MessageType = "keyup"
)

// ScrollData is a window-level scroll position.
// Coordinates are pointers so that null and missing values (JSON.stringify
// turns NaN and Infinity into null) are distinguishable from zero.
type ScrollData struct {
	ScrollX *float64 `json:"scrollX"`
	ScrollY *float64 `json:"scrollY"`
}

// ElementScrollData is the scroll position of one scrollable element, such
// as a modal or an overflow container.
type ElementScrollData struct {
	Selector   string   `json:"selector"`
	ScrollLeft *float64 `json:"scrollLeft"`
	ScrollTop  *float64 `json:"scrollTop"`
}

// HoverData names the element currently under the pointer.
type HoverData struct {
	Selector string `json:"selector"`
}

// ClickData is a completed click on an element. Button is "left", "middle"
// or "right"; replay maps anything else to "left".
type ClickData struct {
	Selector string `json:"selector"`
	Button   string `json:"button"`
}

// InputValueData carries the new value of a form control, or the text of a
// contenteditable element. Exactly one of Value and TextContent is set by
// the capture script; contenteditable elements have no native value setter,
// so they report TextContent instead.
type InputValueData struct {
	Selector    string  `json:"selector"`
	Value       *string `json:"value,omitempty"`
	TextContent *string `json:"textContent,omitempty"`
}

// KeyData is a key event on a non-form target.
type KeyData struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"keyCode"`
	Shift   bool   `json:"shift"`
	Ctrl    bool   `json:"ctrl"`
	Alt     bool   `json:"alt"`
	Meta    bool   `json:"meta"`
}

// Message is the decoded wire unit: a closed tagged union over the six
// message kinds. Exactly one variant field is non-nil for a known Type;
// all variants are nil for an unknown Type, which the dispatcher ignores
// (unrecognized future tags are dropped, not rejected, so newer capture
// scripts keep working against older replay engines).
type Message struct {
	Type          MessageType
	Scroll        *ScrollData
	ElementScroll *ElementScrollData
	Hover         *HoverData
	Click         *ClickData
	InputValue    *InputValueData
	Key           *KeyData
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeMessage parses one console line into a Message. It reports false
// for lines without the sync prefix, for invalid JSON, and for payloads
// that do not match their type's schema; all three are expected,
// non-exceptional occurrences on a shared log channel.
func DecodeMessage(line string) (Message, bool) {
	if !strings.HasPrefix(line, MessagePrefix) {
		return Message{}, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(line[len(MessagePrefix):]), &env); err != nil {
		return Message{}, false
	}

	msg := Message{Type: MessageType(env.Type)}
	var err error
	switch msg.Type {
	case TypeScroll:
		msg.Scroll = &ScrollData{}
		err = json.Unmarshal(env.Data, msg.Scroll)
	case TypeElementScroll:
		msg.ElementScroll = &ElementScrollData{}
		err = json.Unmarshal(env.Data, msg.ElementScroll)
	case TypeHover:
		msg.Hover = &HoverData{}
		err = json.Unmarshal(env.Data, msg.Hover)
	case TypeClick:
		msg.Click = &ClickData{}
		err = json.Unmarshal(env.Data, msg.Click)
	case TypeInputValue:
		msg.InputValue = &InputValueData{}
		err = json.Unmarshal(env.Data, msg.InputValue)
	case TypeKeyDown, TypeKeyUp:
		msg.Key = &KeyData{}
		err = json.Unmarshal(env.Data, msg.Key)
	default:
		// Unknown type: keep the tag, no payload. The dispatcher drops it.
	}
	if err != nil {
		return Message{}, false
	}
	return msg, true
}

// finite reports whether v holds a usable coordinate. A nil pointer means
// the field was absent or JSON null (the stringified form of NaN/Infinity).
func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
