package view

import (
	"github.com/chromedp/cdproto/input"

	"github.com/negi1232/Twin-sub000/internal/syncer"
)

var mouseTypes = map[syncer.MouseEventType]input.MouseType{
	syncer.MouseMoved:    input.MouseMoved,
	syncer.MousePressed:  input.MousePressed,
	syncer.MouseReleased: input.MouseReleased,
}

var keyTypes = map[syncer.KeyEventType]input.KeyType{
	syncer.KeyDown: input.KeyDown,
	syncer.KeyUp:   input.KeyUp,
	syncer.KeyChar: input.KeyChar,
}

func mouseButton(name string) input.MouseButton {
	switch name {
	case "left":
		return input.Left
	case "middle":
		return input.Middle
	case "right":
		return input.Right
	default:
		return input.None
	}
}

// modifierBits folds the engine's modifier names into the protocol bitmask.
func modifierBits(names []string) input.Modifier {
	mods := input.ModifierNone
	for _, name := range names {
		switch name {
		case "shift":
			mods |= input.ModifierShift
		case "control":
			mods |= input.ModifierCtrl
		case "alt":
			mods |= input.ModifierAlt
		case "meta":
			mods |= input.ModifierMeta
		}
	}
	return mods
}

func mouseParams(typ input.MouseType, ev syncer.MouseEvent) *input.DispatchMouseEventParams {
	params := input.DispatchMouseEvent(typ, ev.X, ev.Y).WithButton(mouseButton(ev.Button))
	if ev.ClickCount > 0 {
		params = params.WithClickCount(int64(ev.ClickCount))
	}
	return params
}

// keyParams builds the protocol event. A char event carries its character
// as text; down/up events carry the key identity instead.
func keyParams(typ input.KeyType, ev syncer.KeyEvent) *input.DispatchKeyEventParams {
	params := input.DispatchKeyEvent(typ)
	if typ == input.KeyChar {
		params = params.WithText(ev.Key)
	} else {
		params = params.WithKey(ev.Key)
	}
	if mods := modifierBits(ev.Modifiers); mods != input.ModifierNone {
		params = params.WithModifiers(mods)
	}
	return params
}
