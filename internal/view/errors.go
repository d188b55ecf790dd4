package view

import "errors"

var (
	// ErrConnectFailed is returned when the DevTools connection cannot be
	// established or verified.
	ErrConnectFailed = errors.New("failed to connect to browser")

	// ErrUnknownInputEvent is returned for a synthetic input event type
	// the protocol adapter does not know how to dispatch.
	ErrUnknownInputEvent = errors.New("unknown synthetic input event type")
)
