package forwarder

import (
	"fmt"

	"github.com/bendahl/uinput"

	"github.com/uplg/remapd/internal/eventmodel"
)

// UinputKeyboard is the production Forwarder, backed by a
// github.com/bendahl/uinput virtual keyboard. Grounded on
// uplg-asahi-map/internal/keyboard/output.go's VirtualKeyboard, generalized
// from a handful of hardcoded Unicode-typing helpers to the generic
// write(type,code,value)+syn contract every mapping handler chain targets.
type UinputKeyboard struct {
	kb uinput.Keyboard
}

// NewUinputKeyboard creates a virtual keyboard registered under name.
func NewUinputKeyboard(name string) (*UinputKeyboard, error) {
	kb, err := uinput.CreateKeyboard("/dev/uinput", []byte(name))
	if err != nil {
		return nil, fmt.Errorf("forwarder: creating virtual keyboard: %w", err)
	}
	return &UinputKeyboard{kb: kb}, nil
}

// Write stages a key event. uinput's KeyDown/KeyUp each perform their own
// implicit sync, so Sync is a no-op here; it exists to satisfy Forwarder and
// to group logical writes for callers that batch across type domains.
func (u *UinputKeyboard) Write(typ, code uint16, value int32) error {
	if typ != eventmodel.EvKey {
		return fmt.Errorf("forwarder: uinput keyboard cannot write event type %d", typ)
	}
	switch value {
	case 0:
		return u.kb.KeyUp(int(code))
	case 1, 2:
		// Repeat (value=2) re-sends KeyDown; the kernel's own auto-repeat
		// takes it from there, matching the teacher's ForwardEvent.
		return u.kb.KeyDown(int(code))
	default:
		return fmt.Errorf("forwarder: unsupported key value %d", value)
	}
}

// Sync is a no-op: bendahl/uinput syncs on every KeyDown/KeyUp call.
func (u *UinputKeyboard) Sync() error { return nil }

// Close releases the virtual keyboard.
func (u *UinputKeyboard) Close() error { return u.kb.Close() }

// UinputMouse is the relative-axis Forwarder backing the macro engine's
// mouse()/wheel() tasks.
type UinputMouse struct {
	mouse uinput.Mouse
}

// NewUinputMouse creates a virtual mouse registered under name.
func NewUinputMouse(name string) (*UinputMouse, error) {
	m, err := uinput.CreateMouse("/dev/uinput", []byte(name))
	if err != nil {
		return nil, fmt.Errorf("forwarder: creating virtual mouse: %w", err)
	}
	return &UinputMouse{mouse: m}, nil
}

// Write stages a relative-axis event (EV_REL) for the configured code.
func (u *UinputMouse) Write(typ, code uint16, value int32) error {
	if typ != eventmodel.EvRel {
		return fmt.Errorf("forwarder: uinput mouse cannot write event type %d", typ)
	}
	switch code {
	case relX:
		return u.mouse.Move(int32(value), 0)
	case relY:
		return u.mouse.Move(0, int32(value))
	case relWheel:
		return u.mouse.Wheel(false, value)
	case relHWheel:
		return u.mouse.Wheel(true, value)
	default:
		return fmt.Errorf("forwarder: unsupported relative axis code %d", code)
	}
}

// Sync is a no-op: bendahl/uinput flushes each Move/Wheel call.
func (u *UinputMouse) Sync() error { return nil }

// Close releases the virtual mouse.
func (u *UinputMouse) Close() error { return u.mouse.Close() }

// Relative axis codes from linux/input-event-codes.h, scoped to what
// mouse()/wheel() macro tasks emit.
const (
	relX      uint16 = 0x00
	relY      uint16 = 0x01
	relWheel  uint16 = 0x08
	relHWheel uint16 = 0x06
)
