package macro

import (
	stdctx "context"
	"sync"

	"github.com/uplg/remapd/internal/eventmodel"
)

// triggerState tracks whether the physical key/combination driving a macro
// is currently held, and lets tasks block until the next press or release
// edge without missing one that arrives before they start waiting.
//
// Both waitPress and waitRelease check the current level and hand back a
// channel under the same lock that press()/release() use to flip the level
// and close it — so a press_trigger() that lands between a caller's
// "not yet pressed" check and its channel subscribe can never be missed.
// This is the pre-press race spec §9 calls out for if_tap.
type triggerState struct {
	mu        sync.Mutex
	pressed   bool
	pressCh   chan struct{}
	releaseCh chan struct{}
}

func newTriggerState() *triggerState {
	return &triggerState{
		pressCh:   make(chan struct{}),
		releaseCh: make(chan struct{}),
	}
}

func (t *triggerState) press() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pressed {
		return
	}
	t.pressed = true
	close(t.pressCh)
	t.releaseCh = make(chan struct{})
}

func (t *triggerState) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pressed {
		return
	}
	t.pressed = false
	close(t.releaseCh)
	t.pressCh = make(chan struct{})
}

func (t *triggerState) isPressed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pressed
}

// waitPress returns (true, nil) if already pressed, else (false, ch) where
// ch closes on the next press edge.
func (t *triggerState) waitPress() (bool, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pressed {
		return true, nil
	}
	return false, t.pressCh
}

// waitRelease returns (true, nil) if already released, else (false, ch)
// where ch closes on the next release edge.
func (t *triggerState) waitRelease() (bool, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pressed {
		return true, nil
	}
	return false, t.releaseCh
}

// Macro is one compiled macro program plus the trigger/run state needed to
// execute it repeatedly across the lifetime of a mapping (spec §4.3).
type Macro struct {
	tasks Program

	mu       sync.Mutex
	running  bool
	cancel   stdctx.CancelFunc
	emit     EmitFunc
	heldKeys map[uint16]bool

	trigger *triggerState
}

// NewMacro wraps an already-parsed task list.
func NewMacro(tasks Program) *Macro {
	return &Macro{tasks: tasks, trigger: newTriggerState(), heldKeys: make(map[uint16]bool)}
}

// markKeyDown records that code now has an unpaired key press, so a later
// Cancel/Reset can release it if the program never reaches the matching
// key_up. Mirrors the Recognizer's requiresRelease bookkeeping in
// internal/combination/recognizer.go.
func (m *Macro) markKeyDown(code uint16) {
	m.mu.Lock()
	m.heldKeys[code] = true
	m.mu.Unlock()
}

// markKeyUp clears a code's held bookkeeping once its release has actually
// been emitted.
func (m *Macro) markKeyUp(code uint16) {
	m.mu.Lock()
	delete(m.heldKeys, code)
	m.mu.Unlock()
}

// flushHeld releases every key still marked held, through whichever EmitFunc
// is on file for the run that marked them. The map is drained under the same
// lock used to populate it, so this is safe to call from both Cancel (a
// different goroutine than the one running the macro) and Run's own cleanup
// without double-releasing a code: whichever call observes it first drains
// and releases it, the other finds nothing left to do.
func (m *Macro) flushHeld() {
	m.mu.Lock()
	emit := m.emit
	var codes []uint16
	for code := range m.heldKeys {
		codes = append(codes, code)
		delete(m.heldKeys, code)
	}
	m.mu.Unlock()

	if emit == nil {
		return
	}
	for _, code := range codes {
		_ = emit(eventmodel.EvKey, code, 0)
	}
}

// PressTrigger signals that the macro's driving key/combination went down.
// Idempotent: redundant presses before a matching release are no-ops.
func (m *Macro) PressTrigger() { m.trigger.press() }

// ReleaseTrigger signals that the macro's driving key/combination went up.
// Idempotent: redundant releases before a matching press are no-ops.
func (m *Macro) ReleaseTrigger() { m.trigger.release() }

// IsPressed reports the current trigger level.
func (m *Macro) IsPressed() bool { return m.trigger.isPressed() }

// IsRunning reports whether a Run call is currently executing this macro's
// tasks.
func (m *Macro) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Run executes the macro's tasks once, top to bottom. A Run call on an
// already-running macro is a no-op (spec §4.3: duplicate run() on a running
// macro does nothing — a single hold of the trigger runs the program once,
// even if the key-repeat layer resends presses).
func (m *Macro) Run(std stdctx.Context, emit EmitFunc, env *Env) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	runCtx, cancel := stdctx.WithCancel(std)
	m.cancel = cancel
	m.emit = emit
	m.mu.Unlock()

	defer func() {
		m.flushHeld()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.emit = nil
		m.mu.Unlock()
		cancel()
	}()

	rc := &RunContext{Std: runCtx, Emit: emit, Macro: m, Env: env}
	return runProgram(rc, m.tasks)
}

// Cancel aborts a currently running macro (spec §5: external reset cancels
// pending timers and suspension points, and flushes any key_down left
// without a matching key_up). A no-op if nothing is running.
func (m *Macro) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.flushHeld()
}
