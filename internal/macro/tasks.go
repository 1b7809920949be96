package macro

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/uplg/remapd/internal/context"
	"github.com/uplg/remapd/internal/eventmodel"
)

// Relative-axis codes (linux/input-event-codes.h), used by mouse()/wheel().
const (
	relX     uint16 = 0x00
	relY     uint16 = 0x01
	relHWheel uint16 = 0x06
	relWheel  uint16 = 0x08
)

// LED codes used by if_capslock()/if_numlock().
const (
	ledNumLock   uint16 = 0x00
	ledCapsLock  uint16 = 0x01
)

const defaultTapTimeoutMs = 300

// emitKey writes a key event and updates the macro's held-key bookkeeping so
// Cancel/Reset can flush it if the program never reaches the other half of
// the pair (spec §5).
func emitKey(rc *RunContext, code uint16, value int32) error {
	if err := rc.Emit(eventmodel.EvKey, code, value); err != nil {
		return err
	}
	trackKey(rc, eventmodel.EvKey, code, value)
	return nil
}

// trackKey updates the macro's held-key set for a raw emitted event. Only
// key events are tracked; axis motion and LED events have nothing to flush.
func trackKey(rc *RunContext, typ, code uint16, value int32) {
	if typ != eventmodel.EvKey {
		return
	}
	if value != 0 {
		rc.Macro.markKeyDown(code)
	} else {
		rc.Macro.markKeyUp(code)
	}
}

func sleepCtx(ctx interface {
	Done() <-chan struct{}
	Err() error
}, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepMs(rc *RunContext, ms int) error {
	return sleepCtx(rc.Std, time.Duration(ms)*time.Millisecond)
}

func keySleep(rc *RunContext) int {
	if rc.Env.MacroKeySleepMs > 0 {
		return rc.Env.MacroKeySleepMs
	}
	return eventmodel.DefaultMacroKeySleepMs
}

// KeyTask implements key(symbol): a down/up pair separated by the mapping's
// macro_key_sleep_ms.
type KeyTask struct{ Symbol argValue }

func (t *KeyTask) Run(rc *RunContext) error {
	code, err := t.Symbol.resolveSymbolCode(rc, "key")
	if err != nil {
		return err
	}
	if err := emitKey(rc, code, 1); err != nil {
		return err
	}
	if err := sleepMs(rc, keySleep(rc)); err != nil {
		return err
	}
	if err := emitKey(rc, code, 0); err != nil {
		return err
	}
	return sleepMs(rc, keySleep(rc))
}

// KeyDownTask implements key_down(symbol): an unpaired press.
type KeyDownTask struct{ Symbol argValue }

func (t *KeyDownTask) Run(rc *RunContext) error {
	code, err := t.Symbol.resolveSymbolCode(rc, "key_down")
	if err != nil {
		return err
	}
	return emitKey(rc, code, 1)
}

// KeyUpTask implements key_up(symbol): an unpaired release.
type KeyUpTask struct{ Symbol argValue }

func (t *KeyUpTask) Run(rc *RunContext) error {
	code, err := t.Symbol.resolveSymbolCode(rc, "key_up")
	if err != nil {
		return err
	}
	return emitKey(rc, code, 0)
}

// HoldTask implements hold() and hold(macro): suspend until the trigger
// releases, optionally looping a child program meanwhile.
type HoldTask struct{ Child argValue }

func (t *HoldTask) Run(rc *RunContext) error {
	if !t.Child.present {
		already, ch := rc.Macro.trigger.waitRelease()
		if already {
			return nil
		}
		select {
		case <-ch:
			return nil
		case <-rc.Std.Done():
			return rc.Std.Err()
		}
	}

	for {
		already, ch := rc.Macro.trigger.waitRelease()
		if already {
			return nil
		}
		if err := runProgram(rc, t.Child.program); err != nil {
			return err
		}
		select {
		case <-ch:
			return nil
		default:
		}
	}
}

// HoldKeysTask implements hold_keys(*symbols): atomically press every symbol
// down in order, wait for release, then release in reverse order. If any
// symbol fails to resolve, nothing is pressed at all.
type HoldKeysTask struct{ Symbols []argValue }

func (t *HoldKeysTask) Run(rc *RunContext) error {
	codes := make([]uint16, len(t.Symbols))
	for i, s := range t.Symbols {
		code, err := s.resolveSymbolCode(rc, "hold_keys")
		if err != nil {
			return err
		}
		codes[i] = code
	}

	for _, c := range codes {
		if err := emitKey(rc, c, 1); err != nil {
			return err
		}
	}

	var waitErr error
	already, ch := rc.Macro.trigger.waitRelease()
	if !already {
		select {
		case <-ch:
		case <-rc.Std.Done():
			waitErr = rc.Std.Err()
		}
	}

	var firstErr error
	for i := len(codes) - 1; i >= 0; i-- {
		if err := emitKey(rc, codes[i], 0); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return waitErr
}

// ModifyTask implements modify(symbol, macro): hold symbol down for the
// duration of the child program, guaranteeing the release fires even if the
// child returns an error.
type ModifyTask struct {
	Symbol argValue
	Child  argValue
}

func (t *ModifyTask) Run(rc *RunContext) error {
	code, err := t.Symbol.resolveSymbolCode(rc, "modify")
	if err != nil {
		return err
	}
	if err := emitKey(rc, code, 1); err != nil {
		return err
	}
	childErr := runProgram(rc, t.Child.program)
	upErr := emitKey(rc, code, 0)
	if childErr != nil {
		return childErr
	}
	return upErr
}

// RepeatTask implements repeat(count, macro).
type RepeatTask struct {
	Count argValue
	Child argValue
}

func (t *RepeatTask) Run(rc *RunContext) error {
	n, err := t.Count.resolveInt(rc, "repeat")
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		if err := rc.Std.Err(); err != nil {
			return err
		}
		if err := runProgram(rc, t.Child.program); err != nil {
			return err
		}
	}
	return nil
}

// WaitTask implements wait(ms) and wait(ms_min, ms_max).
type WaitTask struct {
	Min argValue
	Max argValue
}

func (t *WaitTask) Run(rc *RunContext) error {
	minMs, err := t.Min.resolveFloat(rc, "wait")
	if err != nil {
		return err
	}
	ms := minMs
	if t.Max.present {
		maxMs, err := t.Max.resolveFloat(rc, "wait")
		if err != nil {
			return err
		}
		if maxMs > minMs {
			ms = minMs + rand.Float64()*(maxMs-minMs)
		}
	}
	return sleepCtx(rc.Std, time.Duration(ms*float64(time.Millisecond)))
}

func mouseAxis(dir string) (uint16, float64, error) {
	switch strings.ToLower(dir) {
	case "up":
		return relY, -1, nil
	case "down":
		return relY, 1, nil
	case "left":
		return relX, -1, nil
	case "right":
		return relX, 1, nil
	}
	return 0, 0, fmt.Errorf("mouse: unknown direction %q", dir)
}

func wheelAxis(dir string) (uint16, int32, error) {
	switch strings.ToLower(dir) {
	case "up":
		return relWheel, 1, nil
	case "down":
		return relWheel, -1, nil
	case "left":
		return relHWheel, -1, nil
	case "right":
		return relHWheel, 1, nil
	}
	return 0, 0, fmt.Errorf("wheel: unknown direction %q", dir)
}

// MouseTask implements mouse(direction, speed, accel?): emits relative
// motion at the mapping's rel_rate while the trigger stays held, ramping
// from 0 toward +-speed at the given acceleration (accel=1 holds a constant
// speed from the first tick).
type MouseTask struct {
	Direction argValue
	Speed     argValue
	Accel     argValue
}

func (t *MouseTask) Run(rc *RunContext) error {
	dir, err := t.Direction.resolveString(rc, "mouse")
	if err != nil {
		return err
	}
	speed, err := t.Speed.resolveFloat(rc, "mouse")
	if err != nil {
		return err
	}
	accel := 1.0
	if t.Accel.present {
		accel, err = t.Accel.resolveFloat(rc, "mouse")
		if err != nil {
			return err
		}
	}
	axis, sign, err := mouseAxis(dir)
	if err != nil {
		return err
	}

	relRate := rc.Env.RelRate
	if relRate <= 0 {
		relRate = eventmodel.DefaultRelRate
	}
	interval := time.Second / time.Duration(relRate)

	velocity := 0.0
	for {
		already, ch := rc.Macro.trigger.waitRelease()
		if already {
			return nil
		}
		velocity += speed * accel
		if velocity > speed {
			velocity = speed
		}
		if err := rc.Emit(eventmodel.EvRel, axis, int32(velocity*sign)); err != nil {
			return err
		}
		select {
		case <-ch:
			return nil
		case <-rc.Std.Done():
			return rc.Std.Err()
		case <-time.After(interval):
		}
	}
}

// WheelTask implements wheel(direction, speed): emits one relative-wheel
// tick per rel_rate interval while the trigger stays held.
type WheelTask struct {
	Direction argValue
	Speed     argValue
}

func (t *WheelTask) Run(rc *RunContext) error {
	dir, err := t.Direction.resolveString(rc, "wheel")
	if err != nil {
		return err
	}
	speed, err := t.Speed.resolveInt(rc, "wheel")
	if err != nil {
		return err
	}
	axis, sign, err := wheelAxis(dir)
	if err != nil {
		return err
	}

	relRate := rc.Env.RelRate
	if relRate <= 0 {
		relRate = eventmodel.DefaultRelRate
	}
	interval := time.Second / time.Duration(relRate)

	for {
		already, ch := rc.Macro.trigger.waitRelease()
		if already {
			return nil
		}
		if err := rc.Emit(eventmodel.EvRel, axis, int32(speed)*sign); err != nil {
			return err
		}
		select {
		case <-ch:
			return nil
		case <-rc.Std.Done():
			return rc.Std.Err()
		case <-time.After(interval):
		}
	}
}

// EventTask implements event(type, code, value): a raw, unvalidated emit.
type EventTask struct {
	Type  argValue
	Code  argValue
	Value argValue
}

func (t *EventTask) Run(rc *RunContext) error {
	typ, err := t.Type.resolveInt(rc, "event")
	if err != nil {
		return err
	}
	code, err := t.Code.resolveInt(rc, "event")
	if err != nil {
		return err
	}
	val, err := t.Value.resolveInt(rc, "event")
	if err != nil {
		return err
	}
	if err := rc.Emit(uint16(typ), uint16(code), int32(val)); err != nil {
		return err
	}
	trackKey(rc, uint16(typ), uint16(code), int32(val))
	return nil
}

// SetTask implements set(name, value): unconditional overwrite.
type SetTask struct {
	Name  string
	Value argValue
}

func (t *SetTask) Run(rc *RunContext) error {
	rc.Env.Vars.Set(t.Name, t.Value.resolve(rc.Env.Vars))
	return nil
}

// AddTask implements add(name, number): numeric increment that is a
// logged-but-silent no-op when the variable holds a non-numeric value.
type AddTask struct {
	Name  string
	Delta argValue
}

func (t *AddTask) Run(rc *RunContext) error {
	if err := rc.Env.Vars.Add(t.Name, t.Delta.resolve(rc.Env.Vars)); err != nil {
		slog.Warn("macro: add() left variable unchanged", "error", err)
	}
	return nil
}

// IfEqTask implements if_eq(a, b, then?, else?) and its ifeq(name, value, ...)
// legacy alias (bound to A=$name at parse time). Equality is strict: types
// must match exactly, no coercion.
type IfEqTask struct {
	A, B       argValue
	Then, Else Program
}

func (t *IfEqTask) Run(rc *RunContext) error {
	a := t.A.resolve(rc.Env.Vars)
	b := t.B.resolve(rc.Env.Vars)
	if a.Equal(b) {
		return runProgram(rc, t.Then)
	}
	return runProgram(rc, t.Else)
}

// IfTapTask implements if_tap(then?, else?, timeout?): runs then if the
// trigger releases within timeout of being pressed, else otherwise. Handles
// the pre-press race (press_trigger fired before this task started waiting)
// by checking the latched press state before subscribing to the press edge.
type IfTapTask struct {
	Then, Else Program
	Timeout    argValue
}

func (t *IfTapTask) Run(rc *RunContext) error {
	timeoutMs := int64(defaultTapTimeoutMs)
	if t.Timeout.present {
		ms, err := t.Timeout.resolveInt(rc, "if_tap")
		if err != nil {
			return err
		}
		timeoutMs = ms
	}

	already, pressCh := rc.Macro.trigger.waitPress()
	if !already {
		select {
		case <-pressCh:
		case <-rc.Std.Done():
			return rc.Std.Err()
		}
	}

	already, releaseCh := rc.Macro.trigger.waitRelease()
	if already {
		return runProgram(rc, t.Then)
	}

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-releaseCh:
		return runProgram(rc, t.Then)
	case <-timer.C:
		return runProgram(rc, t.Else)
	case <-rc.Std.Done():
		return rc.Std.Err()
	}
}

// IfSingleTask implements if_single(then?, else?, timeout?): runs then if
// the trigger releases before any other key is pressed (or the optional
// timeout elapses), else otherwise. Release events and axis motion from
// other sources never count as "another key pressed".
type IfSingleTask struct {
	Then, Else Program
	Timeout    argValue
}

func (t *IfSingleTask) Run(rc *RunContext) error {
	already, releaseCh := rc.Macro.trigger.waitRelease()
	if already {
		return runProgram(rc, t.Then)
	}

	otherPressed := make(chan struct{})
	var token context.ListenerToken
	hasListener := rc.Env.Context != nil
	if hasListener {
		token = rc.Env.Context.AddListener(func(event eventmodel.InputEvent) bool {
			if event.Type == eventmodel.EvKey && event.Value == 1 {
				select {
				case <-otherPressed:
				default:
					close(otherPressed)
				}
				return true
			}
			return false
		})
		defer rc.Env.Context.RemoveListener(token)
	}

	var timerCh <-chan time.Time
	if t.Timeout.present {
		ms, err := t.Timeout.resolveInt(rc, "if_single")
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case <-releaseCh:
		return runProgram(rc, t.Then)
	case <-otherPressed:
		return runProgram(rc, t.Else)
	case <-timerCh:
		return runProgram(rc, t.Else)
	case <-rc.Std.Done():
		return rc.Std.Err()
	}
}

func ledOn(rc *RunContext, led uint16) bool {
	if rc.Env.Context == nil {
		return false
	}
	dev, ok := rc.Env.Context.SourceDevice(rc.Env.SourceOrigin)
	if !ok {
		return false
	}
	return dev.Leds()[led]
}

// IfCapslockTask implements if_capslock(then?, else?).
type IfCapslockTask struct{ Then, Else Program }

func (t *IfCapslockTask) Run(rc *RunContext) error {
	if ledOn(rc, ledCapsLock) {
		return runProgram(rc, t.Then)
	}
	return runProgram(rc, t.Else)
}

// IfNumlockTask implements if_numlock(then?, else?).
type IfNumlockTask struct{ Then, Else Program }

func (t *IfNumlockTask) Run(rc *RunContext) error {
	if ledOn(rc, ledNumLock) {
		return runProgram(rc, t.Then)
	}
	return runProgram(rc, t.Else)
}

// --- task builders (parser <-> AST wiring) ---

var taskBuilders = map[string]func([]rawArg) (Task, error){
	"key":         buildKey,
	"key_down":    buildKeyDown,
	"key_up":      buildKeyUp,
	"hold":        buildHold,
	"hold_keys":   buildHoldKeys,
	"modify":      buildModify,
	"repeat":      buildRepeat,
	"wait":        buildWait,
	"mouse":       buildMouse,
	"wheel":       buildWheel,
	"event":       buildEvent,
	"set":         buildSet,
	"add":         buildAdd,
	"if_eq":       buildIfEq,
	"ifeq":        buildIfEqLegacy,
	"if_tap":      buildIfTap,
	"if_single":   buildIfSingle,
	"if_capslock": buildIfCapslock,
	"if_numlock":  buildIfNumlock,
}

func requireScalar(slot string, argName string) (argValue, error) {
	v, err := parseScalarArg(slot)
	if err != nil {
		return argValue{}, err
	}
	if !v.present {
		return argValue{}, parseErrf(argName, "argument is required")
	}
	return v, nil
}

func buildKey(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"symbol"}, args)
	if err != nil {
		return nil, err
	}
	sym, err := requireScalar(slots[0], "key")
	if err != nil {
		return nil, err
	}
	return &KeyTask{Symbol: sym}, nil
}

func buildKeyDown(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"symbol"}, args)
	if err != nil {
		return nil, err
	}
	sym, err := requireScalar(slots[0], "key_down")
	if err != nil {
		return nil, err
	}
	return &KeyDownTask{Symbol: sym}, nil
}

func buildKeyUp(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"symbol"}, args)
	if err != nil {
		return nil, err
	}
	sym, err := requireScalar(slots[0], "key_up")
	if err != nil {
		return nil, err
	}
	return &KeyUpTask{Symbol: sym}, nil
}

func buildHold(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"macro"}, args)
	if err != nil {
		return nil, err
	}
	child, err := parseProgramArg(slots[0])
	if err != nil {
		return nil, err
	}
	return &HoldTask{Child: child}, nil
}

func buildHoldKeys(args []rawArg) (Task, error) {
	syms := make([]argValue, 0, len(args))
	for _, a := range args {
		if a.Name != "" {
			return nil, parseErrf(a.Name, "hold_keys does not accept named arguments")
		}
		v, err := parseScalarArg(a.Raw)
		if err != nil {
			return nil, err
		}
		if !v.present {
			return nil, parseErrf("hold_keys", "empty argument")
		}
		syms = append(syms, v)
	}
	if len(syms) == 0 {
		return nil, parseErrf("hold_keys", "requires at least one symbol")
	}
	return &HoldKeysTask{Symbols: syms}, nil
}

func buildModify(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"symbol", "macro"}, args)
	if err != nil {
		return nil, err
	}
	sym, err := requireScalar(slots[0], "modify")
	if err != nil {
		return nil, err
	}
	child, err := parseProgramArg(slots[1])
	if err != nil {
		return nil, err
	}
	if !child.present {
		return nil, parseErrf("modify", "macro argument is required")
	}
	return &ModifyTask{Symbol: sym, Child: child}, nil
}

func buildRepeat(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"count", "macro"}, args)
	if err != nil {
		return nil, err
	}
	count, err := requireScalar(slots[0], "repeat")
	if err != nil {
		return nil, err
	}
	child, err := parseProgramArg(slots[1])
	if err != nil {
		return nil, err
	}
	if !child.present {
		return nil, parseErrf("repeat", "macro argument is required")
	}
	return &RepeatTask{Count: count, Child: child}, nil
}

func buildWait(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"min", "max"}, args)
	if err != nil {
		return nil, err
	}
	minV, err := requireScalar(slots[0], "wait")
	if err != nil {
		return nil, err
	}
	maxV, err := parseScalarArg(slots[1])
	if err != nil {
		return nil, err
	}
	return &WaitTask{Min: minV, Max: maxV}, nil
}

func buildMouse(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"direction", "speed", "accel"}, args)
	if err != nil {
		return nil, err
	}
	dir, err := requireScalar(slots[0], "mouse")
	if err != nil {
		return nil, err
	}
	speed, err := requireScalar(slots[1], "mouse")
	if err != nil {
		return nil, err
	}
	accel, err := parseScalarArg(slots[2])
	if err != nil {
		return nil, err
	}
	return &MouseTask{Direction: dir, Speed: speed, Accel: accel}, nil
}

func buildWheel(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"direction", "speed"}, args)
	if err != nil {
		return nil, err
	}
	dir, err := requireScalar(slots[0], "wheel")
	if err != nil {
		return nil, err
	}
	speed, err := requireScalar(slots[1], "wheel")
	if err != nil {
		return nil, err
	}
	return &WheelTask{Direction: dir, Speed: speed}, nil
}

func buildEvent(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"type", "code", "value"}, args)
	if err != nil {
		return nil, err
	}
	typ, err := requireScalar(slots[0], "event")
	if err != nil {
		return nil, err
	}
	code, err := requireScalar(slots[1], "event")
	if err != nil {
		return nil, err
	}
	val, err := requireScalar(slots[2], "event")
	if err != nil {
		return nil, err
	}
	return &EventTask{Type: typ, Code: code, Value: val}, nil
}

func variableName(raw, taskName string) (string, error) {
	name := strings.TrimSpace(raw)
	name = strings.TrimPrefix(name, "$")
	if !isIdentifier(name) {
		return "", parseErrf(name, taskName+": invalid variable name")
	}
	return name, nil
}

func buildSet(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"name", "value"}, args)
	if err != nil {
		return nil, err
	}
	name, err := variableName(slots[0], "set")
	if err != nil {
		return nil, err
	}
	val, err := requireScalar(slots[1], "set")
	if err != nil {
		return nil, err
	}
	return &SetTask{Name: name, Value: val}, nil
}

func buildAdd(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"name", "value"}, args)
	if err != nil {
		return nil, err
	}
	name, err := variableName(slots[0], "add")
	if err != nil {
		return nil, err
	}
	val, err := requireScalar(slots[1], "add")
	if err != nil {
		return nil, err
	}
	return &AddTask{Name: name, Delta: val}, nil
}

func buildIfEq(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"a", "b", "then", "else"}, args)
	if err != nil {
		return nil, err
	}
	a, err := requireScalar(slots[0], "if_eq")
	if err != nil {
		return nil, err
	}
	b, err := requireScalar(slots[1], "if_eq")
	if err != nil {
		return nil, err
	}
	thenArg, err := parseProgramArg(slots[2])
	if err != nil {
		return nil, err
	}
	elseArg, err := parseProgramArg(slots[3])
	if err != nil {
		return nil, err
	}
	return &IfEqTask{A: a, B: b, Then: thenArg.program, Else: elseArg.program}, nil
}

func buildIfEqLegacy(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"name", "value", "then", "else"}, args)
	if err != nil {
		return nil, err
	}
	name, err := variableName(slots[0], "ifeq")
	if err != nil {
		return nil, err
	}
	b, err := requireScalar(slots[1], "ifeq")
	if err != nil {
		return nil, err
	}
	thenArg, err := parseProgramArg(slots[2])
	if err != nil {
		return nil, err
	}
	elseArg, err := parseProgramArg(slots[3])
	if err != nil {
		return nil, err
	}
	return &IfEqTask{
		A:    argValue{present: true, isVar: true, varName: name},
		B:    b,
		Then: thenArg.program,
		Else: elseArg.program,
	}, nil
}

func buildIfTap(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"then", "else", "timeout"}, args)
	if err != nil {
		return nil, err
	}
	thenArg, err := parseProgramArg(slots[0])
	if err != nil {
		return nil, err
	}
	elseArg, err := parseProgramArg(slots[1])
	if err != nil {
		return nil, err
	}
	timeout, err := parseScalarArg(slots[2])
	if err != nil {
		return nil, err
	}
	return &IfTapTask{Then: thenArg.program, Else: elseArg.program, Timeout: timeout}, nil
}

func buildIfSingle(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"then", "else", "timeout"}, args)
	if err != nil {
		return nil, err
	}
	thenArg, err := parseProgramArg(slots[0])
	if err != nil {
		return nil, err
	}
	elseArg, err := parseProgramArg(slots[1])
	if err != nil {
		return nil, err
	}
	timeout, err := parseScalarArg(slots[2])
	if err != nil {
		return nil, err
	}
	return &IfSingleTask{Then: thenArg.program, Else: elseArg.program, Timeout: timeout}, nil
}

func buildIfCapslock(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"then", "else"}, args)
	if err != nil {
		return nil, err
	}
	thenArg, err := parseProgramArg(slots[0])
	if err != nil {
		return nil, err
	}
	elseArg, err := parseProgramArg(slots[1])
	if err != nil {
		return nil, err
	}
	return &IfCapslockTask{Then: thenArg.program, Else: elseArg.program}, nil
}

func buildIfNumlock(args []rawArg) (Task, error) {
	slots, err := bindArgs([]string{"then", "else"}, args)
	if err != nil {
		return nil, err
	}
	thenArg, err := parseProgramArg(slots[0])
	if err != nil {
		return nil, err
	}
	elseArg, err := parseProgramArg(slots[1])
	if err != nil {
		return nil, err
	}
	return &IfNumlockTask{Then: thenArg.program, Else: elseArg.program}, nil
}
