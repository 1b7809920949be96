package macro

import (
	stdctx "context"
	"fmt"
	"strconv"

	"github.com/uplg/remapd/internal/context"
	"github.com/uplg/remapd/internal/layout"
)

// Program is a parsed, ready-to-run task sequence — the unit both a whole
// macro and a nested "child macro" argument (hold(...), repeat(n, ...),
// modify(key, ...), the then/else branches of the if_* tasks) resolve to.
type Program []Task

// Task is one parsed macro call (spec §4.2's AST node). Tasks execute
// sequentially within their Program; a Task that blocks (hold, if_tap,
// if_single, mouse, wheel while held) suspends the goroutine running the
// macro, never the whole process.
type Task interface {
	Run(rc *RunContext) error
}

// EmitFunc writes one synthetic input event. Implementations come from the
// forwarder registered for the macro's target uinput (spec §6).
type EmitFunc func(typ, code uint16, value int32) error

// Env bundles the services a running macro needs beyond its own task list:
// the shared variable store, the keyboard layout for symbol resolution, the
// owning Context (for if_single's listener and if_capslock/if_numlock's LED
// lookup), and the mapping's timing knobs (spec §3's Mapping fields).
type Env struct {
	Vars            *Store
	Layout          *layout.KeyboardLayout
	Context         *context.Context
	SourceOrigin    string // origin hash used to look up this mapping's source device LEDs
	MacroKeySleepMs int
	RelRate         int
}

// RunContext is threaded through every Task.Run call.
type RunContext struct {
	Std   stdctx.Context
	Emit  EmitFunc
	Macro *Macro
	Env   *Env
}

// runProgram runs a task list sequentially, stopping at the first error.
// A nil program (an omitted optional then/else branch) is a no-op.
func runProgram(rc *RunContext, p Program) error {
	for _, t := range p {
		if err := rc.Std.Err(); err != nil {
			return err
		}
		if err := t.Run(rc); err != nil {
			return err
		}
	}
	return nil
}

// argValue is a parsed-but-unresolved argument: either a literal the parser
// already typed, a $name variable reference resolved at run time, or (for
// macro-typed slots) a nested Program.
type argValue struct {
	isVar     bool
	varName   string
	isProgram bool
	program   Program
	lit       Value
	quoted    bool // true if this literal came from a quoted string: never coerced.
	present   bool // false for an omitted/empty optional argument.
}

func (a argValue) resolve(vars *Store) Value {
	if !a.present {
		return NullValue()
	}
	if a.isVar {
		return vars.Resolve(a.varName)
	}
	return a.lit
}

// resolveInt resolves a to an int64, allowing only exact-int values (no
// float->int coercion, matching spec §4.2's asymmetric coercion rule).
func (a argValue) resolveInt(rc *RunContext, argName string) (int64, error) {
	v := a.resolve(rc.Env.Vars)
	if i, ok := v.AsInt(); ok {
		return i, nil
	}
	return 0, fmt.Errorf("%s: expected int, got %s", argName, v.Kind)
}

// resolveFloat resolves a to a float64, allowing int->float coercion.
func (a argValue) resolveFloat(rc *RunContext, argName string) (float64, error) {
	v := a.resolve(rc.Env.Vars)
	if f, ok := v.AsFloat(); ok {
		return f, nil
	}
	return 0, fmt.Errorf("%s: expected number, got %s", argName, v.Kind)
}

// resolveString resolves a to a string. Bare symbol names (key("a")'s "a")
// are already Kind=String from parsing, so this also covers symbol
// arguments.
func (a argValue) resolveString(rc *RunContext, argName string) (string, error) {
	v := a.resolve(rc.Env.Vars)
	switch v.Kind {
	case KindString:
		return v.Str, nil
	case KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("%s: expected a value, got null", argName)
	}
}

// resolveSymbolCode resolves a symbol argument to a keycode via the macro's
// keyboard layout, allocating an unknown-symbol code on first use exactly
// like the rest of the system's layout resolution does.
func (a argValue) resolveSymbolCode(rc *RunContext, argName string) (uint16, error) {
	name, err := a.resolveString(rc, argName)
	if err != nil {
		return 0, err
	}
	if code, ok := rc.Env.Layout.Resolve(name); ok {
		return code, nil
	}
	return rc.Env.Layout.AllocateUnknown(name)
}
