package macro

import (
	stdctx "context"
	"sync"
	"testing"
	"time"

	"github.com/uplg/remapd/internal/context"
	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
	"github.com/uplg/remapd/internal/layout"
)

// funcTask adapts a plain function to the Task interface for test branches.
type funcTask func(rc *RunContext) error

func (f funcTask) Run(rc *RunContext) error { return f(rc) }

type recordedEmit struct {
	Type, Code uint16
	Value      int32
}

func newTestRunContext(t *testing.T) (*RunContext, *[]recordedEmit) {
	t.Helper()
	var mu sync.Mutex
	var events []recordedEmit
	emit := func(typ, code uint16, value int32) error {
		mu.Lock()
		events = append(events, recordedEmit{typ, code, value})
		mu.Unlock()
		return nil
	}
	env := &Env{
		Vars:            NewStore(),
		Layout:          layout.New(),
		Context:         context.New(forwarder.NewRegistry()),
		SourceOrigin:    "dev1",
		MacroKeySleepMs: 1,
		RelRate:         60,
	}
	m := NewMacro(nil)
	rc := &RunContext{Std: stdctx.Background(), Emit: emit, Macro: m, Env: env}
	return rc, &events
}

func mustLiteral(s string) argValue {
	v, err := parseScalarArg(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestHoldKeysPressAndReleaseOrder(t *testing.T) {
	rc, events := newTestRunContext(t)
	task := &HoldKeysTask{Symbols: []argValue{mustLiteral("a"), mustLiteral("b"), mustLiteral("c")}}

	rc.Macro.PressTrigger()
	done := make(chan error, 1)
	go func() { done <- task.Run(rc) }()

	time.Sleep(10 * time.Millisecond)
	rc.Macro.ReleaseTrigger()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	codeA, _ := rc.Env.Layout.Resolve("a")
	codeB, _ := rc.Env.Layout.Resolve("b")
	codeC, _ := rc.Env.Layout.Resolve("c")
	want := []recordedEmit{
		{eventmodel.EvKey, codeA, 1},
		{eventmodel.EvKey, codeB, 1},
		{eventmodel.EvKey, codeC, 1},
		{eventmodel.EvKey, codeC, 0},
		{eventmodel.EvKey, codeB, 0},
		{eventmodel.EvKey, codeA, 0},
	}
	got := *events
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d mismatch: want %+v got %+v", i, want[i], got[i])
		}
	}
}

// TestHoldKeysAtomicOnResolutionFailure matches test_macros.py's hold_keys
// atomicity guarantee: if any symbol fails to resolve, nothing is emitted at
// all, not even for the symbols that would have resolved fine.
func TestHoldKeysAtomicOnResolutionFailure(t *testing.T) {
	rc, events := newTestRunContext(t)
	task := &HoldKeysTask{Symbols: []argValue{
		{present: true, isVar: true, varName: "missing"},
		mustLiteral("a"),
	}}

	if err := task.Run(rc); err == nil {
		t.Fatalf("expected an error resolving an unset variable symbol")
	}
	if len(*events) != 0 {
		t.Fatalf("expected no events emitted when any symbol fails to resolve, got %+v", *events)
	}
}

func TestModifyAlwaysReleasesEvenOnChildError(t *testing.T) {
	rc, events := newTestRunContext(t)
	boom := funcTask(func(rc *RunContext) error { return &ParseError{Msg: "boom"} })
	task := &ModifyTask{Symbol: mustLiteral("a"), Child: argValue{present: true, isProgram: true, program: Program{boom}}}

	if err := task.Run(rc); err == nil {
		t.Fatalf("expected the child's error to propagate")
	}
	codeA, _ := rc.Env.Layout.Resolve("a")
	want := []recordedEmit{{eventmodel.EvKey, codeA, 1}, {eventmodel.EvKey, codeA, 0}}
	got := *events
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected the modifier key to always be released, got %+v", got)
	}
}

func TestRepeatRunsChildExactlyN(t *testing.T) {
	rc, events := newTestRunContext(t)
	task := &RepeatTask{
		Count: mustLiteral("3"),
		Child: argValue{present: true, isProgram: true, program: Program{&KeyDownTask{Symbol: mustLiteral("a")}}},
	}
	if err := task.Run(rc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*events) != 3 {
		t.Fatalf("expected 3 key_down emissions, got %d", len(*events))
	}
}

func TestIfTapRunsThenWithinTimeout(t *testing.T) {
	rc, _ := newTestRunContext(t)
	rc.Macro.PressTrigger()

	var ran string
	then := Program{funcTask(func(rc *RunContext) error { ran = "then"; return nil })}
	els := Program{funcTask(func(rc *RunContext) error { ran = "else"; return nil })}
	task := &IfTapTask{Then: then, Else: els, Timeout: mustLiteral("100")}

	done := make(chan error, 1)
	go func() { done <- task.Run(rc) }()
	time.Sleep(20 * time.Millisecond)
	rc.Macro.ReleaseTrigger()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "then" {
		t.Fatalf("expected the tap (release within timeout) to run 'then', ran %q", ran)
	}
}

func TestIfTapRunsElseOnTimeout(t *testing.T) {
	rc, _ := newTestRunContext(t)
	rc.Macro.PressTrigger()

	var ran string
	then := Program{funcTask(func(rc *RunContext) error { ran = "then"; return nil })}
	els := Program{funcTask(func(rc *RunContext) error { ran = "else"; return nil })}
	task := &IfTapTask{Then: then, Else: els, Timeout: mustLiteral("20")}

	if err := task.Run(rc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "else" {
		t.Fatalf("expected exceeding the timeout to run 'else', ran %q", ran)
	}
}

// TestIfTapPressAfterRunStarts covers the trigger press arriving only after
// the task has started waiting for it. The press-before-run case is
// TestIfTapRunsThenWithinTimeout.
func TestIfTapPressAfterRunStarts(t *testing.T) {
	rc, _ := newTestRunContext(t)

	var ran string
	then := Program{funcTask(func(rc *RunContext) error { ran = "then"; return nil })}
	els := Program{funcTask(func(rc *RunContext) error { ran = "else"; return nil })}
	task := &IfTapTask{Then: then, Else: els, Timeout: mustLiteral("100")}

	done := make(chan error, 1)
	go func() { done <- task.Run(rc) }()

	time.Sleep(10 * time.Millisecond)
	rc.Macro.PressTrigger()
	time.Sleep(10 * time.Millisecond)
	rc.Macro.ReleaseTrigger()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "then" {
		t.Fatalf("expected a tap even though the press arrived after run() started, ran %q", ran)
	}
}

func TestIfSingleElseOnOtherKeyPress(t *testing.T) {
	rc, _ := newTestRunContext(t)
	rc.Macro.PressTrigger()

	var ran string
	then := Program{funcTask(func(rc *RunContext) error { ran = "then"; return nil })}
	els := Program{funcTask(func(rc *RunContext) error { ran = "else"; return nil })}
	task := &IfSingleTask{Then: then, Else: els, Timeout: mustLiteral("200")}

	done := make(chan error, 1)
	go func() { done <- task.Run(rc) }()

	time.Sleep(10 * time.Millisecond)
	// A release event from another key must be ignored.
	rc.Env.Context.Notify(eventmodel.NewInputEvent(eventmodel.EvKey, 99, 0, "dev1"))
	// Axis motion must be ignored too.
	rc.Env.Context.Notify(eventmodel.NewInputEvent(eventmodel.EvAbs, 0, 5, "dev1"))
	time.Sleep(5 * time.Millisecond)
	// A genuine press of another key breaks "single".
	rc.Env.Context.Notify(eventmodel.NewInputEvent(eventmodel.EvKey, 99, 1, "dev1"))

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "else" {
		t.Fatalf("expected another key's press to break 'single', ran %q", ran)
	}
}

func TestIfSingleThenOnOwnRelease(t *testing.T) {
	rc, _ := newTestRunContext(t)
	rc.Macro.PressTrigger()

	var ran string
	then := Program{funcTask(func(rc *RunContext) error { ran = "then"; return nil })}
	els := Program{funcTask(func(rc *RunContext) error { ran = "else"; return nil })}
	task := &IfSingleTask{Then: then, Else: els, Timeout: mustLiteral("200")}

	done := make(chan error, 1)
	go func() { done <- task.Run(rc) }()
	time.Sleep(10 * time.Millisecond)
	rc.Macro.ReleaseTrigger()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "then" {
		t.Fatalf("expected releasing before any other key press to run 'then', ran %q", ran)
	}
	if rc.Env.Context.ListenerCount() != 0 {
		t.Fatalf("expected if_single to deregister its listener after completing")
	}
}

func TestIfEqTaskStrictEquality(t *testing.T) {
	rc, _ := newTestRunContext(t)
	rc.Env.Vars.Set("a", StringValue("1"))

	var ran string
	then := Program{funcTask(func(rc *RunContext) error { ran = "then"; return nil })}
	els := Program{funcTask(func(rc *RunContext) error { ran = "else"; return nil })}
	task := &IfEqTask{A: argValue{present: true, isVar: true, varName: "a"}, B: mustLiteral("1"), Then: then, Else: els}

	if err := task.Run(rc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "else" {
		t.Fatalf("expected string \"1\" to not equal int 1 with no coercion, ran %q", ran)
	}
}
