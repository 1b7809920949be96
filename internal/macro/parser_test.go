package macro

import "testing"

func symbolNames(t *testing.T, task Task) []string {
	t.Helper()
	hk, ok := task.(*HoldKeysTask)
	if !ok {
		t.Fatalf("expected *HoldKeysTask, got %T", task)
	}
	names := make([]string, len(hk.Symbols))
	for i, s := range hk.Symbols {
		if s.isVar || s.quoted {
			t.Fatalf("expected a bare symbol literal at position %d", i)
		}
		names[i] = s.lit.Str
	}
	return names
}

// TestPlusSyntaxRoundTrip is invariant I4: "a+b+c" must parse to the same
// AST shape as "hold_keys(a,b,c)".
func TestPlusSyntaxRoundTrip(t *testing.T) {
	plus, err := Parse("a+b+c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	explicit, err := Parse("hold_keys(a,b,c)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plus.tasks) != 1 || len(explicit.tasks) != 1 {
		t.Fatalf("expected a single top-level task from each form")
	}

	got := symbolNames(t, plus.tasks[0])
	want := symbolNames(t, explicit.tasks[0])
	if len(got) != len(want) {
		t.Fatalf("symbol count mismatch: got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("symbol mismatch at %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestPlusSyntaxInsideCallIsNotRewritten(t *testing.T) {
	m, err := Parse("repeat(3, key(a+b))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.tasks) != 1 {
		t.Fatalf("expected one top-level task")
	}
	if _, ok := m.tasks[0].(*RepeatTask); !ok {
		t.Fatalf("expected *RepeatTask, got %T", m.tasks[0])
	}
}

func TestCommentStrippingIgnoresHashInsideQuotes(t *testing.T) {
	src := "set(msg, \"a # b\") # trailing comment\n.key(a)"
	m, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.tasks) != 2 {
		t.Fatalf("expected two tasks, got %d: %+v", len(m.tasks), m.tasks)
	}
	set, ok := m.tasks[0].(*SetTask)
	if !ok {
		t.Fatalf("expected *SetTask, got %T", m.tasks[0])
	}
	if set.Value.lit.Str != "a # b" {
		t.Fatalf("expected quoted '#' to survive comment stripping, got %q", set.Value.lit.Str)
	}
}

func TestDotChainParsesSequentialTasks(t *testing.T) {
	m, err := Parse("key(a).key(b).key(c)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.tasks) != 3 {
		t.Fatalf("expected 3 chained tasks, got %d", len(m.tasks))
	}
}

func TestUnknownTaskNameIsAParseError(t *testing.T) {
	_, err := Parse("frobnicate(a)")
	if err == nil {
		t.Fatalf("expected an error for an unknown task name")
	}
}

func TestUnbalancedBracketIsAParseError(t *testing.T) {
	_, err := Parse("key(a")
	if err == nil {
		t.Fatalf("expected an error for an unbalanced bracket")
	}
}

func TestHoldKeysRejectsNamedArguments(t *testing.T) {
	_, err := Parse("hold_keys(a, b=c)")
	if err == nil {
		t.Fatalf("expected an error: hold_keys does not accept named arguments")
	}
}

func TestIfEqAndLegacyIfEqParse(t *testing.T) {
	m, err := Parse(`if_eq($a, 1, key(x), key(y))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task, ok := m.tasks[0].(*IfEqTask)
	if !ok {
		t.Fatalf("expected *IfEqTask, got %T", m.tasks[0])
	}
	if !task.A.isVar || task.A.varName != "a" {
		t.Fatalf("expected first argument to be $a, got %+v", task.A)
	}

	m2, err := Parse(`ifeq(a, 1, key(x), key(y))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task2, ok := m2.tasks[0].(*IfEqTask)
	if !ok {
		t.Fatalf("expected *IfEqTask, got %T", m2.tasks[0])
	}
	if !task2.A.isVar || task2.A.varName != "a" {
		t.Fatalf("expected ifeq's bare name to bind as a variable reference, got %+v", task2.A)
	}
}

func TestNamedArgumentBinding(t *testing.T) {
	m, err := Parse(`wait(min=10, max=20)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task, ok := m.tasks[0].(*WaitTask)
	if !ok {
		t.Fatalf("expected *WaitTask, got %T", m.tasks[0])
	}
	if task.Min.lit.Int != 10 || task.Max.lit.Int != 20 {
		t.Fatalf("expected named arguments to bind by name, got min=%+v max=%+v", task.Min, task.Max)
	}
}

func TestDuplicateArgumentIsAParseError(t *testing.T) {
	_, err := Parse(`wait(10, min=20)`)
	if err == nil {
		t.Fatalf("expected an error: min given both positionally and by name")
	}
}
