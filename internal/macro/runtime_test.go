package macro

import (
	stdctx "context"
	"testing"
	"time"

	"github.com/uplg/remapd/internal/eventmodel"
)

// TestCancelFlushesUnpairedKeyDown covers spec §5: cancelling a macro that
// pressed a key but never reached its key_up must release that key, the same
// prefix-key sweep the Recognizer performs in internal/combination's
// forwardRelease.
func TestCancelFlushesUnpairedKeyDown(t *testing.T) {
	rc, events := newTestRunContext(t)
	m := rc.Macro
	m.tasks = Program{&KeyDownTask{Symbol: mustLiteral("a")}, &HoldTask{}}
	m.PressTrigger()

	done := make(chan error, 1)
	go func() { done <- m.Run(stdctx.Background(), rc.Emit, rc.Env) }()

	time.Sleep(20 * time.Millisecond)
	m.Cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected Run to return the cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Cancel")
	}

	codeA, _ := rc.Env.Layout.Resolve("a")
	got := *events
	if len(got) != 2 {
		t.Fatalf("expected key_down(a) followed by a flushed release, got %+v", got)
	}
	if got[0] != (recordedEmit{eventmodel.EvKey, codeA, 1}) {
		t.Fatalf("expected key_down(a) first, got %+v", got)
	}
	if got[1] != (recordedEmit{eventmodel.EvKey, codeA, 0}) {
		t.Fatalf("expected cancel to flush a release for the still-held key, got %+v", got)
	}
}

// TestCancelWithoutHeldKeysIsANoop ensures flushing doesn't emit spurious
// releases when the macro completed a key_down/key_up pair before exiting.
func TestCancelWithoutHeldKeysIsANoop(t *testing.T) {
	rc, events := newTestRunContext(t)
	m := rc.Macro
	m.tasks = Program{&KeyTask{Symbol: mustLiteral("a")}}

	if err := m.Run(stdctx.Background(), rc.Emit, rc.Env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Cancel()

	if len(*events) != 2 {
		t.Fatalf("expected exactly the key(a) down/up pair, got %+v", *events)
	}
}
