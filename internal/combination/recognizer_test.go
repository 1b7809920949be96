package combination

import (
	"testing"

	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
)

// keyEmitter is a minimal SubHandler that emits a fixed output key down/up
// into a MemoryForwarder and always absorbs the event, used to exercise the
// Recognizer the way a direct key mapping's sub-handler would.
type keyEmitter struct {
	code uint16
	out  *forwarder.MemoryForwarder
}

func (k *keyEmitter) Notify(event eventmodel.InputEvent, suppress bool) (bool, error) {
	if err := k.out.Write(eventmodel.EvKey, k.code, event.Value); err != nil {
		return false, err
	}
	return true, k.out.Sync()
}

func (k *keyEmitter) Reset() {}

const xCode uint16 = 45 // KEY_X

func twoKeyRecognizer(t *testing.T) (*Recognizer, eventmodel.InputConfig, eventmodel.InputConfig, *forwarder.MemoryForwarder, *forwarder.MemoryForwarder) {
	t.Helper()
	cfgA, err := eventmodel.NewInputConfig(eventmodel.EvKey, 30, false, "dev1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfgB, err := eventmodel.NewInputConfig(eventmodel.EvKey, 48, false, "dev1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	combo, err := eventmodel.NewInputCombination(cfgA, cfgB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	releaseSink := forwarder.NewMemoryForwarder()
	registry := forwarder.NewRegistry()
	registry.Register("dev1", releaseSink)

	outSink := forwarder.NewMemoryForwarder()
	sub := &keyEmitter{code: xCode, out: outSink}

	r := New(combo, true, sub, registry, nil)
	return r, cfgA, cfgB, releaseSink, outSink
}

// passthroughWrite simulates what the upstream router does when Notify
// returns "not absorbed": forward the raw event to the physical-passthrough
// sink, which in these tests is the same MemoryForwarder the release sweep
// writes to, so the combined trace can be asserted in arrival order.
func passthroughWrite(t *testing.T, sink *forwarder.MemoryForwarder, ev eventmodel.InputEvent) {
	t.Helper()
	if err := sink.Write(ev.Type, ev.Code, ev.Value); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestScenarioTwoKeyCombinationPrefixForwarded implements spec §8 scenario 1.
func TestScenarioTwoKeyCombinationPrefixForwarded(t *testing.T) {
	r, cfgA, cfgB, sink, outSink := twoKeyRecognizer(t)

	aDown := eventmodel.NewInputEvent(cfgA.Type, cfgA.Code, 1, "dev1")
	absorbed, err := r.Notify(aDown, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if absorbed {
		t.Fatalf("expected A-down to be forwarded (not absorbed) before the combination is fully held")
	}
	passthroughWrite(t, sink, aDown)

	bDown := eventmodel.NewInputEvent(cfgB.Type, cfgB.Code, 1, "dev1")
	absorbed, err = r.Notify(bDown, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !absorbed {
		t.Fatalf("expected B-down to be absorbed once the combination activates")
	}

	bUp := eventmodel.NewInputEvent(cfgB.Type, cfgB.Code, 0, "dev1")
	absorbed, err = r.Notify(bUp, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !absorbed {
		t.Fatalf("expected B-up to be absorbed")
	}

	aUp := eventmodel.NewInputEvent(cfgA.Type, cfgA.Code, 0, "dev1")
	absorbed, err = r.Notify(aUp, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !absorbed {
		t.Fatalf("expected A-up to be absorbed (its release was already emitted by the activation sweep)")
	}

	// The sink holds the passthrough A-down, then the activation sweep's
	// release of A.
	wantSink := []forwarder.RecordedEvent{
		{Type: cfgA.Type, Code: cfgA.Code, Value: 1},
		{Type: cfgA.Type, Code: cfgA.Code, Value: 0},
	}
	if len(sink.Events) != len(wantSink) || sink.Events[0] != wantSink[0] || sink.Events[1] != wantSink[1] {
		t.Fatalf("expected forwarded A-down followed by exactly one release of A from the activation sweep, got %+v", sink.Events)
	}

	wantOut := []forwarder.RecordedEvent{
		{Type: eventmodel.EvKey, Code: xCode, Value: 1},
		{Type: eventmodel.EvKey, Code: xCode, Value: 0},
	}
	if len(outSink.Events) != len(wantOut) {
		t.Fatalf("expected sub-handler trace %+v, got %+v", wantOut, outSink.Events)
	}
	for i, ev := range wantOut {
		if outSink.Events[i] != ev {
			t.Fatalf("sub-handler trace mismatch at %d: want %+v got %+v", i, ev, outSink.Events[i])
		}
	}
}

// TestInvariantI1ReleaseBalance exercises the single-key case across many
// press/release cycles and checks no release is ever both absorbed and
// forwarded, nor dropped entirely.
func TestInvariantI1ReleaseBalance(t *testing.T) {
	cfg, _ := eventmodel.NewInputConfig(eventmodel.EvKey, 30, false, "dev1")
	combo, _ := eventmodel.NewInputCombination(cfg)
	registry := forwarder.NewRegistry()
	registry.Register("dev1", forwarder.NewMemoryForwarder())
	outSink := forwarder.NewMemoryForwarder()
	sub := &keyEmitter{code: xCode, out: outSink}
	r := New(combo, true, sub, registry, nil)

	for i := 0; i < 5; i++ {
		down := eventmodel.NewInputEvent(cfg.Type, cfg.Code, 1, "dev1")
		absorbedDown, err := r.Notify(down, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		up := eventmodel.NewInputEvent(cfg.Type, cfg.Code, 0, "dev1")
		absorbedUp, err := r.Notify(up, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if absorbedDown != absorbedUp {
			t.Fatalf("cycle %d: expected press/release absorption to match (both forwarded or both absorbed), got down=%v up=%v", i, absorbedDown, absorbedUp)
		}
	}
}

// TestInvariantI2ActivationMonotonicity checks that the sub-handler is
// notified exactly once per activation transition.
func TestInvariantI2ActivationMonotonicity(t *testing.T) {
	r, cfgA, cfgB, _, outSink := twoKeyRecognizer(t)

	aDown := eventmodel.NewInputEvent(cfgA.Type, cfgA.Code, 1, "dev1")
	if _, err := r.Notify(aDown, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.OutputActive() {
		t.Fatalf("combination should not be active with only one key held")
	}

	bDown := eventmodel.NewInputEvent(cfgB.Type, cfgB.Code, 1, "dev1")
	if _, err := r.Notify(bDown, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.OutputActive() {
		t.Fatalf("combination should be active once both keys are held")
	}
	if len(outSink.Events) != 1 {
		t.Fatalf("expected exactly one sub-handler notification for the activation transition, got %d", len(outSink.Events))
	}
}

// TestInvariantI3ResetIdempotence checks reset() twice equals reset() once.
func TestInvariantI3ResetIdempotence(t *testing.T) {
	r, cfgA, cfgB, _, _ := twoKeyRecognizer(t)

	aDown := eventmodel.NewInputEvent(cfgA.Type, cfgA.Code, 1, "dev1")
	bDown := eventmodel.NewInputEvent(cfgB.Type, cfgB.Code, 1, "dev1")
	if _, err := r.Notify(aDown, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Notify(bDown, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Reset()
	firstPressed := snapshotPressed(r)
	firstRequires := len(r.requiresRelease)
	firstActive := r.OutputActive()

	r.Reset()
	secondPressed := snapshotPressed(r)
	secondActive := r.OutputActive()

	if firstActive != false || secondActive != false {
		t.Fatalf("expected output_active false after reset, got first=%v second=%v", firstActive, secondActive)
	}
	if firstRequires != 0 || len(r.requiresRelease) != 0 {
		t.Fatalf("expected requires_release cleared after reset")
	}
	for h, v := range firstPressed {
		if secondPressed[h] != v {
			t.Fatalf("pressed map changed between successive resets: %v vs %v", firstPressed, secondPressed)
		}
	}
}

func snapshotPressed(r *Recognizer) map[eventmodel.InputMatchHash]bool {
	out := make(map[eventmodel.InputMatchHash]bool, len(r.pressed))
	for k, v := range r.pressed {
		out[k] = v
	}
	return out
}

func TestUnrelatedEventNotAbsorbed(t *testing.T) {
	r, _, _, _, _ := twoKeyRecognizer(t)
	other := eventmodel.NewInputEvent(eventmodel.EvKey, 99, 1, "dev1")
	absorbed, err := r.Notify(other, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if absorbed {
		t.Fatalf("expected an event outside the combination to never be absorbed")
	}
}

func TestSuppressHintOnFreshActivation(t *testing.T) {
	r, cfgA, cfgB, _, outSink := twoKeyRecognizer(t)
	aDown := eventmodel.NewInputEvent(cfgA.Type, cfgA.Code, 1, "dev1")
	if _, err := r.Notify(aDown, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bDown := eventmodel.NewInputEvent(cfgB.Type, cfgB.Code, 1, "dev1")
	absorbed, err := r.Notify(bDown, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if absorbed {
		t.Fatalf("expected suppress hint to short-circuit fresh activation with no side effects")
	}
	if len(outSink.Events) != 0 {
		t.Fatalf("expected no sub-handler notification when suppress is set on fresh activation")
	}
}
