package forwarder

import "testing"

func TestRegistryGetMissingOrigin(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nonexistent"); err == nil {
		t.Fatalf("expected error for unregistered origin")
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	mem := NewMemoryForwarder()
	r.Register("dev-a", mem)

	got, err := r.Get("dev-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != mem {
		t.Fatalf("expected registered forwarder back")
	}
}

func TestWriteReleaseRecordsEvent(t *testing.T) {
	mem := NewMemoryForwarder()
	if err := WriteRelease(mem, 1, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mem.Events) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(mem.Events))
	}
	ev := mem.Events[0]
	if ev.Type != 1 || ev.Code != 30 || ev.Value != 0 {
		t.Fatalf("unexpected recorded event: %+v", ev)
	}
}
