package context

import (
	"testing"

	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
)

func TestAddRemoveListener(t *testing.T) {
	c := New(forwarder.NewRegistry())

	var calls int
	token := c.AddListener(func(event eventmodel.InputEvent) bool {
		calls++
		return false
	})

	c.Notify(eventmodel.NewInputEvent(eventmodel.EvKey, 1, 1, "dev"))
	if calls != 1 {
		t.Fatalf("expected listener called once, got %d", calls)
	}

	c.RemoveListener(token)
	c.Notify(eventmodel.NewInputEvent(eventmodel.EvKey, 1, 1, "dev"))
	if calls != 1 {
		t.Fatalf("expected listener not called after removal, got %d total calls", calls)
	}
}

func TestListenerSelfRemovesOnStop(t *testing.T) {
	c := New(forwarder.NewRegistry())
	c.AddListener(func(event eventmodel.InputEvent) bool {
		return true
	})
	if c.ListenerCount() != 1 {
		t.Fatalf("expected one listener registered")
	}
	c.Notify(eventmodel.NewInputEvent(eventmodel.EvKey, 1, 1, "dev"))
	if c.ListenerCount() != 0 {
		t.Fatalf("expected listener to deregister itself after returning true")
	}
}

type fakeDevice struct {
	hash string
	leds map[uint16]bool
}

func (f fakeDevice) Hash() string            { return f.hash }
func (f fakeDevice) Leds() map[uint16]bool { return f.leds }

func TestSourceDeviceRegistration(t *testing.T) {
	c := New(forwarder.NewRegistry())
	c.RegisterSourceDevice(fakeDevice{hash: "dev-1", leds: map[uint16]bool{0: true}})

	dev, ok := c.SourceDevice("dev-1")
	if !ok {
		t.Fatalf("expected device to be found")
	}
	if !dev.Leds()[0] {
		t.Fatalf("expected led state preserved")
	}
}
