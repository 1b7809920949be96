package device

import "testing"

func TestIsOwnDeviceMatchesCaseInsensitiveSubstring(t *testing.T) {
	cases := []struct {
		name     string
		prefixes []string
		want     bool
	}{
		{"remapd virtual keyboard", []string{"remapd"}, true},
		{"REMAPD Virtual Keyboard", []string{"remapd"}, true},
		{"Logitech K120", []string{"remapd"}, false},
		{"Logitech K120", nil, false},
		{"Logitech K120", []string{""}, false},
	}
	for _, c := range cases {
		if got := isOwnDevice(c.name, c.prefixes); got != c.want {
			t.Errorf("isOwnDevice(%q, %v) = %v, want %v", c.name, c.prefixes, got, c.want)
		}
	}
}

func TestDeviceLedObservationSnapshot(t *testing.T) {
	d := &Device{path: "/dev/input/event0", name: "test"}
	d.observeLed(0, 1)
	d.observeLed(1, 0)

	leds := d.Leds()
	if !leds[0] || leds[1] {
		t.Fatalf("expected led 0 on and led 1 off, got %+v", leds)
	}

	// The snapshot must be a copy: mutating it must not affect the device's
	// own state.
	leds[0] = false
	fresh := d.Leds()
	if !fresh[0] {
		t.Fatalf("expected Leds() to return a defensive copy, mutation leaked into device state")
	}
}
