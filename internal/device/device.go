// Package device discovers physical input devices, grabs/releases them for
// exclusive capture, and tracks the small bits of per-device state (LED
// indicators) the macro engine's if_capslock()/if_numlock() need.
//
// This is the "external collaborator" spec §1 excludes from the core's
// contract: device discovery, grouping, and hot-plug are not part of the
// Combination Recognizer / Macro Engine themselves, but a complete remapping
// daemon needs a concrete implementation of it, so one lives here.
//
// Grounded on uplg-asahi-map's internal/keyboard/device.go (DeviceManager,
// FindKeyboards/Grab/Release/ReadEvents shape) and
// original_source/keymapper/getdevices.py's _GetDevices (grouping physically
// related event nodes — keyboard + its vendor-specific consumer-control node
// — under one logical group so a single combination can span them), using
// github.com/holoplot/go-evdev as the teacher does.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	evdev "github.com/holoplot/go-evdev"

	"github.com/uplg/remapd/internal/eventmodel"
)

// Device wraps one open evdev input node, tracking the LED state reported
// back to it (spec §6: if_capslock/if_numlock read LED state the device
// itself reports, this process never asserts it).
type Device struct {
	path   string
	name   string
	phys   string
	raw    *evdev.InputDevice

	mu   sync.RWMutex
	leds map[uint16]bool
}

// Path is the /dev/input/eventN node this device was opened from.
func (d *Device) Path() string { return d.path }

// Name is the device's kernel-reported name.
func (d *Device) Name() string { return d.name }

// Hash is the stable origin identity used throughout eventmodel.InputConfig
// and the forwarder registry: the device path is stable across a session
// (spec §6 leaves the identity scheme to this collaborator).
func (d *Device) Hash() string { return d.path }

// Leds implements context.SourceDevice: a snapshot of the LED bits most
// recently reported by the kernel for this device.
func (d *Device) Leds() map[uint16]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uint16]bool, len(d.leds))
	for k, v := range d.leds {
		out[k] = v
	}
	return out
}

func (d *Device) observeLed(code uint16, value int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.leds == nil {
		d.leds = make(map[uint16]bool)
	}
	d.leds[code] = value != 0
}

// Grab takes exclusive control of the device so no other process (including
// the kernel's normal input dispatch) also sees its raw events.
func (d *Device) Grab() error {
	if err := d.raw.Grab(); err != nil {
		return fmt.Errorf("grabbing device %s: %w", d.path, err)
	}
	return nil
}

// Release gives up exclusive control.
func (d *Device) Release() error {
	if err := d.raw.Ungrab(); err != nil {
		return fmt.Errorf("releasing device %s: %w", d.path, err)
	}
	return nil
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	return d.raw.Close()
}

// ReadLoop reads raw events from the device until ctx is cancelled or the
// device disconnects, calling onEvent for every event and updating the
// device's own LED-state snapshot for EV_LED reports.
func (d *Device) ReadLoop(ctx context.Context, onEvent func(eventmodel.InputEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := d.raw.ReadOne()
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("device disconnected: %s", d.path)
			}
			return fmt.Errorf("reading event from %s: %w", d.path, err)
		}

		if ev.Type == evdev.EV_LED {
			d.observeLed(uint16(ev.Code), ev.Value)
		}
		onEvent(eventmodel.NewInputEvent(uint16(ev.Type), uint16(ev.Code), ev.Value, d.path))
	}
}

// Group is a set of device nodes the discovery phase considers part of the
// same physical product (e.g. a keyboard's main event node plus its
// vendor-specific consumer-control node), grounded on getdevices.py's
// grouping-by-USB-phys-path behavior.
type Group struct {
	Name    string
	Devices []*Device
}

// Manager discovers, opens, and owns the lifetime of physical input
// devices.
type Manager struct {
	mu      sync.Mutex
	devices map[string]*Device
	logger  *slog.Logger
}

// NewManager builds an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{devices: make(map[string]*Device), logger: logger}
}

// Discover scans /dev/input/event* for devices exposing key events, skipping
// anything this process itself created (a defensive check against
// double-grabbing a virtual output device) and groups them by physical
// origin the way getdevices.py's _GetDevices does.
func (m *Manager) Discover(ownNamePrefixes ...string) ([]*Group, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("globbing input devices: %w", err)
	}
	sort.Strings(matches)

	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make(map[string]*Group)
	var order []string

	for _, path := range matches {
		raw, err := evdev.Open(path)
		if err != nil {
			m.logger.Debug("cannot open input device", "path", path, "error", err)
			continue
		}
		name, err := raw.Name()
		if err != nil {
			raw.Close()
			continue
		}
		if isOwnDevice(name, ownNamePrefixes) {
			raw.Close()
			continue
		}
		if !hasKeyCapability(raw) {
			raw.Close()
			continue
		}

		phys, _ := raw.Phys()
		groupKey := phys
		if groupKey == "" {
			groupKey = name
		}

		dev := &Device{path: path, name: name, phys: phys, raw: raw, leds: make(map[uint16]bool)}
		m.devices[path] = dev

		g, ok := groups[groupKey]
		if !ok {
			g = &Group{Name: name}
			groups[groupKey] = g
			order = append(order, groupKey)
		}
		g.Devices = append(g.Devices, dev)

		m.logger.Info("found input device", "name", name, "path", path, "group", groupKey)
	}

	out := make([]*Group, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out, nil
}

func isOwnDevice(name string, prefixes []string) bool {
	lower := strings.ToLower(name)
	for _, p := range prefixes {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func hasKeyCapability(dev *evdev.InputDevice) bool {
	for _, t := range dev.CapableTypes() {
		if t != evdev.EV_KEY {
			continue
		}
		for _, code := range dev.CapableEvents(evdev.EV_KEY) {
			if code >= 30 && code <= 52 { // KEY_A..KEY_DOT (home and bottom letter rows), excludes single-button devices like power buttons
				return true
			}
		}
	}
	return false
}

// Close closes every device the Manager has opened.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		d.Close()
	}
	m.devices = make(map[string]*Device)
}
