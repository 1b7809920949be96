// Package layout resolves symbolic key names to evdev codes and allocates
// free codes for symbols the host keyboard layout does not know about.
//
// Grounded on uplg-asahi-map/internal/mappings/keycodes.go (the name<->code
// table) generalized with original_source/keymapper/state.py's
// SystemMapping.get_or_allocate free-code scan.
package layout

import (
	"fmt"
	"strings"
	"sync"
)

// DisableName is the reserved symbol meaning "this key does nothing".
const DisableName = "disable"

// DisableCode is the sentinel code bound to DisableName.
const DisableCode uint16 = 1000

// KeyboardLayout stores the name<->code table for one keyboard layout and
// tracks codes allocated on the fly for unknown symbols.
type KeyboardLayout struct {
	mu               sync.RWMutex
	nameToCode       map[string]uint16
	codeToName       map[uint16]string
	occupied         map[uint16]bool
	allocatedUnknown map[string]uint16
}

// New builds a KeyboardLayout pre-populated with the standard evdev
// KEY_*/BTN_* table plus the disable pseudo-key.
func New() *KeyboardLayout {
	kl := &KeyboardLayout{
		nameToCode:       make(map[string]uint16, len(standardKeyCodes)),
		codeToName:       make(map[uint16]string, len(standardKeyCodes)),
		occupied:         make(map[uint16]bool, len(standardKeyCodes)),
		allocatedUnknown: make(map[string]uint16),
	}
	for name, code := range standardKeyCodes {
		kl.set(name, code)
	}
	kl.set(DisableName, DisableCode)
	return kl
}

func (kl *KeyboardLayout) set(name string, code uint16) {
	name = strings.ToLower(name)
	kl.nameToCode[name] = code
	if _, exists := kl.codeToName[code]; !exists {
		kl.codeToName[code] = name
	}
	kl.occupied[code] = true
}

// Merge adds or overrides name->code bindings, e.g. from a device-specific
// overlay loaded at startup. Names are lowercased.
func (kl *KeyboardLayout) Merge(bindings map[string]uint16) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for name, code := range bindings {
		kl.set(name, code)
	}
}

// Resolve translates a symbolic name to its evdev code. Lookup is
// case-insensitive. Returns false if the name is not in the layout table;
// codes handed out by AllocateUnknown are not returned here.
func (kl *KeyboardLayout) Resolve(name string) (uint16, bool) {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	code, ok := kl.nameToCode[strings.ToLower(name)]
	return code, ok
}

// Name returns the symbolic name bound to a code, if any.
func (kl *KeyboardLayout) Name(code uint16) (string, bool) {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	name, ok := kl.codeToName[code]
	return name, ok
}

// AllocateUnknown returns a code to inject for a symbol unknown to the
// layout, allocating and remembering a free one (0..255) the first time it
// is seen. Mirrors SystemMapping.get_or_allocate.
func (kl *KeyboardLayout) AllocateUnknown(name string) (uint16, error) {
	name = strings.ToLower(name)

	kl.mu.Lock()
	defer kl.mu.Unlock()

	if code, ok := kl.nameToCode[name]; ok {
		return code, nil
	}
	if code, ok := kl.allocatedUnknown[name]; ok {
		return code, nil
	}

	for code := uint16(0); code < 256; code++ {
		if kl.occupied[code] {
			continue
		}
		kl.allocatedUnknown[name] = code
		kl.occupied[code] = true
		return code, nil
	}

	return 0, fmt.Errorf("layout: no free keycode available to allocate for %q", name)
}

// UnknownMappings returns a snapshot of symbols that were allocated a free
// code rather than found in the layout table.
func (kl *KeyboardLayout) UnknownMappings() map[string]uint16 {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	out := make(map[string]uint16, len(kl.allocatedUnknown))
	for k, v := range kl.allocatedUnknown {
		out[k] = v
	}
	return out
}
