// Package forwarder abstracts the virtual-device sink that mapping handler
// chains write synthetic events to. Grounded on
// uplg-asahi-map/internal/keyboard/output.go, generalized from a single
// fixed Option-key keyboard to the spec's abstract write+syn contract so
// both the Combination Recognizer and the Macro Engine can target it.
package forwarder

import "fmt"

// Forwarder is the abstract downstream sink (spec §6). write(type, code,
// value) stages one event; Sync() flushes a logical event group (an
// EV_SYN/SYN_REPORT on a real uinput device).
type Forwarder interface {
	Write(typ, code uint16, value int32) error
	Sync() error
}

// Registry keys forwarders by origin hash so the Combination Recognizer can
// route a release back through the same physical device's sink (spec §4.5).
type Registry struct {
	byOrigin map[string]Forwarder
}

// NewRegistry builds an empty forwarder registry.
func NewRegistry() *Registry {
	return &Registry{byOrigin: make(map[string]Forwarder)}
}

// Register binds a Forwarder to an origin hash.
func (r *Registry) Register(origin string, fwd Forwarder) {
	r.byOrigin[origin] = fwd
}

// Get returns the Forwarder for an origin hash, or an error if none is
// registered — the soft-failure path spec §7 calls for when an InputConfig
// has no usable origin_hash.
func (r *Registry) Get(origin string) (Forwarder, error) {
	fwd, ok := r.byOrigin[origin]
	if !ok {
		return nil, fmt.Errorf("forwarder: no forwarder registered for origin %q", origin)
	}
	return fwd, nil
}

// WriteRelease writes a single (type, code, 0) event followed by a sync —
// the release-bookkeeping helper the Combination Recognizer's
// _forward_release uses.
func WriteRelease(fwd Forwarder, typ, code uint16) error {
	if err := fwd.Write(typ, code, 0); err != nil {
		return err
	}
	return fwd.Sync()
}
