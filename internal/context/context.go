// Package context implements the Mapping Context (spec §4.5): the glue
// object giving handlers and macros access to the listener registry,
// forwarders, and source-device metadata.
//
// Grounded on the Context class referenced throughout
// original_source/inputremapper/injection/mapping_handlers/combination_handler.py
// and tests/unit/test_macros.py, with the listener-registry pattern drawn
// from other_examples' in-memory pub/sub implementations
// (GoCodeAlone-modular's eventbus/memory.go and ghndrx-hearth's events/bus.go).
//
// Per spec §9's design note, Context owns handlers; listeners are held as
// weak handles (a token), never as owning back-pointers from handler to
// Context.
package context

import (
	"sync"

	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
)

// Listener is an awaitable callback registered by a suspended macro task
// (if_single) that wants to observe further events. It returns true once it
// needs no more events; Notify then deregisters it. Other listeners still
// receive the same event.
type Listener func(event eventmodel.InputEvent) bool

// ListenerToken is an opaque deregistration handle.
type ListenerToken uint64

// SourceDevice is the minimal upstream-source contract (spec §6): a leds()
// accessor plus a stable identity.
type SourceDevice interface {
	Hash() string
	Leds() map[uint16]bool
}

// Context bundles the pieces handlers and macros need: the set of source
// devices keyed by origin hash, the forwarder registry, and the listener
// registry.
type Context struct {
	mu sync.RWMutex

	sourceDevices map[string]SourceDevice
	forwarders    *forwarder.Registry

	listeners   map[ListenerToken]Listener
	nextToken   ListenerToken
}

// New constructs an empty Context wired to a forwarder registry.
func New(forwarders *forwarder.Registry) *Context {
	return &Context{
		sourceDevices: make(map[string]SourceDevice),
		forwarders:    forwarders,
		listeners:     make(map[ListenerToken]Listener),
	}
}

// RegisterSourceDevice makes a physical device's metadata (for if_capslock /
// if_numlock) available by its origin hash.
func (c *Context) RegisterSourceDevice(dev SourceDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sourceDevices[dev.Hash()] = dev
}

// SourceDevice looks up a registered device by origin hash.
func (c *Context) SourceDevice(hash string) (SourceDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dev, ok := c.sourceDevices[hash]
	return dev, ok
}

// ForwarderFor resolves a Forwarder by origin hash.
func (c *Context) ForwarderFor(origin string) (forwarder.Forwarder, error) {
	return c.forwarders.Get(origin)
}

// Forwarders exposes the underlying registry for callers (router.BuildChain)
// that need to hand it directly to a combination.Recognizer.
func (c *Context) Forwarders() *forwarder.Registry {
	return c.forwarders
}

// AddListener registers a callback for the lifetime of a suspended macro
// task and returns a token to deregister it with. The token is the only
// handle the caller keeps — Context does not hand back a reference the
// listener could use to reach back into the Context that owns it.
func (c *Context) AddListener(l Listener) ListenerToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.nextToken
	c.nextToken++
	c.listeners[token] = l
	return token
}

// RemoveListener deregisters a previously-added listener. Safe to call more
// than once for the same token.
func (c *Context) RemoveListener(token ListenerToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, token)
}

// Notify fans an event out to every currently registered listener, in no
// particular order, removing any that return true.
func (c *Context) Notify(event eventmodel.InputEvent) {
	c.mu.Lock()
	tokens := make([]ListenerToken, 0, len(c.listeners))
	for t := range c.listeners {
		tokens = append(tokens, t)
	}
	callbacks := make(map[ListenerToken]Listener, len(tokens))
	for _, t := range tokens {
		callbacks[t] = c.listeners[t]
	}
	c.mu.Unlock()

	// Stable order matters for listener fan-out but Go maps don't provide
	// one; callers that care about order (if_single wants "first match
	// wins") register at most one listener per suspended task, so this is
	// safe in practice.
	for token, l := range callbacks {
		if l(event) {
			c.RemoveListener(token)
		}
	}
}

// ListenerCount reports how many listeners are currently registered, used
// by tests asserting that suspended tasks clean up after themselves.
func (c *Context) ListenerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}
