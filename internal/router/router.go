// Package router builds one handler chain per configured mapping and
// dispatches incoming events through them (spec §4.8, the minimal
// "mapping parser" contract spec §1 excludes a full implementation of).
//
// Grounded on uplg-asahi-map/internal/handler/handler.go's
// ProcessEvents/handleEvent dispatch loop, generalized from a single
// hardcoded Option-key handler keyed on enabled/disabled state to building
// one eventmodel.Handler chain per config.MappingSpec.
package router

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/uplg/remapd/internal/combination"
	"github.com/uplg/remapd/internal/config"
	"github.com/uplg/remapd/internal/context"
	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
	"github.com/uplg/remapd/internal/layout"
	"github.com/uplg/remapd/internal/macro"
)

// directEmitHandler is the sub-handler used when a mapping has no macro
// text (spec §2's "direct code emitter" case): it re-emits the triggering
// event's own (type, code) pair, with the combination's activation value,
// onto the mapping's target uinput — e.g. remapping a combination held on
// one physical keyboard onto the equivalent key of a virtual device.
type directEmitHandler struct {
	fwd forwarder.Forwarder
}

func (d *directEmitHandler) Notify(event eventmodel.InputEvent, suppress bool) (bool, error) {
	if err := d.fwd.Write(event.Type, event.Code, event.Value); err != nil {
		return false, err
	}
	return true, d.fwd.Sync()
}

func (d *directEmitHandler) Reset() {}

// Chain is one mapping's built handler pipeline: a source filter (only
// events from origins the combination actually names are passed in) feeding
// a combination.Recognizer.
type Chain struct {
	mapping eventmodel.Mapping
	origins map[string]bool
	handler eventmodel.Handler
}

// BuildChain constructs the *source-filter -> combination.Recognizer ->
// sub-handler* pipeline for one mapping (spec §4.8). The sub-handler is
// either a direct key emitter (no macro text) or a compiled macro.Handler.
func BuildChain(m eventmodel.Mapping, ctx *context.Context, layoutTable *layout.KeyboardLayout, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = slog.Default()
	}

	targetFwd, err := ctx.ForwarderFor(m.TargetUinput)
	if err != nil {
		return nil, fmt.Errorf("router: building chain for %q: %w", m.TargetUinput, err)
	}

	var sub eventmodel.Handler
	if m.MacroText != "" {
		compiled, err := macro.Parse(m.MacroText)
		if err != nil {
			return nil, fmt.Errorf("router: parsing macro for %q: %w", m.TargetUinput, err)
		}
		emit := func(typ, code uint16, value int32) error {
			if err := targetFwd.Write(typ, code, value); err != nil {
				return err
			}
			return targetFwd.Sync()
		}
		env := &macro.Env{
			Vars:            sharedVars,
			Layout:          layoutTable,
			Context:         ctx,
			MacroKeySleepMs: orDefault(m.MacroKeySleepMs, eventmodel.DefaultMacroKeySleepMs),
			RelRate:         orDefault(m.RelRate, eventmodel.DefaultRelRate),
		}
		if len(m.Combination) > 0 {
			env.SourceOrigin = m.Combination[0].Origin
		}
		sub = macro.NewHandler(compiled, emit, env, logger)
	} else {
		sub = &directEmitHandler{fwd: targetFwd}
	}

	recognizer := combination.New(m.Combination, m.ReleaseCombinationKeys, sub, ctxForwarders(ctx), logger)

	origins := make(map[string]bool)
	for _, in := range m.Combination {
		if in.Origin != "" {
			origins[in.Origin] = true
		}
	}

	return &Chain{mapping: m, origins: origins, handler: recognizer}, nil
}

// ctxForwarders exposes the Context's internal forwarder registry to
// combination.New, which needs the *forwarder.Registry type directly for
// the release-forwarding sweep (spec §4.1.1).
func ctxForwarders(ctx *context.Context) *forwarder.Registry {
	return ctx.Forwarders()
}

// sharedVars is the one variable Store every macro chain built in this
// process reads and writes, so set() in one mapping's macro is visible to
// $name lookups in another's.
var sharedVars = macro.NewStore()

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Router holds one Chain per configured mapping and dispatches incoming
// events to the first one that absorbs them, in mapping order (spec §4.8).
type Router struct {
	mu          sync.RWMutex
	chains      []*Chain
	passthrough forwarder.Forwarder
	enabled     bool
}

// New builds an empty, enabled Router. passthrough is the sink unmatched
// events are forwarded to unchanged (spec §4.8's "unmatched events fall
// through to the passthrough forwarder").
func New(passthrough forwarder.Forwarder) *Router {
	return &Router{passthrough: passthrough, enabled: true}
}

// SetEnabled toggles remapping on or off: while disabled, every event is
// forwarded through the passthrough sink unchanged (the tray's "Enabled"
// toggle, grounded on uplg-asahi-map's Handler.SetEnabled).
func (r *Router) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// LoadPreset replaces the Router's chains with ones built from every
// mapping in p.
func (r *Router) LoadPreset(p *config.Preset, ctx *context.Context, layoutTable *layout.KeyboardLayout, logger *slog.Logger) error {
	chains := make([]*Chain, 0, len(p.Mappings))
	for _, spec := range p.Mappings {
		m, err := spec.ToMapping()
		if err != nil {
			return err
		}
		chain, err := BuildChain(m, ctx, layoutTable, logger)
		if err != nil {
			return err
		}
		chains = append(chains, chain)
	}

	r.mu.Lock()
	r.chains = chains
	r.mu.Unlock()
	return nil
}

// Dispatch feeds event through every built chain in mapping order; the
// first chain whose Recognizer absorbs it wins. An event whose origin
// device isn't named by any chain's combination is forwarded through
// unchanged via the passthrough sink.
func (r *Router) Dispatch(event eventmodel.InputEvent) error {
	r.mu.RLock()
	chains := r.chains
	enabled := r.enabled
	r.mu.RUnlock()

	if !enabled {
		return r.forwardPassthrough(event)
	}

	for _, chain := range chains {
		if len(chain.origins) > 0 && !chain.origins[event.OriginDeviceID] {
			continue
		}
		absorbed, err := chain.handler.Notify(event, false)
		if err != nil {
			return err
		}
		if absorbed {
			return nil
		}
	}

	return r.forwardPassthrough(event)
}

func (r *Router) forwardPassthrough(event eventmodel.InputEvent) error {
	if r.passthrough == nil {
		return nil
	}
	if err := r.passthrough.Write(event.Type, event.Code, event.Value); err != nil {
		return err
	}
	return r.passthrough.Sync()
}

// Reset calls Reset on every built chain's handler (spec §4.1.5's external
// reset, e.g. after a device regrab or a preset switch).
func (r *Router) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, chain := range r.chains {
		chain.handler.Reset()
	}
}
