// Package combination implements the Combination Recognizer (spec §4.1): the
// state machine that tracks which keys of a user-defined combination are
// currently held, decides when the combination fires and unfires, and
// coordinates suppression/forwarding of the raw trigger events.
//
// Grounded line-for-line on
// original_source/inputremapper/injection/mapping_handlers/combination_handler.py.
package combination

import (
	"log/slog"

	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
)

// SubHandler is the downstream consumer a Recognizer notifies once its
// combination is fully held (or released). A direct key emitter and the
// macro runtime both satisfy this.
type SubHandler = eventmodel.Handler

// Recognizer is one CombinationHandler instance, owning the pressed-state
// map, activation snapshot, and release bookkeeping described in spec §3.
type Recognizer struct {
	combination eventmodel.InputCombination
	subHandler  SubHandler
	forwarders  *forwarder.Registry
	logger      *slog.Logger

	releaseCombinationKeys bool

	pressed      map[eventmodel.InputMatchHash]bool
	outputActive bool
	// requiresRelease is keyed by (type, code) only: the same code pressed
	// on two origin devices at once shares a single pending-release entry.
	requiresRelease map[eventmodel.TypeAndCode]bool

	handledHashes map[eventmodel.InputMatchHash]bool
}

// New constructs a Recognizer for one combination. subHandler receives the
// combination's activation/deactivation events; forwarders resolves origin
// hashes to release sinks for the prefix-key release sweep (§4.1.1).
func New(combo eventmodel.InputCombination, releaseCombinationKeys bool, subHandler SubHandler, forwarders *forwarder.Registry, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recognizer{
		combination:            combo,
		subHandler:              subHandler,
		forwarders:              forwarders,
		logger:                  logger,
		releaseCombinationKeys: releaseCombinationKeys,
		pressed:                 make(map[eventmodel.InputMatchHash]bool, len(combo)),
		requiresRelease:         make(map[eventmodel.TypeAndCode]bool),
		handledHashes:           make(map[eventmodel.InputMatchHash]bool, len(combo)),
	}
	for _, cfg := range combo {
		h := cfg.InputMatchHash()
		r.pressed[h] = false
		r.handledHashes[h] = true
	}
	return r
}

// Notify implements eventmodel.Handler / the four-branch decision table of
// spec §4.1.
func (r *Recognizer) Notify(event eventmodel.InputEvent, suppress bool) (bool, error) {
	hash := event.InputMatchHash()
	if !r.handledHashes[hash] {
		return false, nil
	}

	isPressed := event.Value == 1
	r.pressed[hash] = isPressed
	isActive := r.isActivated()
	changed := isActive != r.outputActive

	if changed {
		if isPressed {
			return r.handleFreshlyActivated(suppress, event)
		}
		return r.handleFreshlyDeactivated(event)
	}
	if isPressed {
		return r.handleNoChangePress(event), nil
	}
	return r.handleNoChangeRelease(event), nil
}

// handleFreshlyActivated implements spec §4.1.1.
func (r *Recognizer) handleFreshlyActivated(suppress bool, event eventmodel.InputEvent) (bool, error) {
	if suppress {
		return false, nil
	}

	if err := r.forwardRelease(); err != nil {
		r.logger.Error("combination: forwarding prefix-key releases failed", "error", err)
	}

	r.outputActive = event.Value != 0
	subResult, err := r.subHandler.Notify(event, suppress)
	if err != nil {
		return subResult, err
	}
	r.requireReleaseLater(!subResult, event)
	return subResult, nil
}

// handleFreshlyDeactivated implements spec §4.1.2. The suppress hint is
// ignored for deactivation to avoid stuck outputs (matches
// _handle_freshly_deactivated's comment in the original).
func (r *Recognizer) handleFreshlyDeactivated(event eventmodel.InputEvent) (bool, error) {
	r.outputActive = event.Value != 0
	if _, err := r.subHandler.Notify(event, false); err != nil {
		return false, err
	}
	return !r.shouldReleaseEvent(event), nil
}

// handleNoChangePress implements spec §4.1.3.
func (r *Recognizer) handleNoChangePress(event eventmodel.InputEvent) bool {
	r.requireReleaseLater(!r.outputActive, event)
	return r.outputActive
}

// handleNoChangeRelease implements spec §4.1.4.
func (r *Recognizer) handleNoChangeRelease(event eventmodel.InputEvent) bool {
	return !r.shouldReleaseEvent(event)
}

// shouldReleaseEvent consumes (pops) the pending-release bookkeeping for an
// event's (type, code) pair.
func (r *Recognizer) shouldReleaseEvent(event eventmodel.InputEvent) bool {
	tc := event.TypeAndCode()
	pending, ok := r.requiresRelease[tc]
	if !ok {
		return false
	}
	delete(r.requiresRelease, tc)
	return pending
}

func (r *Recognizer) requireReleaseLater(require bool, event eventmodel.InputEvent) {
	r.requiresRelease[event.TypeAndCode()] = require
}

func (r *Recognizer) isActivated() bool {
	for _, v := range r.pressed {
		if !v {
			return false
		}
	}
	return true
}

// forwardRelease sweeps the combination's own members (spec §4.1.1 step 1):
// any key still pressed whose release is owed gets a release written to its
// origin forwarder, so that downstream consumers never see a combination's
// prefix keys as stuck down while the combination's effect is active. This
// never runs for single-key combinations, or when ReleaseCombinationKeys is
// false.
func (r *Recognizer) forwardRelease() error {
	if len(r.pressed) == 1 || !r.releaseCombinationKeys {
		return nil
	}

	var firstErr error
	for _, cfg := range r.combination {
		if !r.pressed[cfg.InputMatchHash()] {
			continue
		}
		tc := cfg.TypeAndCode()
		if !r.requiresRelease[tc] {
			continue
		}

		if cfg.Origin == "" {
			r.logger.Error("combination: cannot forward release, input config has no origin", "type", cfg.Type, "code", cfg.Code)
			delete(r.requiresRelease, tc)
			continue
		}

		fwd, err := r.forwarders.Get(cfg.Origin)
		if err != nil {
			r.logger.Error("combination: no forwarder for origin", "origin", cfg.Origin, "error", err)
			delete(r.requiresRelease, tc)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := forwarder.WriteRelease(fwd, cfg.Type, cfg.Code); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
		delete(r.requiresRelease, tc)
	}
	return firstErr
}

// Reset implements spec §4.1.5: zero both maps, clear output_active, and
// recurse into the sub-handler.
func (r *Recognizer) Reset() {
	for h := range r.pressed {
		r.pressed[h] = false
	}
	r.requiresRelease = make(map[eventmodel.TypeAndCode]bool)
	r.outputActive = false
	r.subHandler.Reset()
}

// OutputActive reports whether the combination is currently considered held
// by its sub-handler. Exposed for tests verifying invariant I2.
func (r *Recognizer) OutputActive() bool {
	return r.outputActive
}
