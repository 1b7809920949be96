// Package eventmodel defines the normalized representation of input events
// and the user-facing combination configuration types built on top of them.
package eventmodel

import (
	"fmt"
	"time"
)

// Event types and codes mirror linux/input-event-codes.h. Only the subset the
// core cares about is named here; everything else passes through as raw
// uint16 values.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03
	EvLed = 0x11
)

// InputEvent is an immutable tuple describing one observed or synthesized
// input event. OriginDeviceID identifies the physical device it came from
// (empty for synthetic events emitted by a macro).
type InputEvent struct {
	Type            uint16
	Code            uint16
	Value           int32
	OriginDeviceID  string
	Timestamp       time.Time
	fromAxisHandler bool
}

// NewInputEvent builds an InputEvent with the current time.
func NewInputEvent(typ, code uint16, value int32, originDeviceID string) InputEvent {
	return InputEvent{
		Type:           typ,
		Code:           code,
		Value:          value,
		OriginDeviceID: originDeviceID,
		Timestamp:      time.Now(),
	}
}

// WithAxisOrigin marks the event as having been normalized from a typed axis
// (EV_ABS/EV_REL) handler, which affects InputMatchHash (§3).
func (e InputEvent) WithAxisOrigin() InputEvent {
	e.fromAxisHandler = true
	return e
}

// TypeAndCode is the (type, code) pair used to key release bookkeeping.
type TypeAndCode struct {
	Type uint16
	Code uint16
}

// TypeAndCode returns the (type, code) pair identifying this event's kind,
// independent of its origin device.
func (e InputEvent) TypeAndCode() TypeAndCode {
	return TypeAndCode{Type: e.Type, Code: e.Code}
}

// InputMatchHash is the identity key used by the Combination Recognizer to
// decide whether an event belongs to one of its InputConfigs. It combines
// type and code, and — when the event was normalized from a typed axis
// handler — a sign discriminator, so that e.g. the positive and negative
// directions of one absolute axis are distinguishable combination members.
type InputMatchHash struct {
	Type uint16
	Code uint16
	Sign int8
}

// InputMatchHash computes the identity key described in spec §3.
func (e InputEvent) InputMatchHash() InputMatchHash {
	h := InputMatchHash{Type: e.Type, Code: e.Code}
	if e.fromAxisHandler {
		switch {
		case e.Value > 0:
			h.Sign = 1
		case e.Value < 0:
			h.Sign = -1
		}
	}
	return h
}

// String renders an event for logging.
func (e InputEvent) String() string {
	return fmt.Sprintf("InputEvent(type=%d, code=%d, value=%d, origin=%q)", e.Type, e.Code, e.Value, e.OriginDeviceID)
}

// InputConfig is one element of a user combination.
type InputConfig struct {
	Type    uint16
	Code    uint16
	Analog  bool
	Origin  string // origin_hash: which physical device this config is bound to, if any
}

// NewInputConfig validates and constructs an InputConfig. Analog configs are
// rejected — they never appear in combinations (spec §3).
func NewInputConfig(typ, code uint16, analog bool, origin string) (InputConfig, error) {
	if analog {
		return InputConfig{}, fmt.Errorf("eventmodel: analog input config (type=%d code=%d) cannot appear in a combination", typ, code)
	}
	return InputConfig{Type: typ, Code: code, Analog: analog, Origin: origin}, nil
}

// TypeAndCode returns this config's (type, code) pair.
func (c InputConfig) TypeAndCode() TypeAndCode {
	return TypeAndCode{Type: c.Type, Code: c.Code}
}

// InputMatchHash returns the identity key this config contributes to a
// combination's pressed-state map. Configs never originate from an axis
// handler by construction (NewInputConfig rejects analog), so the sign
// discriminator is always zero here.
func (c InputConfig) InputMatchHash() InputMatchHash {
	return InputMatchHash{Type: c.Type, Code: c.Code}
}

// InputCombination is an ordered, non-empty sequence of InputConfigs. Order
// matters only for the release-forwarding sweep (§4.1.1); activation
// requires all of them held.
type InputCombination []InputConfig

// NewInputCombination validates that the combination is non-empty.
func NewInputCombination(configs ...InputConfig) (InputCombination, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("eventmodel: combination must have at least one key")
	}
	return InputCombination(configs), nil
}

// Mapping is a user-defined rule binding a combination to an output.
type Mapping struct {
	Combination InputCombination
	TargetUinput string
	MacroText    string

	ReleaseCombinationKeys bool
	MacroKeySleepMs        int
	RelRate                int
}

// DefaultMacroKeySleepMs is the teacher-style default inter-emission sleep
// used when a Mapping does not specify one.
const DefaultMacroKeySleepMs = 10

// DefaultRelRate is the default polling rate, in Hz, used for mouse/wheel
// macro tasks when a Mapping does not specify one.
const DefaultRelRate = 60

// Handler is the contract every component in a mapping's handler chain must
// honor (spec §6): observe an event, optionally under a suppress hint, and
// report whether it absorbed it. Handlers must also support reset().
type Handler interface {
	Notify(event InputEvent, suppress bool) (bool, error)
	Reset()
}
