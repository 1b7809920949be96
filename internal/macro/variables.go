package macro

import (
	"fmt"
	"sync"
)

// Store is the process-wide (here: cross-goroutine, see DESIGN.md's Open
// Question decision) variable table backing set()/add() and $name lookups.
// All macros running in this process share one Store, the way
// original_source/keymapper/state.py's SystemMapping is shared process-wide.
type Store struct {
	mu     sync.RWMutex
	values map[string]Value
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// Get returns the current value of name, or (Null, false) if unset. A
// lookup of an unset name never errors — reading null is the documented
// behavior for a variable nothing has set() yet.
func (s *Store) Get(name string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Resolve is like Get but returns NullValue() for an unset name instead of
// a boolean, which is what if_eq/ifeq want: an unset variable reads as null,
// and null equals null.
func (s *Store) Resolve(name string) Value {
	v, ok := s.Get(name)
	if !ok {
		return NullValue()
	}
	return v
}

// Set overwrites name unconditionally, matching set()'s semantics: quoted
// literals are always stored as strings, unquoted literals keep whatever
// Kind the parser already settled on (int, then float, then string).
func (s *Store) Set(name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

// Add implements add(name, number): numeric in-place increment. If name is
// unset, it is initialized to delta. If name holds a non-numeric value, the
// variable is left unchanged and an error is returned for the caller to log
// (add() never panics or aborts the macro over a type mismatch).
func (s *Store) Add(name string, delta Value) error {
	deltaF, deltaOK := delta.AsFloat()
	if !deltaOK {
		return fmt.Errorf("add(%s, ...): delta must be numeric, got %s", name, delta.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.values[name]
	if !ok {
		s.values[name] = delta
		return nil
	}

	existingF, existingOK := existing.AsFloat()
	if !existingOK {
		return fmt.Errorf("add(%s, ...): variable holds non-numeric value %s, left unchanged", name, existing.Kind)
	}

	if existing.Kind == KindInt && delta.Kind == KindInt {
		s.values[name] = IntValue(existing.Int + delta.Int)
		return nil
	}
	s.values[name] = FloatValue(existingF + deltaF)
	return nil
}

// Clear empties the store. Used by tests to isolate cases from each other;
// production code never calls this since the store is meant to outlive any
// one macro run.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]Value)
}
