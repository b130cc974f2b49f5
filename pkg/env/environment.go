// Package env models environments as ordered variable lists and the
// value-semantics views the script engine works with: immutable snapshots
// taken per run and diffs describing the mutations a run intends.
package env

// Variable is a single key/value entry in an environment. Disabled entries
// are kept for round-tripping but ignored when resolving effective values.
type Variable struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Environment is an identified, ordered collection of variables.
//
// Key uniqueness is not enforced by the structure. The effective value of a
// key is the value of the last enabled entry carrying that key; earlier or
// disabled entries are shadowed.
type Environment struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name,omitempty" yaml:"name,omitempty"`
	Variables []Variable `json:"variables" yaml:"variables"`
}

// Clone returns a deep copy of the environment.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	clone := &Environment{
		ID:   e.ID,
		Name: e.Name,
	}
	if e.Variables != nil {
		clone.Variables = make([]Variable, len(e.Variables))
		copy(clone.Variables, e.Variables)
	}
	return clone
}

// Snapshot is an immutable key→value view of an environment captured at the
// moment a script run starts. Scripts resolve reads against a snapshot merged
// with their own run-local diff, never against the live environment.
type Snapshot map[string]string

// NewSnapshot derives the effective key→value map from the enabled variables
// of e. For a repeated key the last enabled entry wins. A nil environment
// yields an empty snapshot, which is valid input for a run.
func NewSnapshot(e *Environment) Snapshot {
	snap := make(Snapshot)
	if e == nil {
		return snap
	}
	for _, v := range e.Variables {
		if !v.Enabled {
			continue
		}
		snap[v.Key] = v.Value
	}
	return snap
}

// Get returns the effective value for key and whether it exists.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := make(Snapshot, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}
