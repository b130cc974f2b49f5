package env

import "sort"

// Diff records the environment mutations a script run intends. The engine
// never writes through to the owning environment; the owner merges the diff
// after the run completes.
//
// Invariant: a key appears in at most one of Set and Unset. The most recent
// operation on a key within one run wins.
type Diff struct {
	Set   map[string]string `json:"set"`
	Unset []string          `json:"unset"`
}

// NewDiff returns an empty diff.
func NewDiff() *Diff {
	return &Diff{
		Set:   make(map[string]string),
		Unset: make([]string, 0),
	}
}

// RecordSet records that key should be set to value, displacing any earlier
// unset of the same key.
func (d *Diff) RecordSet(key, value string) {
	d.removeUnset(key)
	d.Set[key] = value
}

// RecordUnset records that key should be removed, displacing any earlier set
// of the same key. Repeated unsets of one key are collapsed.
func (d *Diff) RecordUnset(key string) {
	delete(d.Set, key)
	for _, k := range d.Unset {
		if k == key {
			return
		}
	}
	d.Unset = append(d.Unset, key)
}

func (d *Diff) removeUnset(key string) {
	for i, k := range d.Unset {
		if k == key {
			d.Unset = append(d.Unset[:i], d.Unset[i+1:]...)
			return
		}
	}
}

// Resolve answers a read against base merged with the diff, so a script sees
// its own earlier writes within the same run.
func (d *Diff) Resolve(base Snapshot, key string) (string, bool) {
	if v, ok := d.Set[key]; ok {
		return v, true
	}
	for _, k := range d.Unset {
		if k == key {
			return "", false
		}
	}
	return base.Get(key)
}

// Empty reports whether the diff carries no mutations.
func (d *Diff) Empty() bool {
	return len(d.Set) == 0 && len(d.Unset) == 0
}

// Clone returns an independent copy of the diff.
func (d *Diff) Clone() *Diff {
	clone := NewDiff()
	for k, v := range d.Set {
		clone.Set[k] = v
	}
	clone.Unset = append(clone.Unset, d.Unset...)
	return clone
}

// Apply merges the diff into e in place. Unset removes every entry carrying
// the key. Set updates the last enabled entry for the key, or appends a new
// enabled entry when none exists. Set keys are applied in sorted order so the
// resulting variable order is deterministic.
func (d *Diff) Apply(e *Environment) {
	if e == nil {
		return
	}
	for _, key := range d.Unset {
		kept := e.Variables[:0]
		for _, v := range e.Variables {
			if v.Key != key {
				kept = append(kept, v)
			}
		}
		e.Variables = kept
	}

	keys := make([]string, 0, len(d.Set))
	for k := range d.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := d.Set[key]
		updated := false
		for i := len(e.Variables) - 1; i >= 0; i-- {
			if e.Variables[i].Key == key && e.Variables[i].Enabled {
				e.Variables[i].Value = value
				updated = true
				break
			}
		}
		if !updated {
			e.Variables = append(e.Variables, Variable{Key: key, Value: value, Enabled: true})
		}
	}
}
