package core

import (
	"encoding/json"
	"sort"
)

// AssetSelection records which assets a run explicitly targeted. It is a
// tagged variant: an unconstrained selection (no selection recorded at run
// creation) is distinct from an explicit empty selection. The zero value is
// unconstrained.
type AssetSelection struct {
	constrained bool
	keys        map[AssetKey]bool
}

// UnconstrainedSelection returns a selection carrying no asset constraint.
func UnconstrainedSelection() AssetSelection {
	return AssetSelection{}
}

// SelectionOf returns an explicit selection of the given keys.
func SelectionOf(keys ...AssetKey) AssetSelection {
	set := make(map[AssetKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return AssetSelection{constrained: true, keys: set}
}

// IsConstrained reports whether an explicit selection was recorded.
func (s AssetSelection) IsConstrained() bool {
	return s.constrained
}

// Contains reports whether the selection includes the given key. An
// unconstrained selection contains nothing explicitly; callers must check
// IsConstrained first.
func (s AssetSelection) Contains(key AssetKey) bool {
	return s.keys[key]
}

// Len returns the number of explicitly selected keys.
func (s AssetSelection) Len() int {
	return len(s.keys)
}

// Keys returns the selected keys in sorted order. Returns nil when
// unconstrained.
func (s AssetSelection) Keys() []AssetKey {
	if !s.constrained {
		return nil
	}
	keys := make([]AssetKey, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Set returns the selection as a set. Returns nil when unconstrained. The
// returned map is a copy; mutating it does not affect the selection.
func (s AssetSelection) Set() map[AssetKey]bool {
	if !s.constrained {
		return nil
	}
	set := make(map[AssetKey]bool, len(s.keys))
	for k := range s.keys {
		set[k] = true
	}
	return set
}

// MarshalJSON encodes an unconstrained selection as null and an explicit
// selection as a sorted key array.
func (s AssetSelection) MarshalJSON() ([]byte, error) {
	if !s.constrained {
		return []byte("null"), nil
	}
	return json.Marshal(s.Keys())
}

// UnmarshalJSON decodes null as unconstrained and an array (including an
// empty one) as an explicit selection.
func (s *AssetSelection) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = UnconstrainedSelection()
		return nil
	}
	var keys []AssetKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*s = SelectionOf(keys...)
	return nil
}
