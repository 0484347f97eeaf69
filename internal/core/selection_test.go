package core

import (
	"encoding/json"
	"testing"
)

func TestAssetSelection_ZeroValueUnconstrained(t *testing.T) {
	var s AssetSelection
	if s.IsConstrained() {
		t.Fatalf("zero value should be unconstrained")
	}
	if s.Keys() != nil {
		t.Fatalf("Keys() = %#v, want nil", s.Keys())
	}
}

func TestAssetSelection_EmptyDistinctFromUnconstrained(t *testing.T) {
	empty := SelectionOf()
	if !empty.IsConstrained() {
		t.Fatalf("explicit empty selection should be constrained")
	}
	if empty.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", empty.Len())
	}
}

func TestAssetSelection_KeysSorted(t *testing.T) {
	s := SelectionOf("b", "a", "c")
	keys := s.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("Keys() = %#v, want [a b c]", keys)
	}
}

func TestAssetSelection_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		sel  AssetSelection
		want string
	}{
		{"unconstrained", UnconstrainedSelection(), "null"},
		{"empty", SelectionOf(), "[]"},
		{"keys", SelectionOf("b", "a"), `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.sel)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("Marshal() = %s, want %s", data, tt.want)
			}

			var back AssetSelection
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if back.IsConstrained() != tt.sel.IsConstrained() {
				t.Fatalf("round trip changed constrained: %v -> %v", tt.sel.IsConstrained(), back.IsConstrained())
			}
			if back.Len() != tt.sel.Len() {
				t.Fatalf("round trip changed length: %d -> %d", tt.sel.Len(), back.Len())
			}
		})
	}
}

func TestAssetSelection_SetIsCopy(t *testing.T) {
	s := SelectionOf("a")
	set := s.Set()
	set["b"] = true
	if s.Contains("b") {
		t.Fatalf("mutating Set() copy should not affect the selection")
	}
}
