package domain

import (
	"encoding/json"
	"sort"
)

// ToolDefinition is one tool entry parsed from a service's tool
// configuration document. Spec carries the raw document entry; the
// engine never interprets it beyond the name.
type ToolDefinition struct {
	Name    string
	Service string
	Spec    json.RawMessage
}

// ServiceInstance is the directory's view of one backing instance.
// Only Healthy and Enabled participate in eligibility; the address is
// carried for sinks that proxy tool calls.
type ServiceInstance struct {
	Address string
	Port    int
	Healthy bool
	Enabled bool
}

// HasHealthyEnabledInstance reports whether at least one instance is
// both healthy and enabled.
func HasHealthyEnabledInstance(instances []ServiceInstance) bool {
	for _, inst := range instances {
		if inst.Healthy && inst.Enabled {
			return true
		}
	}
	return false
}

// ToolSet is the set of tool names applied for one service.
type ToolSet map[string]struct{}

// NewToolSet builds a set from names.
func NewToolSet(names ...string) ToolSet {
	set := make(ToolSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s ToolSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts a name.
func (s ToolSet) Add(name string) {
	s[name] = struct{}{}
}

// Clone returns an independent copy.
func (s ToolSet) Clone() ToolSet {
	out := make(ToolSet, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}

// Diff returns the names present in s but absent from other.
func (s ToolSet) Diff(other ToolSet) []string {
	var removed []string
	for name := range s {
		if _, ok := other[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}

// Names returns the sorted member names.
func (s ToolSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
