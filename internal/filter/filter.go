// Package filter narrows an evaluation list for display.
package filter

import (
	"strings"

	"github.com/five82/evalwatch/internal/lmeval"
)

// Key names a filterable field.
type Key string

const (
	Name  Key = "name"
	Model Key = "model"
)

// Keys lists the supported filter keys.
var Keys = []Key{Name, Model}

// ParseKey maps user input to a Key.
func ParseKey(value string) (Key, bool) {
	switch Key(strings.ToLower(strings.TrimSpace(value))) {
	case Name:
		return Name, true
	case Model:
		return Model, true
	}
	return "", false
}

// State holds one search value per key. The zero value has no filters.
type State struct {
	values map[Key]string
}

// Set replaces the value for key. A blank value clears it.
func (s *State) Set(key Key, value string) {
	if strings.TrimSpace(value) == "" {
		s.Clear(key)
		return
	}
	if s.values == nil {
		s.values = make(map[Key]string)
	}
	s.values[key] = value
}

// Get returns the value for key.
func (s State) Get(key Key) string {
	return s.values[key]
}

// Clear removes only key.
func (s *State) Clear(key Key) {
	delete(s.values, key)
}

// ClearAll removes every filter.
func (s *State) ClearAll() {
	s.values = nil
}

// Empty reports whether no filter is active.
func (s State) Empty() bool {
	for _, v := range s.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Apply returns the evaluations matching every active filter. Matching is a
// case-insensitive substring test. With no active filters items is returned
// as is.
func Apply(items []lmeval.Evaluation, s State) []lmeval.Evaluation {
	if s.Empty() {
		return items
	}
	name := strings.ToLower(strings.TrimSpace(s.Get(Name)))
	model := strings.ToLower(strings.TrimSpace(s.Get(Model)))

	out := make([]lmeval.Evaluation, 0, len(items))
	for _, item := range items {
		if name != "" && !strings.Contains(strings.ToLower(item.DisplayName()), name) {
			continue
		}
		if model != "" && !strings.Contains(strings.ToLower(item.Spec.Model), model) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ByState keeps evaluations in the given lifecycle state. An empty state keeps all.
func ByState(items []lmeval.Evaluation, state lmeval.State) []lmeval.Evaluation {
	if state == "" {
		return items
	}
	out := make([]lmeval.Evaluation, 0, len(items))
	for _, item := range items {
		if item.State() == state {
			out = append(out, item)
		}
	}
	return out
}
