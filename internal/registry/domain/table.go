package domain

import (
	"maps"
	"slices"
)

// Resolution is the outcome of following a redirection chain.
type Resolution struct {
	// Destination is the number the chain resolved to. On a cycle it is
	// the queried number itself.
	Destination Number
	// Hops counts the redirections followed before the walk stopped.
	Hops int
	// Cycle is set when the walk revisited a number.
	Cycle bool
}

// Table maps source numbers to destination numbers.
type Table struct {
	entries    map[Number]Number
	generation uint64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Number]Number)}
}

// Set maps source to destination, replacing any previous destination.
func (t *Table) Set(source, destination Number) {
	t.entries[source] = destination
	t.generation++
}

// Delete removes the mapping for source. It reports whether one existed.
func (t *Table) Delete(source Number) bool {
	if _, ok := t.entries[source]; !ok {
		return false
	}
	delete(t.entries, source)
	t.generation++
	return true
}

// Lookup returns the direct destination of source.
func (t *Table) Lookup(source Number) (Number, bool) {
	dst, ok := t.entries[source]
	return dst, ok
}

// Len returns the number of mappings.
func (t *Table) Len() int {
	return len(t.entries)
}

// Generation changes every time the table is mutated.
func (t *Table) Generation() uint64 {
	return t.generation
}

// Entries returns a copy of all mappings.
func (t *Table) Entries() map[Number]Number {
	return maps.Clone(t.entries)
}

// Sources returns the mapped source numbers in lexical order.
func (t *Table) Sources() []Number {
	return slices.Sorted(maps.Keys(t.entries))
}

// Resolve follows the redirection chain starting at source.
//
// The walk stops at the first number with no mapping and returns it. If
// the walk reaches a number it has already visited, the chain is cyclic
// and the result is source itself: a cycle means no effective redirection.
// Every step visits a distinct mapped key, so the walk takes at most
// Len()+1 lookups.
func (t *Table) Resolve(source Number) Resolution {
	visited := make(map[Number]struct{})
	key := source
	hops := 0

	for {
		next, mapped := t.entries[key]
		if !mapped {
			return Resolution{Destination: key, Hops: hops}
		}
		if _, seen := visited[key]; seen {
			return Resolution{Destination: source, Hops: hops, Cycle: true}
		}
		visited[key] = struct{}{}
		key = next
		hops++
	}
}
