package model

import "strconv"

// ResultSet is a set of distinct matched fragments. Order carries no meaning;
// constructors keep first-seen order so output stays deterministic.
type ResultSet []string

// NewResultSet deduplicates fragments by exact string equality, dropping empty strings.
func NewResultSet(fragments []string) ResultSet {
	seen := make(map[string]struct{}, len(fragments))
	out := make(ResultSet, 0, len(fragments))
	for _, f := range fragments {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Contains reports whether s is an element of the set.
func (r ResultSet) Contains(s string) bool {
	for _, v := range r {
		if v == s {
			return true
		}
	}
	return false
}

// Minus returns the elements of r absent from other.
func (r ResultSet) Minus(other ResultSet) ResultSet {
	prev := make(map[string]struct{}, len(other))
	for _, v := range other {
		prev[v] = struct{}{}
	}
	out := ResultSet{}
	for _, v := range r {
		if _, ok := prev[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// Equal reports set equality, ignoring order.
func (r ResultSet) Equal(other ResultSet) bool {
	a, b := NewResultSet(r), NewResultSet(other)
	if len(a) != len(b) {
		return false
	}
	return len(a.Minus(b)) == 0
}

func itoa(n int) string { return strconv.Itoa(n) }
