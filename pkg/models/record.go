package models

import (
	"sort"
	"strings"
)

// StringSet is an unordered set of distinct strings
type StringSet map[string]struct{}

// NewStringSet builds a set holding the given values
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v; empty strings are ignored
func (s StringSet) Add(v string) {
	if v == "" {
		return
	}
	s[v] = struct{}{}
}

// Has reports whether v is a member
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Union adds every member of other to s
func (s StringSet) Union(other StringSet) {
	for v := range other {
		s[v] = struct{}{}
	}
}

// Len returns the number of members
func (s StringSet) Len() int { return len(s) }

// Sorted returns the members in lexical order
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ContactRecord holds the distinct contact values found for one source URL.
// It is built up by merges while a seed is processed and treated as immutable
// once validated.
type ContactRecord struct {
	URL    string
	Values map[Category]StringSet
}

// NewContactRecord creates an empty record keyed by url
func NewContactRecord(url string) *ContactRecord {
	return &ContactRecord{
		URL:    url,
		Values: make(map[Category]StringSet, len(AllCategories)),
	}
}

// Add inserts a single value into the category's set
func (r *ContactRecord) Add(cat Category, value string) {
	if value == "" {
		return
	}
	set, ok := r.Values[cat]
	if !ok {
		set = make(StringSet)
		r.Values[cat] = set
	}
	set.Add(value)
}

// AddAll inserts every value into the category's set
func (r *ContactRecord) AddAll(cat Category, values StringSet) {
	for v := range values {
		r.Add(cat, v)
	}
}

// Get returns the category's set (never nil)
func (r *ContactRecord) Get(cat Category) StringSet {
	if set, ok := r.Values[cat]; ok {
		return set
	}
	return StringSet{}
}

// Has reports whether the category holds at least one value
func (r *ContactRecord) Has(cat Category) bool {
	return r.Get(cat).Len() > 0
}

// Merge unions every category of other into r. The URL of r is kept.
func (r *ContactRecord) Merge(other *ContactRecord) {
	if other == nil {
		return
	}
	for cat, set := range other.Values {
		r.AddAll(cat, set)
	}
}

// IsEmpty reports whether every category is empty
func (r *ContactRecord) IsEmpty() bool {
	for _, set := range r.Values {
		if set.Len() > 0 {
			return false
		}
	}
	return true
}

// Joined serializes the category as a comma-joined list of its sorted members
func (r *ContactRecord) Joined(cat Category) string {
	return strings.Join(r.Get(cat).Sorted(), ", ")
}

// Clone returns a deep copy
func (r *ContactRecord) Clone() *ContactRecord {
	c := NewContactRecord(r.URL)
	c.Merge(r)
	return c
}

// Equal reports whether both records hold the same values in every category
func (r *ContactRecord) Equal(other *ContactRecord) bool {
	if other == nil {
		return false
	}
	for _, cat := range AllCategories {
		a, b := r.Get(cat), other.Get(cat)
		if a.Len() != b.Len() {
			return false
		}
		for v := range a {
			if !b.Has(v) {
				return false
			}
		}
	}
	return true
}
