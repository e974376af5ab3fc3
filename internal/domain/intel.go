// Package domain contains core domain types for the honeypot service.
package domain

import (
	"encoding/json"
	"slices"
)

// Category names one class of extracted indicator.
type Category string

const (
	CategoryUPI    Category = "upi_id"
	CategoryPhone  Category = "phone_number"
	CategoryLink   Category = "link"
	CategoryDomain Category = "domain"
)

// Categories lists every indicator category in reporting order.
func Categories() []Category {
	return []Category{CategoryUPI, CategoryPhone, CategoryLink, CategoryDomain}
}

// StringSet is an unordered set of strings. It serializes as a sorted list.
type StringSet map[string]struct{}

// NewStringSet returns a set holding values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// Intel is the aggregate of the four indicator sets. Merge is the only
// mutation; sets never shrink.
type Intel struct {
	UPIIDs       StringSet `json:"upi_ids"`
	PhoneNumbers StringSet `json:"phone_numbers"`
	Links        StringSet `json:"links"`
	Domains      StringSet `json:"domains"`
}

// NewIntel returns an Intel with all four sets allocated and empty.
func NewIntel() Intel {
	return Intel{
		UPIIDs:       StringSet{},
		PhoneNumbers: StringSet{},
		Links:        StringSet{},
		Domains:      StringSet{},
	}
}

// Set returns the set backing category c.
func (in *Intel) Set(c Category) StringSet {
	in.ensure()
	switch c {
	case CategoryUPI:
		return in.UPIIDs
	case CategoryPhone:
		return in.PhoneNumbers
	case CategoryLink:
		return in.Links
	case CategoryDomain:
		return in.Domains
	}
	return nil
}

func (in *Intel) ensure() {
	if in.UPIIDs == nil {
		in.UPIIDs = StringSet{}
	}
	if in.PhoneNumbers == nil {
		in.PhoneNumbers = StringSet{}
	}
	if in.Links == nil {
		in.Links = StringSet{}
	}
	if in.Domains == nil {
		in.Domains = StringSet{}
	}
}

// Merge unions other into in.
func (in *Intel) Merge(other Intel) {
	for _, c := range Categories() {
		dst := in.Set(c)
		for v := range other.Set(c) {
			dst[v] = struct{}{}
		}
	}
}

// Sizes returns the cardinality of each set in Categories order.
func (in Intel) Sizes() [4]int {
	return [4]int{len(in.UPIIDs), len(in.PhoneNumbers), len(in.Links), len(in.Domains)}
}

// Empty reports whether no indicator of any category is present.
func (in Intel) Empty() bool {
	return in.Sizes() == [4]int{}
}

// HasLinkClass reports whether a link or a domain has been collected.
func (in Intel) HasLinkClass() bool {
	return len(in.Links) > 0 || len(in.Domains) > 0
}

// Clone returns a deep copy.
func (in Intel) Clone() Intel {
	out := NewIntel()
	out.Merge(in)
	return out
}

// Each calls fn for every value, category by category, values sorted.
func (in Intel) Each(fn func(c Category, value string)) {
	for _, c := range Categories() {
		for _, v := range in.Set(c).Sorted() {
			fn(c, v)
		}
	}
}
