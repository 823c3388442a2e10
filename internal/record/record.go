package record

import (
	"maps"
	"slices"
)

// Record is one in-progress document: form field name to value. Booleans are
// stored as "true" / "false".
type Record map[string]string

// Delta is a partial record, applied over whatever the current state is.
type Delta map[Key]string

// DocumentKind selects the legal instrument being generated.
type DocumentKind string

const (
	KindPowerOfAttorney DocumentKind = "procuracao"
	KindAppeal          DocumentKind = "recurso"
)

// New returns an empty record.
func New() Record {
	return Record{}
}

// Get returns the value of k, or "" when unset.
func (r Record) Get(k Key) string {
	return r[k.Name()]
}

// Set writes v into k.
func (r Record) Set(k Key, v string) {
	r[k.Name()] = v
}

// Has reports whether k has a non-empty value.
func (r Record) Has(k Key) bool {
	return r[k.Name()] != ""
}

// Bool reads a boolean field.
func (r Record) Bool(k Key) bool {
	return r[k.Name()] == "true"
}

// SetBool writes a boolean field.
func (r Record) SetBool(k Key, v bool) {
	if v {
		r[k.Name()] = "true"
	} else {
		r[k.Name()] = "false"
	}
}

// Kind returns the document kind, defaulting to a power of attorney.
func (r Record) Kind() DocumentKind {
	if DocumentKind(r.Get(Doc(AttrDocumentKind))) == KindAppeal {
		return KindAppeal
	}
	return KindPowerOfAttorney
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// Apply writes every field of d into r.
func (r Record) Apply(d Delta) {
	for k, v := range d {
		r.Set(k, v)
	}
}

// Set adds a field to the delta.
func (d Delta) Set(k Key, v string) {
	d[k] = v
}

// Names returns the field names touched by d, sorted.
func (d Delta) Names() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k.Name())
	}
	slices.Sort(out)
	return out
}

// FromMap builds a record from loosely typed form data, dropping unknown
// field names.
func FromMap(m map[string]string) Record {
	r := Record{}
	for name, v := range m {
		if _, ok := Parse(name); ok {
			r[name] = v
		}
	}
	return r
}
