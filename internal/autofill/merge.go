package autofill

import (
	"strings"

	"github.com/evidenceledger/docgen/internal/lookup"
	"github.com/evidenceledger/docgen/internal/record"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Upper uppercases a name the way Brazilian documents print it.
func Upper(s string) string {
	return cases.Upper(language.BrazilianPortuguese).String(strings.TrimSpace(s))
}

// FormatDate turns YYYY-MM-DD and YYYYMMDD into DD/MM/YYYY. Values already
// containing a slash, and anything it does not recognize, are returned as is.
func FormatDate(v string) string {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "/") {
		return v
	}
	if len(v) >= 10 && v[4] == '-' && v[7] == '-' {
		return v[8:10] + "/" + v[5:7] + "/" + v[0:4]
	}
	if len(v) == 8 && isDigits(v) {
		return v[6:8] + "/" + v[4:6] + "/" + v[0:4]
	}
	return v
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// usable reports whether a registry value carries information.
func usable(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "null"
}

// PersonDelta merges a person answer into the block of the triggering key.
// The name is always overwritten. For the vehicle owner the birth date and
// parents' names are filled as well, and the government id only when the
// record does not have one yet.
func PersonDelta(rec record.Record, key record.Key, p lookup.Person) record.Delta {
	d := record.Delta{}
	if usable(p.Name) {
		d.Set(key.WithAttr(record.AttrName), Upper(p.Name))
	}
	if key.Role != record.RolePrincipal {
		return d
	}

	if usable(p.BirthDate) {
		d.Set(key.WithAttr(record.AttrBirthDate), FormatDate(p.BirthDate))
	}
	if usable(p.FatherName) {
		d.Set(key.WithAttr(record.AttrFatherName), Upper(p.FatherName))
	}
	if usable(p.MotherName) {
		d.Set(key.WithAttr(record.AttrMotherName), Upper(p.MotherName))
	}
	gov := key.WithAttr(record.AttrGovID)
	if usable(p.GovID) && !rec.Has(gov) {
		d.Set(gov, strings.TrimSpace(p.GovID))
	}
	return d
}

// EntityDelta merges a company answer into the block of the triggering key:
// the name and, when the answer has one, the whole address.
func EntityDelta(key record.Key, e lookup.Entity) record.Delta {
	d := record.Delta{}
	if usable(e.Name) {
		d.Set(key.WithAttr(record.AttrName), e.Name)
	}
	if e.Address == nil {
		return d
	}
	f, ok := record.AddressKeys(key.Owner())
	if !ok {
		return d
	}
	d.Set(f.Street, e.Address.Street)
	d.Set(f.Complement, e.Address.Complement)
	d.Set(f.City, e.Address.City)
	d.Set(f.State, e.Address.State)
	d.Set(f.PostalCode, e.Address.PostalCode)
	return d
}

// PostalDelta overwrites street, complement, city and state of the block of
// the postal code field. The postal code itself is left as the user typed it.
func PostalDelta(key record.Key, a lookup.Address) record.Delta {
	d := record.Delta{}
	f, ok := record.AddressKeys(key.Owner())
	if !ok {
		return d
	}
	d.Set(f.Street, a.Street)
	d.Set(f.Complement, a.Complement)
	d.Set(f.City, a.City)
	d.Set(f.State, a.State)
	return d
}
