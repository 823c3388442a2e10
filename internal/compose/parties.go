package compose

import (
	"html/template"
	"strings"

	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
)

// PartySeparator joins consecutive party clauses.
const PartySeparator = " e/ou "

const defaultNationality = "brasileiro"

// IncludedSlots returns the party slots with a non-empty name, in probing order.
func IncludedSlots(rec record.Record) []record.Slot {
	var out []record.Slot
	for _, s := range record.Slots {
		if strings.TrimSpace(rec.Get(record.Party(s, record.AttrName))) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Parties renders the clause naming every included party. Values are HTML
// escaped and names are bold. It returns "" when no party has a name.
func Parties(rec record.Record) template.HTML {
	var b strings.Builder
	for i, s := range IncludedSlots(rec) {
		if i > 0 {
			b.WriteString(PartySeparator)
		}
		writeParty(&b, rec, s)
	}
	return template.HTML(b.String())
}

func writeParty(b *strings.Builder, rec record.Record, s record.Slot) {
	get := func(a record.Attr) string {
		return strings.TrimSpace(rec.Get(record.Party(s, a)))
	}
	esc := template.HTMLEscapeString

	b.WriteString("<strong>" + esc(get(record.AttrName)) + "</strong>")
	if v := get(record.AttrGovID); v != "" {
		b.WriteString(", RG Nº " + esc(v))
	}
	if v := get(record.AttrTaxID); v != "" {
		b.WriteString(", CPF Nº " + esc(taxid.FormatTaxID(v)))
	}
	if v := get(record.AttrRegistration); v != "" {
		b.WriteString(", registro nº " + esc(v))
	}

	nationality := get(record.AttrNationality)
	if nationality == "" {
		nationality = defaultNationality
	}
	b.WriteString(", " + esc(nationality))

	if v := get(record.AttrMaritalStatus); v != "" {
		b.WriteString(", " + esc(v))
	}
	if v := get(record.AttrProfession); v != "" {
		b.WriteString(", " + esc(v))
	}

	city, state := get(record.AttrCity), get(record.AttrState)
	if city == "" || state == "" {
		return
	}
	if street := get(record.AttrStreet); street != "" {
		b.WriteString(", residente na " + esc(street) + ", " + esc(city) + "/" + esc(state))
	} else {
		b.WriteString(", residente em " + esc(city) + "/" + esc(state))
	}
}
