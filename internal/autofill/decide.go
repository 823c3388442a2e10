// Package autofill decides, for every field change of a form session, whether
// an external lookup is due, and merges lookup answers into the session record.
package autofill

import (
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
)

// ActionKind is the lookup a field change triggers.
type ActionKind string

const (
	ActionNone   ActionKind = "none"
	ActionPerson ActionKind = "person"
	ActionEntity ActionKind = "entity"
	ActionPostal ActionKind = "postal"
)

// Action describes the lookup decided for a field change. Query holds the
// digits sent to the service.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Query     string     `json:"query,omitempty"`
	Debounced bool       `json:"debounced"`
	key       record.Key
}

// Decide inspects a changed field. Tax id fields trigger a registry lookup
// immediately once they hold 11 or 14 digits. Postal code fields trigger an
// address lookup, debounced, once they hold exactly 8 digits. Anything else
// triggers nothing.
func Decide(key record.Key, value string) Action {
	none := Action{Kind: ActionNone, key: key}
	if !key.Valid() || !key.Attr.IsIdentity() {
		return none
	}

	switch key.Attr {
	case record.AttrTaxID:
		r := taxid.NormalizeTaxID(value)
		switch r.Kind {
		case taxid.KindPerson:
			return Action{Kind: ActionPerson, Query: r.Digits, key: key}
		case taxid.KindEntity:
			return Action{Kind: ActionEntity, Query: r.Digits, key: key}
		}
	case record.AttrPostalCode:
		if pc := taxid.NormalizePostalCode(value); pc.Valid {
			return Action{Kind: ActionPostal, Query: pc.Digits, Debounced: true, key: key}
		}
	}
	return none
}
