// Package party manages the repeated party blocks of a document: the number
// of procurators shown on the form, the partner list of a company being
// edited, and the copy of catalog entries into record slots.
package party

import (
	"fmt"
	"slices"

	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
)

const (
	MinParties = 1
	MaxParties = 5

	// DefaultNationality is given to partners materialized on first write.
	DefaultNationality = "brasileiro"
)

// Accumulator holds a party count in [MinParties, MaxParties] and, for the
// company flow, the ordered partner list. The zero value has one party.
type Accumulator struct {
	count    int
	partners []models.Partner
}

// NewAccumulator returns an accumulator with a single party.
func NewAccumulator() Accumulator {
	return Accumulator{count: MinParties}
}

// FromCompany loads the partner list of a stored company.
func FromCompany(c *models.Company) Accumulator {
	a := Accumulator{partners: slices.Clone(c.Partners)}
	a.SetCount(c.PartnerCount)
	return a
}

// Count returns the number of party blocks in use.
func (a *Accumulator) Count() int {
	if a.count < MinParties {
		return MinParties
	}
	return a.count
}

// SetCount clamps n to [MinParties, MaxParties]. Partners beyond the new count
// are kept so that raising the count again brings them back.
func (a *Accumulator) SetCount(n int) int {
	a.count = min(max(n, MinParties), MaxParties)
	return a.count
}

// UpdatePartner writes one attribute of the partner at index. A partner that
// does not exist yet is created with default values first, together with any
// missing partner before it. Indexes above MaxParties are rejected. The count
// is not changed.
func (a *Accumulator) UpdatePartner(index int, attr record.Attr, value string) error {
	if index < 0 || index > MaxParties {
		return fmt.Errorf("partner index %d out of range", index)
	}
	for len(a.partners) <= index {
		a.partners = append(a.partners, newPartner())
	}
	if attr == record.AttrTaxID {
		value = taxid.Digits(value)
	}
	if !a.partners[index].Set(attr, value) {
		return fmt.Errorf("attribute %d is not a partner field", attr)
	}
	return nil
}

// Partner returns a copy of the partner at index.
func (a *Accumulator) Partner(index int) (models.Partner, bool) {
	if index < 0 || index >= len(a.partners) {
		return models.Partner{}, false
	}
	return a.partners[index], true
}

// Partners returns a copy of every materialized partner.
func (a *Accumulator) Partners() []models.Partner {
	return slices.Clone(a.partners)
}

// ApplyTo stores the count and partners back into a company.
func (a *Accumulator) ApplyTo(c *models.Company) {
	c.PartnerCount = a.Count()
	c.Partners = slices.Clone(a.partners)
}

func newPartner() models.Partner {
	return models.Partner{Nacionalidade: DefaultNationality}
}
