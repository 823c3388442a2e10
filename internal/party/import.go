package party

import (
	"errors"

	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
)

// ContactCodeLen is the length a contact code must have before it is looked up.
const ContactCodeLen = 5

// ErrContactNotFound is returned by a ContactFinder for an unknown code.
var ErrContactNotFound = models.ErrNotFound

// ContactFinder resolves a contact code.
type ContactFinder interface {
	GetContact(code string) (*models.Contact, error)
}

// ImportFromCompany copies the partners of c into the party slots of a record:
// partner 0 goes to the unsuffixed slot and partner i to suffix i+1. Partners
// without a slot are skipped. The company itself fills the entity block and
// switches the record to entity mode.
func ImportFromCompany(c *models.Company) record.Delta {
	d := record.Delta{}
	for i := range c.Partners {
		slot, ok := record.SlotForIndex(i)
		if !ok {
			break
		}
		copyIdentity(d, record.PartyOwner(slot), &c.Partners[i])
	}

	entity := record.Owner{Role: record.RoleEntity}
	d.Set(entity.Key(record.AttrName), c.Nome)
	d.Set(entity.Key(record.AttrTaxID), taxid.Digits(c.CNPJ))
	d.Set(entity.Key(record.AttrStreet), c.Endereco)
	d.Set(entity.Key(record.AttrComplement), c.Complemento)
	d.Set(entity.Key(record.AttrCity), c.Municipio)
	d.Set(entity.Key(record.AttrState), c.Estado)
	d.Set(entity.Key(record.AttrPostalCode), c.CEP)
	d.Set(record.Doc(record.AttrEntityMode), "true")
	return d
}

// ImportFromContact copies a contact into the party block at slot.
func ImportFromContact(c *models.Contact, slot record.Slot) record.Delta {
	d := record.Delta{}
	copyIdentity(d, record.PartyOwner(slot), &c.Identity)
	return d
}

// ImportContactByCode resolves code and copies the contact into slot. Codes
// that are not exactly five digits, or that resolve to nothing, give an empty
// delta and no error.
func ImportContactByCode(f ContactFinder, code string, slot record.Slot) (record.Delta, error) {
	code = taxid.Digits(code)
	if len(code) != ContactCodeLen {
		return record.Delta{}, nil
	}
	c, err := f.GetContact(code)
	if errors.Is(err, ErrContactNotFound) || (err == nil && c == nil) {
		return record.Delta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ImportFromContact(c, slot), nil
}

func copyIdentity(d record.Delta, o record.Owner, id *models.Identity) {
	for _, a := range record.IdentityAttrs {
		v, _ := id.Get(a)
		if a == record.AttrTaxID {
			v = taxid.Digits(v)
		}
		d.Set(o.Key(a), v)
	}
}
