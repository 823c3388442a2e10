package models

import (
	"errors"
	"regexp"

	"github.com/evidenceledger/docgen/internal/taxid"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxPartners bounds the partner list of a company: one per party slot.
const MaxPartners = 6

var (
	companyIDPattern   = regexp.MustCompile(`^\d{8}$`)
	contactCodePattern = regexp.MustCompile(`^\d{5}$`)
	statePattern       = regexp.MustCompile(`^[A-Z]{2}$`)
)

// taxIDRule accepts an empty value or one with valid check digits.
func taxIDRule(want taxid.Kind) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if taxid.NormalizeTaxID(s).Kind != want {
			return errors.New("número com quantidade de dígitos inválida")
		}
		if !taxid.ValidCheckDigits(s) {
			return errors.New("dígitos verificadores inválidos")
		}
		return nil
	})
}

func postalRule() validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" || taxid.NormalizePostalCode(s).Valid {
			return nil
		}
		return errors.New("CEP deve ter 8 dígitos")
	})
}

// Validate checks an identity block.
func (id Identity) Validate() error {
	return validation.ValidateStruct(&id,
		validation.Field(&id.Nome, validation.Required, validation.Length(1, 200)),
		validation.Field(&id.CPF, taxIDRule(taxid.KindPerson)),
		validation.Field(&id.Estado, validation.Match(statePattern)),
		validation.Field(&id.CEP, postalRule()),
	)
}

// Validate checks a company before it is stored.
func (c Company) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Match(companyIDPattern)),
		validation.Field(&c.Nome, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.CNPJ, validation.Required, taxIDRule(taxid.KindEntity)),
		validation.Field(&c.Estado, validation.Match(statePattern)),
		validation.Field(&c.CEP, postalRule()),
		validation.Field(&c.PartnerCount, validation.Min(0), validation.Max(5)),
		validation.Field(&c.Partners, validation.Length(0, MaxPartners)),
	)
}

// Validate checks a contact before it is stored.
func (c Contact) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Code, validation.Match(contactCodePattern)),
		validation.Field(&c.Identity),
		validation.Field(&c.Telefone, is.Digit, validation.Length(10, 13)),
	)
}
