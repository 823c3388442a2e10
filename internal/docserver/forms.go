package docserver

import (
	"strconv"

	"github.com/evidenceledger/docgen/internal/extract"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
)

type formField struct {
	Name  string
	Label string
	Value string
	Type  string
}

type formSection struct {
	ID     string
	Title  string
	Fields []formField
	// Extract is the extraction section offered for the block, if any.
	Extract string
	Slot    string
}

type labeled struct {
	attr  record.Attr
	label string
	typ   string
}

var addressFields = []labeled{
	{record.AttrPostalCode, "CEP", "text"},
	{record.AttrStreet, "Endereço", "text"},
	{record.AttrComplement, "Bairro", "text"},
	{record.AttrCity, "Município", "text"},
	{record.AttrState, "UF", "text"},
}

var principalFields = append([]labeled{
	{record.AttrName, "Nome", "text"},
	{record.AttrTaxID, "CPF / CNPJ", "text"},
	{record.AttrGovID, "RG", "text"},
	{record.AttrBirthDate, "Data de nascimento", "text"},
	{record.AttrFatherName, "Nome do pai", "text"},
	{record.AttrMotherName, "Nome da mãe", "text"},
	{record.AttrNationality, "Nacionalidade", "text"},
	{record.AttrMaritalStatus, "Estado civil", "text"},
	{record.AttrProfession, "Profissão", "text"},
	{record.AttrPhone, "Telefone", "tel"},
	{record.AttrEmail, "E-mail", "email"},
}, addressFields...)

var entityFields = append([]labeled{
	{record.AttrName, "Razão social", "text"},
	{record.AttrTaxID, "CNPJ", "text"},
}, addressFields...)

var partyFields = append([]labeled{
	{record.AttrName, "Nome", "text"},
	{record.AttrTaxID, "CPF", "text"},
	{record.AttrGovID, "RG", "text"},
	{record.AttrRegistration, "Registro profissional", "text"},
	{record.AttrNationality, "Nacionalidade", "text"},
	{record.AttrMaritalStatus, "Estado civil", "text"},
	{record.AttrProfession, "Profissão", "text"},
}, addressFields...)

var vehicleFields = []labeled{
	{record.AttrPlate, "Placa", "text"},
	{record.AttrRenavam, "RENAVAM", "text"},
	{record.AttrChassis, "Chassi", "text"},
	{record.AttrModel, "Marca/Modelo", "text"},
	{record.AttrFabricationYear, "Ano de fabricação", "text"},
	{record.AttrModelYear, "Ano do modelo", "text"},
	{record.AttrColor, "Cor", "text"},
	{record.AttrFuel, "Combustível", "text"},
}

var appealFields = []labeled{
	{record.AttrInfraction, "Auto de infração", "text"},
	{record.AttrAuthority, "Órgão autuador", "text"},
	{record.AttrInfractionDate, "Data da infração", "text"},
	{record.AttrGrounds, "Fundamentação", "textarea"},
}

var signatureFields = []labeled{
	{record.AttrSignCity, "Local", "text"},
	{record.AttrSignDate, "Data", "text"},
}

func fieldsOf(rec record.Record, o record.Owner, list []labeled) []formField {
	out := make([]formField, 0, len(list))
	for _, l := range list {
		k := o.Key(l.attr)
		v := rec.Get(k)
		switch l.attr {
		case record.AttrTaxID:
			v = taxid.FormatTaxID(v)
		case record.AttrPostalCode:
			v = taxid.NormalizePostalCode(v).Formatted
		}
		out = append(out, formField{Name: k.Name(), Label: l.label, Value: v, Type: l.typ})
	}
	return out
}

// buildForm lays out the form of a document kind with the values of rec.
// Party block i is stored in the slot a company import writes partner i to.
func buildForm(rec record.Record, kind record.DocumentKind, partyCount int) []formSection {

	var sections []formSection

	if rec.Bool(record.Doc(record.AttrEntityMode)) {
		sections = append(sections, formSection{
			ID:      "entity",
			Title:   "Empresa proprietária",
			Fields:  fieldsOf(rec, record.Owner{Role: record.RoleEntity}, entityFields),
			Extract: string(extract.SectionEntityDocument),
		})
	} else {
		sections = append(sections, formSection{
			ID:      "principal",
			Title:   "Proprietário",
			Fields:  fieldsOf(rec, record.Owner{Role: record.RolePrincipal}, principalFields),
			Extract: string(extract.SectionPrincipalDocument),
		})
	}

	sections = append(sections, formSection{
		ID:      "vehicle",
		Title:   "Veículo",
		Fields:  fieldsOf(rec, record.Owner{Role: record.RoleVehicle}, vehicleFields),
		Extract: string(extract.SectionVehicle),
	})

	if kind == record.KindAppeal {
		sections = append(sections, formSection{
			ID:     "appeal",
			Title:  "Infração",
			Fields: fieldsOf(rec, record.Owner{Role: record.RoleDocument}, appealFields),
		})
	} else {
		for i := range partyCount {
			slot, ok := record.SlotForIndex(i)
			if !ok {
				break
			}
			sections = append(sections, formSection{
				ID:      "party" + slot.Suffix(),
				Title:   "Procurador " + strconv.Itoa(i+1),
				Fields:  fieldsOf(rec, record.PartyOwner(slot), partyFields),
				Extract: string(extract.SectionPartyDocument),
				Slot:    slot.Suffix(),
			})
		}
	}

	sections = append(sections, formSection{
		ID:     "signature",
		Title:  "Assinatura",
		Fields: fieldsOf(rec, record.Owner{Role: record.RoleDocument}, signatureFields),
	})

	return sections
}
