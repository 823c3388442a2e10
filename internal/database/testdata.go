package database

import (
	"log/slog"

	"github.com/evidenceledger/docgen/internal/models"
)

// initializeTestData adds sample catalog entries if the catalog is empty
func (d *Database) initializeTestData() error {

	companies, err := d.ListCompanies()
	if err != nil {
		return err
	}
	if len(companies) > 0 {
		return nil
	}

	company := &models.Company{
		ID:           "10000001",
		Nome:         "TRANSPORTES EXEMPLO LTDA",
		CNPJ:         "11222333000181",
		Endereco:     "Rua Padre Bernardo Freuser, 100",
		Complemento:  "Centro",
		Municipio:    "Palhoça",
		Estado:       "SC",
		CEP:          "88130000",
		PartnerCount: 2,
		Partners: []models.Partner{
			{
				Nome:          "MARIA EXEMPLO",
				CPF:           "52998224725",
				Nacionalidade: "brasileira",
				EstadoCivil:   "casada",
				Profissao:     "empresária",
				Municipio:     "Palhoça",
				Estado:        "SC",
			},
			{
				Nome:          "JOSE EXEMPLO",
				CPF:           "11144477735",
				Nacionalidade: "brasileiro",
				Profissao:     "administrador",
			},
		},
	}
	if err := d.SaveCompany(company); err != nil {
		return err
	}

	contact := &models.Contact{
		Code: "10001",
		Identity: models.Identity{
			Nome:          "DESPACHANTE EXEMPLO",
			CPF:           "52998224725",
			Nacionalidade: "brasileiro",
			Profissao:     "despachante",
			Endereco:      "Rua Marechal Deodoro, 50",
			Municipio:     "Tubarão",
			Estado:        "SC",
			CEP:           "88701000",
		},
	}
	if err := d.SaveContact(contact); err != nil {
		return err
	}

	slog.Info("Sample catalog created", "company", company.ID, "contact", contact.Code)
	return nil
}
