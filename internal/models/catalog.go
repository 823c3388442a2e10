package models

import (
	"time"

	"github.com/evidenceledger/docgen/internal/record"
)

// Identity is the identity and address block shared by partners, contacts and
// record parties.
type Identity struct {
	Nome          string `json:"nome"`
	CPF           string `json:"cpf"`
	RG            string `json:"rg,omitempty"`
	Nacionalidade string `json:"nacionalidade,omitempty"`
	EstadoCivil   string `json:"estadoCivil,omitempty"`
	Profissao     string `json:"profissao,omitempty"`
	Endereco      string `json:"endereco,omitempty"`
	Complemento   string `json:"complemento,omitempty"`
	Municipio     string `json:"municipio,omitempty"`
	Estado        string `json:"estado,omitempty"`
	CEP           string `json:"cep,omitempty"`
}

// Partner is one partner of a company, addressed by its index.
type Partner = Identity

// Company is a catalog entry whose partners can be copied into a record.
type Company struct {
	ID           string    `json:"id"`
	Nome         string    `json:"nome"`
	CNPJ         string    `json:"cnpj"`
	Endereco     string    `json:"endereco,omitempty"`
	Complemento  string    `json:"complemento,omitempty"`
	Municipio    string    `json:"municipio,omitempty"`
	Estado       string    `json:"estado,omitempty"`
	CEP          string    `json:"cep,omitempty"`
	PartnerCount int       `json:"partnerCount"`
	Partners     []Partner `json:"partners"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Contact is an address-book entry found by its 5-digit code.
type Contact struct {
	Code string `json:"code"`
	Identity
	Telefone  string    `json:"telefone,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Get returns the value of an identity attribute.
func (id *Identity) Get(a record.Attr) (string, bool) {
	p := id.field(a)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set writes an identity attribute. It reports false for attributes the
// block does not carry.
func (id *Identity) Set(a record.Attr, v string) bool {
	p := id.field(a)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (id *Identity) field(a record.Attr) *string {
	switch a {
	case record.AttrName:
		return &id.Nome
	case record.AttrTaxID:
		return &id.CPF
	case record.AttrGovID:
		return &id.RG
	case record.AttrNationality:
		return &id.Nacionalidade
	case record.AttrMaritalStatus:
		return &id.EstadoCivil
	case record.AttrProfession:
		return &id.Profissao
	case record.AttrStreet:
		return &id.Endereco
	case record.AttrComplement:
		return &id.Complemento
	case record.AttrCity:
		return &id.Municipio
	case record.AttrState:
		return &id.Estado
	case record.AttrPostalCode:
		return &id.CEP
	}
	return nil
}
