// Package record models the in-progress legal document as a flat field map.
//
// Field names are never built by callers. Every name comes from a table
// computed once over the closed key space (Role, Attr, Slot), so a typo or an
// out-of-range party slot cannot produce a field that nothing else knows about.
package record

import (
	"fmt"
	"strconv"
)

// Role is the block of the form a field belongs to.
type Role uint8

const (
	// RoleParty is a secondary party (procurator or partner), addressed by Slot.
	RoleParty Role = iota
	// RolePrincipal is the vehicle owner signing the document.
	RolePrincipal
	// RoleEntity is the company owner, used in entity mode.
	RoleEntity
	RoleVehicle
	RoleDocument
)

var roleMarkers = map[Role]string{
	RoleParty:     "",
	RolePrincipal: "Proprietario",
	RoleEntity:    "Empresa",
	RoleVehicle:   "",
	RoleDocument:  "",
}

// Attr is a single attribute inside a role block.
type Attr uint8

// Identity and address attributes, shared by parties, principal and entity.
const (
	AttrName Attr = iota
	AttrTaxID
	AttrGovID
	AttrNationality
	AttrMaritalStatus
	AttrProfession
	AttrRegistration
	AttrStreet
	AttrComplement
	AttrCity
	AttrState
	AttrPostalCode
	AttrBirthDate
	AttrFatherName
	AttrMotherName
	AttrPhone
	AttrEmail
	identityEnd
)

// Vehicle attributes.
const (
	AttrPlate Attr = iota + identityEnd
	AttrRenavam
	AttrChassis
	AttrModel
	AttrFabricationYear
	AttrModelYear
	AttrColor
	AttrFuel
	vehicleEnd
)

// Document-level attributes.
const (
	AttrDocumentKind Attr = iota + vehicleEnd
	AttrEntityMode
	AttrSignCity
	AttrSignDate
	AttrInfraction
	AttrAuthority
	AttrInfractionDate
	AttrGrounds
	AttrPurpose
	documentEnd
)

var attrNames = map[Attr]string{
	AttrName:          "nome",
	AttrTaxID:         "cpf",
	AttrGovID:         "rg",
	AttrNationality:   "nacionalidade",
	AttrMaritalStatus: "estadoCivil",
	AttrProfession:    "profissao",
	AttrRegistration:  "registro",
	AttrStreet:        "endereco",
	AttrComplement:    "complemento",
	AttrCity:          "municipio",
	AttrState:         "estado",
	AttrPostalCode:    "cep",
	AttrBirthDate:     "dataNascimento",
	AttrFatherName:    "nomePai",
	AttrMotherName:    "nomeMae",
	AttrPhone:         "telefone",
	AttrEmail:         "email",

	AttrPlate:           "placa",
	AttrRenavam:         "renavam",
	AttrChassis:         "chassi",
	AttrModel:           "marcaModelo",
	AttrFabricationYear: "anoFabricacao",
	AttrModelYear:       "anoModelo",
	AttrColor:           "cor",
	AttrFuel:            "combustivel",

	AttrDocumentKind:   "tipoDocumento",
	AttrEntityMode:     "isEntityMode",
	AttrSignCity:       "localAssinatura",
	AttrSignDate:       "dataAssinatura",
	AttrInfraction:     "autoInfracao",
	AttrAuthority:      "orgaoAutuador",
	AttrInfractionDate: "dataInfracao",
	AttrGrounds:        "fundamentacao",
	AttrPurpose:        "finalidade",
}

// Slot is one of the six secondary-party positions. The order of Slots is the
// probing order used when the document enumerates parties.
type Slot uint8

const (
	SlotFirst Slot = iota
	Slot1
	Slot2
	Slot3
	Slot4
	Slot5
)

// Slots lists every party slot in probing order: "", "1", "2", "3", "4", "5".
var Slots = [...]Slot{SlotFirst, Slot1, Slot2, Slot3, Slot4, Slot5}

// Suffix is the string appended to party field names.
func (s Slot) Suffix() string {
	if s == SlotFirst {
		return ""
	}
	return strconv.Itoa(int(s))
}

// ParseSlot is the inverse of Suffix.
func ParseSlot(suffix string) (Slot, bool) {
	for _, s := range Slots {
		if s.Suffix() == suffix {
			return s, true
		}
	}
	return 0, false
}

// SlotForIndex maps a zero-based partner index to its slot: index 0 is the
// unsuffixed slot, index i is suffix i+1. Indexes past slot 5 have no slot.
func SlotForIndex(i int) (Slot, bool) {
	if i < 0 {
		return 0, false
	}
	if i == 0 {
		return SlotFirst, true
	}
	if i+1 > int(Slot5) {
		return 0, false
	}
	return Slot(i + 1), true
}

// Owner is a role block together with its slot. Only RoleParty uses slots
// other than SlotFirst.
type Owner struct {
	Role Role
	Slot Slot
}

// Key identifies one field of the record.
type Key struct {
	Role Role
	Attr Attr
	Slot Slot
}

// Owner returns the block this key belongs to.
func (k Key) Owner() Owner {
	return Owner{Role: k.Role, Slot: k.Slot}
}

// Key returns the key of attribute a inside this block.
func (o Owner) Key(a Attr) Key {
	return Key{Role: o.Role, Attr: a, Slot: o.Slot}
}

// Principal, Entity, Party, Vehicle and Doc build keys for each role.
func Principal(a Attr) Key { return Key{Role: RolePrincipal, Attr: a} }
func Entity(a Attr) Key { return Key{Role: RoleEntity, Attr: a} }
func Party(s Slot, a Attr) Key {
	return Key{Role: RoleParty, Attr: a, Slot: s}
}
func Vehicle(a Attr) Key { return Key{Role: RoleVehicle, Attr: a} }
func Doc(a Attr) Key { return Key{Role: RoleDocument, Attr: a} }

// PartyOwner is the block of the party in slot s.
func PartyOwner(s Slot) Owner {
	return Owner{Role: RoleParty, Slot: s}
}

// WithAttr returns the key of another attribute in the same block.
func (k Key) WithAttr(a Attr) Key {
	k.Attr = a
	return k
}

// Valid reports whether k is part of the key table.
func (k Key) Valid() bool {
	_, ok := names[k]
	return ok
}

func (k Key) String() string {
	if !k.Valid() {
		return fmt.Sprintf("invalid(%d,%d,%d)", k.Role, k.Attr, k.Slot)
	}
	return names[k]
}

// IsIdentity reports whether a is an identity or address attribute.
func (a Attr) IsIdentity() bool {
	return a < identityEnd
}

// Marker is the substring a role adds to its field names.
func (r Role) Marker() string {
	return roleMarkers[r]
}

// Name returns the form field name of k. It panics on a key outside the table,
// which can only come from a programming error.
func (k Key) Name() string {
	n, ok := names[k]
	if !ok {
		panic(fmt.Sprintf("record: invalid key %+v", k))
	}
	return n
}

// Parse resolves a form field name back to its key.
func Parse(name string) (Key, bool) {
	k, ok := byName[name]
	return k, ok
}

// AddressFields are the keys an address lookup writes into.
type AddressFields struct {
	Street     Key
	Complement Key
	City       Key
	State      Key
	PostalCode Key
}

// AddressKeys returns the address fields of a block.
func AddressKeys(o Owner) (AddressFields, bool) {
	f, ok := addressTable[o]
	return f, ok
}

// IdentityAttrs lists the attributes copied when a party is imported.
var IdentityAttrs = []Attr{
	AttrName, AttrTaxID, AttrGovID, AttrNationality, AttrMaritalStatus, AttrProfession,
	AttrStreet, AttrComplement, AttrCity, AttrState, AttrPostalCode,
}

var (
	names        = map[Key]string{}
	byName       = map[string]Key{}
	addressTable = map[Owner]AddressFields{}
)

func init() {
	owners := []Owner{{Role: RolePrincipal}, {Role: RoleEntity}}
	for _, s := range Slots {
		owners = append(owners, PartyOwner(s))
	}

	for _, o := range owners {
		for a := AttrName; a < identityEnd; a++ {
			base := attrNames[a]
			if o.Role == RoleEntity && a == AttrTaxID {
				base = "cnpj"
			}
			register(o.Key(a), base+o.Role.Marker()+o.Slot.Suffix())
		}
		addressTable[o] = AddressFields{
			Street:     o.Key(AttrStreet),
			Complement: o.Key(AttrComplement),
			City:       o.Key(AttrCity),
			State:      o.Key(AttrState),
			PostalCode: o.Key(AttrPostalCode),
		}
	}
	for a := AttrPlate; a < vehicleEnd; a++ {
		register(Vehicle(a), attrNames[a])
	}
	for a := AttrDocumentKind; a < documentEnd; a++ {
		register(Doc(a), attrNames[a])
	}
}

func register(k Key, name string) {
	if prev, dup := byName[name]; dup {
		panic(fmt.Sprintf("record: field name %q used by %+v and %+v", name, prev, k))
	}
	names[k] = name
	byName[name] = k
}

// ParseAttr resolves a bare attribute name such as "nome" or "placa". The
// entity spelling "cnpj" resolves to AttrTaxID.
func ParseAttr(name string) (Attr, bool) {
	if name == "cnpj" {
		return AttrTaxID, true
	}
	for a, n := range attrNames {
		if n == name {
			return a, true
		}
	}
	return 0, false
}
