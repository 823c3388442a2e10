// Package compose renders the legal documents of a record as HTML.
//
// Composition is a pure function of the record: the preview shown while the
// form is edited and the page sent to the PDF rasterizer are byte-identical
// for the same record. Every value the template prints has a bracketed
// placeholder, so a partially filled record still reads as a document.
package compose

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"sync"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/html"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
)

//go:embed templates
var templatesFS embed.FS

// Composer renders documents from the embedded templates.
type Composer struct {
	tpl *html.Templates
}

// New loads the document templates.
func New() (*Composer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, errl.Error(err)
	}
	tpl, err := html.NewTemplates(sub, ".html", map[string]any{"ph": placeholder})
	if err != nil {
		return nil, err
	}
	return &Composer{tpl: tpl}, nil
}

var defaultComposer = sync.OnceValues(New)

// Compose renders rec with the default composer.
func Compose(rec record.Record) (string, error) {
	c, err := defaultComposer()
	if err != nil {
		return "", err
	}
	return c.Compose(rec)
}

// Compose renders the document selected by the record's document kind as an
// HTML fragment.
func (c *Composer) Compose(rec record.Record) (string, error) {
	return c.tpl.Execute(string(rec.Kind()), bindings(rec))
}

// Page renders the document as a standalone HTML page, ready to be printed.
func (c *Composer) Page(rec record.Record, title string) (string, error) {
	body, err := c.Compose(rec)
	if err != nil {
		return "", err
	}
	return c.tpl.Execute("page", map[string]any{
		"Title": title,
		"Body":  template.HTML(body),
	})
}

// placeholder returns v, or the label in brackets when v is blank.
func placeholder(v, label string) string {
	if strings.TrimSpace(v) == "" {
		return "[" + label + "]"
	}
	return v
}

type person struct {
	Name          string
	TaxID         string
	GovID         string
	Nationality   string
	MaritalStatus string
	Profession    string
	BirthDate     string
	Street        string
	Complement    string
	City          string
	State         string
	PostalCode    string
}

type vehicle struct {
	Plate           string
	Renavam         string
	Chassis         string
	Model           string
	FabricationYear string
	ModelYear       string
	Color           string
	Fuel            string
}

type document struct {
	SignCity       string
	SignDate       string
	Infraction     string
	Authority      string
	InfractionDate string
	Grounds        string
	Purpose        string
}

func blockOf(rec record.Record, o record.Owner) person {
	get := func(a record.Attr) string {
		return strings.TrimSpace(rec.Get(o.Key(a)))
	}
	return person{
		Name:          get(record.AttrName),
		TaxID:         taxid.FormatTaxID(get(record.AttrTaxID)),
		GovID:         get(record.AttrGovID),
		Nationality:   get(record.AttrNationality),
		MaritalStatus: get(record.AttrMaritalStatus),
		Profession:    get(record.AttrProfession),
		BirthDate:     get(record.AttrBirthDate),
		Street:        get(record.AttrStreet),
		Complement:    get(record.AttrComplement),
		City:          get(record.AttrCity),
		State:         get(record.AttrState),
		PostalCode:    taxid.NormalizePostalCode(get(record.AttrPostalCode)).Formatted,
	}
}

func bindings(rec record.Record) map[string]any {
	v := func(a record.Attr) string {
		return strings.TrimSpace(rec.Get(record.Vehicle(a)))
	}
	d := func(a record.Attr) string {
		return strings.TrimSpace(rec.Get(record.Doc(a)))
	}

	return map[string]any{
		"Entity":  rec.Bool(record.Doc(record.AttrEntityMode)),
		"Owner":   blockOf(rec, record.Owner{Role: record.RolePrincipal}),
		"Company": blockOf(rec, record.Owner{Role: record.RoleEntity}),
		"Parties": Parties(rec),
		"Vehicle": vehicle{
			Plate:           v(record.AttrPlate),
			Renavam:         v(record.AttrRenavam),
			Chassis:         v(record.AttrChassis),
			Model:           v(record.AttrModel),
			FabricationYear: v(record.AttrFabricationYear),
			ModelYear:       v(record.AttrModelYear),
			Color:           v(record.AttrColor),
			Fuel:            v(record.AttrFuel),
		},
		"Doc": document{
			SignCity:       d(record.AttrSignCity),
			SignDate:       d(record.AttrSignDate),
			Infraction:     d(record.AttrInfraction),
			Authority:      d(record.AttrAuthority),
			InfractionDate: d(record.AttrInfractionDate),
			Grounds:        d(record.AttrGrounds),
			Purpose:        d(record.AttrPurpose),
		},
	}
}
