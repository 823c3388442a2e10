// Package extract reads form data out of document photos and scans with a
// generative model. It is optional: without a credential the extractor is
// disabled and every call returns ErrDisabled.
package extract

import (
	"context"
	_ "embed"
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/evidenceledger/docgen/internal/autofill"
	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/taxid"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

var (
	// ErrDisabled is returned when no model is configured.
	ErrDisabled       = errors.New("extraction disabled")
	ErrUnknownSection = errors.New("unknown extraction section")
	ErrNoJSON         = errors.New("no JSON object in model answer")
)

// Section tells the extractor what kind of document it receives and where in
// the record its data goes.
type Section string

const (
	SectionVehicle           Section = "vehicle"
	SectionPrincipalDocument Section = "principal_document"
	SectionPrincipalAddress  Section = "principal_address"
	SectionPartyDocument     Section = "party_document"
	SectionEntityDocument    Section = "entity_document"
	SectionPartnerDocument   Section = "partner_document"
)

// Owner returns the record block filled by a section. Party and partner
// documents go to the given slot.
func (s Section) Owner(slot record.Slot) (record.Owner, bool) {
	switch s {
	case SectionVehicle:
		return record.Owner{Role: record.RoleVehicle}, true
	case SectionPrincipalDocument, SectionPrincipalAddress:
		return record.Owner{Role: record.RolePrincipal}, true
	case SectionEntityDocument:
		return record.Owner{Role: record.RoleEntity}, true
	case SectionPartyDocument, SectionPartnerDocument:
		return record.PartyOwner(slot), true
	}
	return record.Owner{}, false
}

// Generator sends a prompt and an inline file to a model and returns its
// free-text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
}

//go:embed prompts.yaml
var promptsYAML []byte

type sectionPrompt struct {
	Prompt string   `yaml:"prompt"`
	Fields []string `yaml:"fields"`
}

type promptCatalog struct {
	Model    string                    `yaml:"model"`
	Preamble string                    `yaml:"preamble"`
	Sections map[string]sectionPrompt `yaml:"sections"`
}

func loadCatalog() (*promptCatalog, error) {
	var c promptCatalog
	if err := yaml.Unmarshal(promptsYAML, &c); err != nil {
		return nil, errl.Errorf("parsing prompt catalog: %w", err)
	}
	for name, sp := range c.Sections {
		for _, f := range sp.Fields {
			if _, ok := record.ParseAttr(f); !ok {
				return nil, errl.Errorf("section %s: unknown field %q", name, f)
			}
		}
	}
	return &c, nil
}

// DefaultModel is the model named in the embedded prompt catalog.
func DefaultModel() string {
	c, err := loadCatalog()
	if err != nil {
		return ""
	}
	return c.Model
}

// Extractor turns documents into record fields.
type Extractor struct {
	gen     Generator
	catalog *promptCatalog
}

// New returns an extractor using gen. A nil gen gives a disabled extractor.
func New(gen Generator) (*Extractor, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return &Extractor{gen: gen, catalog: c}, nil
}

// Enabled reports whether a model is configured.
func (e *Extractor) Enabled() bool {
	return e != nil && e.gen != nil
}

// Fields holds extracted values keyed by record field, already normalized.
type Fields struct {
	values record.Delta
}

// Len is the number of extracted values.
func (f Fields) Len() int {
	return len(f.values)
}

// Delta returns the changes to apply to rec. Like the registry lookup, an
// extracted government id never replaces one the user typed.
func (f Fields) Delta(rec record.Record) record.Delta {
	d := record.Delta{}
	for k, v := range f.values {
		if k.Attr == record.AttrGovID && rec.Has(k) {
			continue
		}
		d.Set(k, v)
	}
	return d
}

// Extract sends data to the model with the prompt of section and maps the
// JSON object found in the answer onto the section's block.
func (e *Extractor) Extract(ctx context.Context, section Section, slot record.Slot, data []byte, mimeType string) (Fields, error) {
	if !e.Enabled() {
		return Fields{}, ErrDisabled
	}
	sp, ok := e.catalog.Sections[string(section)]
	if !ok {
		return Fields{}, errl.Errorf("%w: %s", ErrUnknownSection, section)
	}
	owner, _ := section.Owner(slot)

	prompt := e.catalog.Preamble + "\n" + sp.Prompt + "\nChaves: " + strings.Join(sp.Fields, ", ")
	answer, err := e.gen.Generate(ctx, prompt, data, mimeType)
	if err != nil {
		return Fields{}, errl.Errorf("extracting %s: %w", section, err)
	}

	raw, err := FirstJSONObject(answer)
	if err != nil {
		return Fields{}, errl.Error(err)
	}
	return mapFields(owner, sp.Fields, raw), nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// FirstJSONObject decodes the outermost {...} block of a free-text answer,
// ignoring any prose around it.
func FirstJSONObject(answer string) (map[string]any, error) {
	block := jsonObject.FindString(answer)
	if block == "" {
		return nil, ErrNoJSON
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil, errl.Errorf("%w: %v", ErrNoJSON, err)
	}
	return out, nil
}

func mapFields(owner record.Owner, allowed []string, raw map[string]any) Fields {
	f := Fields{values: record.Delta{}}
	for name, v := range raw {
		if !slices.Contains(allowed, name) {
			continue
		}
		attr, _ := record.ParseAttr(name)
		key := owner.Key(attr)
		if !key.Valid() {
			continue
		}
		s := stringify(v)
		if s == "" || s == "null" {
			continue
		}
		f.values.Set(key, normalize(attr, s))
	}
	return f
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func normalize(a record.Attr, v string) string {
	switch a {
	case record.AttrTaxID, record.AttrRenavam:
		return taxid.Digits(v)
	case record.AttrName, record.AttrFatherName, record.AttrMotherName, record.AttrPlate, record.AttrChassis:
		return autofill.Upper(v)
	case record.AttrBirthDate:
		return autofill.FormatDate(v)
	}
	return v
}
