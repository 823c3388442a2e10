package database

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/taxid"
	"github.com/goccy/go-json"
)

// newCode draws a numeric code of n digits not yet used in collection.
func (d *Database) newCode(collection string, n int) (string, error) {
	limit := 1
	for i := 0; i < n; i++ {
		limit *= 10
	}
	for range 20 {
		code := fmt.Sprintf("%0*d", n, rand.IntN(limit))
		exists, err := d.Exists(collection, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errl.Errorf("no free code in %s", collection)
}

// SaveCompany validates and stores a company, replacing any previous version.
// A company without id gets a fresh 8-digit one.
func (d *Database) SaveCompany(c *models.Company) error {
	c.CNPJ = taxid.Digits(c.CNPJ)
	c.CEP = taxid.Digits(c.CEP)
	c.Nome = strings.TrimSpace(c.Nome)
	for i := range c.Partners {
		c.Partners[i].CPF = taxid.Digits(c.Partners[i].CPF)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if c.ID == "" {
		id, err := d.newCode(Companies, 8)
		if err != nil {
			return err
		}
		c.ID = id
	}
	c.UpdatedAt = time.Now().UTC()

	if err := d.Replace(Companies, c.ID, c); err != nil {
		return err
	}
	slog.Info("Saved company", "id", c.ID, "cnpj", c.CNPJ)
	return nil
}

// GetCompany returns the company with the given id.
func (d *Database) GetCompany(id string) (*models.Company, error) {
	var c models.Company
	if err := d.Get(Companies, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCompanies returns every company, most recently updated first.
func (d *Database) ListCompanies() ([]models.Company, error) {
	var out []models.Company
	err := d.list(
		`SELECT data FROM records WHERE collection = ? ORDER BY updated_at DESC`,
		[]any{Companies},
		func(data []byte) error {
			var c models.Company
			if err := json.Unmarshal(data, &c); err != nil {
				return errl.Errorf("failed to unmarshal company: %w", err)
			}
			out = append(out, c)
			return nil
		},
	)
	return out, err
}

// DeleteCompany removes a company.
func (d *Database) DeleteCompany(id string) error {
	return d.Delete(Companies, id)
}

// SaveContact validates and stores a contact. A contact without code gets a
// fresh 5-digit one. Names are stored uppercase so that search is
// case-insensitive for accented letters too.
func (d *Database) SaveContact(c *models.Contact) error {
	c.Nome = strings.ToUpper(strings.TrimSpace(c.Nome))
	c.CPF = taxid.Digits(c.CPF)
	c.CEP = taxid.Digits(c.CEP)
	c.Telefone = taxid.Digits(c.Telefone)
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Code == "" {
		code, err := d.newCode(Contacts, 5)
		if err != nil {
			return err
		}
		c.Code = code
	}
	c.UpdatedAt = time.Now().UTC()

	if err := d.Replace(Contacts, c.Code, c); err != nil {
		return err
	}
	slog.Info("Saved contact", "code", c.Code)
	return nil
}

// GetContact returns the contact with the given code.
func (d *Database) GetContact(code string) (*models.Contact, error) {
	var c models.Contact
	if err := d.Get(Contacts, code, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteContact removes a contact.
func (d *Database) DeleteContact(code string) error {
	return d.Delete(Contacts, code)
}

// ListContacts returns every contact ordered by name.
func (d *Database) ListContacts() ([]models.Contact, error) {
	return d.queryContacts(
		`SELECT data FROM records WHERE collection = ? ORDER BY json_extract(data, '$.nome')`,
		Contacts,
	)
}

// SearchContacts finds contacts whose name contains query, or whose code
// starts with it.
func (d *Database) SearchContacts(query string, limit int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToUpper(strings.TrimSpace(query))
	like := "%" + escapeLike(q) + "%"
	return d.queryContacts(
		`SELECT data FROM records
		WHERE collection = ?
		AND (json_extract(data, '$.nome') LIKE ? ESCAPE '\' OR id LIKE ? ESCAPE '\')
		ORDER BY json_extract(data, '$.nome')
		LIMIT ?`,
		Contacts, like, escapeLike(q)+"%", limit,
	)
}

func (d *Database) queryContacts(query string, args ...any) ([]models.Contact, error) {
	var out []models.Contact
	err := d.list(query, args, func(data []byte) error {
		var c models.Contact
		if err := json.Unmarshal(data, &c); err != nil {
			return errl.Errorf("failed to unmarshal contact: %w", err)
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SaveDocument merges doc into the stored document with the same id. Fields
// not present in doc keep their stored value.
func (d *Database) SaveDocument(doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	return d.Upsert(Documents, doc.ID, doc)
}

// GetDocument returns a stored document.
func (d *Database) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := d.Get(Documents, id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
