package docserver

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"

	"github.com/evidenceledger/docgen/internal/database"
	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/party"
	"github.com/evidenceledger/docgen/internal/record"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"
)

const adminUser = "admin"

// adminPasswordHash accepts a bcrypt hash as is and hashes anything else.
func adminPasswordHash(password string) ([]byte, error) {
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return []byte(password), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errl.Errorf("hashing admin password: %w", err)
	}
	return hash, nil
}

func (s *Server) registerAdminHandlers(adminPassword string) error {

	hash, err := adminPasswordHash(adminPassword)
	if err != nil {
		return err
	}

	admin := s.httpServer.Group("/admin")

	// Protect the admin area with basic auth
	adminAuth := basicauth.New(basicauth.Config{
		Realm: "Admin Area",
		Authorizer: func(user, pass string) bool {
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(adminUser)) == 1
			passOK := bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
			return userOK && passOK
		},
	})

	admin.Use(adminAuth)

	admin.Get("/", s.AdminDashboard)

	admin.Get("/companies", s.ListCompanies)
	admin.Get("/companies/:id", s.GetCompany)
	admin.Post("/companies", s.SaveCompany)
	admin.Put("/companies/:id", s.SaveCompany)
	admin.Delete("/companies/:id", s.DeleteCompany)
	admin.Post("/companies/:id/count", s.SetPartnerCount)
	admin.Post("/companies/:id/partners/:index", s.UpdatePartner)

	admin.Get("/contacts", s.ListContacts)
	admin.Get("/contacts/:code", s.GetContact)
	admin.Post("/contacts", s.SaveContact)
	admin.Put("/contacts/:code", s.SaveContact)
	admin.Delete("/contacts/:code", s.DeleteContact)

	return nil
}

// catalogError answers the errors of the catalog operations.
func catalogError(c *fiber.Ctx, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	var verr validation.Errors
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "fields": verr})
	}
	return errl.Error(err)
}

// AdminDashboard shows both catalogs.
func (s *Server) AdminDashboard(c *fiber.Ctx) error {
	companies, err := s.db.ListCompanies()
	if err != nil {
		return errl.Errorf("failed to list companies: %w", err)
	}
	contacts, err := s.db.ListContacts()
	if err != nil {
		return errl.Errorf("failed to list contacts: %w", err)
	}

	return s.htmlRender.Render(c, "admin", fiber.Map{
		"companies": companies,
		"contacts":  contacts,
	})
}

// ListCompanies lists all companies
func (s *Server) ListCompanies(c *fiber.Ctx) error {
	companies, err := s.db.ListCompanies()
	if err != nil {
		return errl.Errorf("failed to list companies: %w", err)
	}
	if companies == nil {
		companies = []models.Company{}
	}
	return c.JSON(companies)
}

func (s *Server) GetCompany(c *fiber.Ctx) error {
	company, err := s.db.GetCompany(c.Params("id"))
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(company)
}

// SaveCompany creates a company, or replaces the one named in the path.
func (s *Server) SaveCompany(c *fiber.Ctx) error {
	var company models.Company
	if err := c.BodyParser(&company); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if id := c.Params("id"); id != "" {
		company.ID = id
	}

	if err := s.db.SaveCompany(&company); err != nil {
		return catalogError(c, err)
	}
	return c.JSON(company)
}

func (s *Server) DeleteCompany(c *fiber.Ctx) error {
	if err := s.db.DeleteCompany(c.Params("id")); err != nil {
		return catalogError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// editPartners loads a company, lets fn change its partners and saves it.
func (s *Server) editPartners(c *fiber.Ctx, fn func(acc *party.Accumulator) error) error {
	company, err := s.db.GetCompany(c.Params("id"))
	if err != nil {
		return catalogError(c, err)
	}

	acc := party.FromCompany(company)
	if err := fn(&acc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	acc.ApplyTo(company)

	if err := s.db.SaveCompany(company); err != nil {
		return catalogError(c, err)
	}
	return c.JSON(company)
}

// SetPartnerCount changes the declared number of partners of a company.
func (s *Server) SetPartnerCount(c *fiber.Ctx) error {
	var body struct {
		Count int `json:"count"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	return s.editPartners(c, func(acc *party.Accumulator) error {
		acc.SetCount(body.Count)
		return nil
	})
}

// UpdatePartner writes one field of the partner at :index. The body is
// {"field": "nome", "value": "..."}.
func (s *Server) UpdatePartner(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid partner index"})
	}
	var body struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	attr, ok := record.ParseAttr(body.Field)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown field: " + body.Field})
	}

	return s.editPartners(c, func(acc *party.Accumulator) error {
		return acc.UpdatePartner(index, attr, strings.TrimSpace(body.Value))
	})
}

func (s *Server) ListContacts(c *fiber.Ctx) error {
	contacts, err := s.db.ListContacts()
	if err != nil {
		return errl.Errorf("failed to list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return c.JSON(contacts)
}

func (s *Server) GetContact(c *fiber.Ctx) error {
	contact, err := s.db.GetContact(c.Params("code"))
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(contact)
}

// SaveContact creates a contact, or replaces the one named in the path.
func (s *Server) SaveContact(c *fiber.Ctx) error {
	var contact models.Contact
	if err := c.BodyParser(&contact); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if code := c.Params("code"); code != "" {
		contact.Code = code
	}

	if err := s.db.SaveContact(&contact); err != nil {
		return catalogError(c, err)
	}
	return c.JSON(contact)
}

func (s *Server) DeleteContact(c *fiber.Ctx) error {
	if err := s.db.DeleteContact(c.Params("code")); err != nil {
		return catalogError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
