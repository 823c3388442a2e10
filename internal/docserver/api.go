package docserver

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/evidenceledger/docgen/internal/database"
	"github.com/evidenceledger/docgen/internal/extract"
	"github.com/evidenceledger/docgen/internal/party"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/session"
	"github.com/evidenceledger/docgen/internal/submit"
	"github.com/gofiber/fiber/v2"
)

const (
	localSession = "session"

	contactSearchLimit = 10
	maxExtractSize     = 10 * 1024 * 1024
)

func (s *Server) registerSessionHandlers() {

	// Starting a session does not require one
	s.httpServer.Post("/api/session", s.StartSession)

	api := s.httpServer.Group("/api/session", s.requireSession)

	api.Get("/", s.GetSession)
	api.Post("/field", s.FieldChanged)
	api.Post("/count", s.SetPartyCount)
	api.Post("/import/company/:id", s.ImportCompany)
	api.Post("/import/contact/:code", s.ImportContact)
	api.Get("/contacts", s.SearchContacts)
	api.Post("/extract/:section", s.Extract)
	api.Post("/submit", s.Submit)
	api.Get("/document", s.Document)
}

// requireSession loads the session bound to the request cookie.
func (s *Server) requireSession(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost && strings.TrimSuffix(c.Path(), "/") == "/api/session" {
		return c.Next()
	}
	st, found := s.sessionFromCookie(c)
	if !found {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no active session"})
	}
	c.Locals(localSession, st)

	// The session expiry slides with every request, so does the cookie
	cookie, err := s.cookies.generate(st.ID, st.DocumentID)
	if err != nil {
		return err
	}
	c.Cookie(cookie)

	return c.Next()
}

func currentSession(c *fiber.Ctx) *session.Store {
	return c.Locals(localSession).(*session.Store)
}

type sessionView struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"documentId"`
	Kind       string            `json:"kind"`
	PartyCount int               `json:"partyCount"`
	Fields     map[string]string `json:"fields"`
	Advisories []string          `json:"advisories,omitempty"`
}

func viewOf(st *session.Store) sessionView {
	rec := st.Snapshot()
	return sessionView{
		ID:         st.ID,
		DocumentID: st.DocumentID,
		Kind:       string(rec.Kind()),
		PartyCount: st.PartyCount(),
		Fields:     rec,
		Advisories: st.TakeAdvisories(),
	}
}

// StartSession creates a new session and sets its cookie. Any previous
// session of the browser is dropped.
func (s *Server) StartSession(c *fiber.Ctx) error {
	if old, found := s.sessionFromCookie(c); found {
		s.sessions.Drop(old.ID)
	}

	st, err := s.startSession(c)
	if err != nil {
		return err
	}

	var body struct {
		Kind string `json:"kind"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if body.Kind != "" {
		if _, ok := kindTitle(record.DocumentKind(body.Kind)); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown document kind"})
		}
		st.Merge(record.Delta{record.Doc(record.AttrDocumentKind): body.Kind})
	}

	return c.Status(fiber.StatusCreated).JSON(viewOf(st))
}

// GetSession returns the record and the pending advisories.
func (s *Server) GetSession(c *fiber.Ctx) error {
	return c.JSON(viewOf(currentSession(c)))
}

// FieldChanged stores a field and starts the lookup it triggers.
func (s *Server) FieldChanged(c *fiber.Ctx) error {
	var body struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	key, ok := record.Parse(body.Field)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown field: " + body.Field})
	}

	change := s.autofill.FieldChanged(c.UserContext(), currentSession(c), key, body.Value)
	return c.JSON(change)
}

// SetPartyCount changes the number of party blocks shown.
func (s *Server) SetPartyCount(c *fiber.Ctx) error {
	var body struct {
		Count int `json:"count"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var count int
	currentSession(c).Parties(func(acc *party.Accumulator) {
		count = acc.SetCount(body.Count)
	})
	return c.JSON(fiber.Map{"count": count})
}

// ImportCompany copies a catalog company into the session record.
func (s *Server) ImportCompany(c *fiber.Ctx) error {
	company, err := s.db.GetCompany(c.Params("id"))
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "company not found"})
	}
	if err != nil {
		return err
	}

	st := currentSession(c)
	delta := party.ImportFromCompany(company)
	st.Merge(delta)
	st.Parties(func(acc *party.Accumulator) {
		acc.SetCount(len(company.Partners))
	})

	slog.Info("Company imported", "session", st.ID, "company", company.ID, "partners", len(company.Partners))
	return c.JSON(fiber.Map{"fields": delta.Names(), "partyCount": st.PartyCount()})
}

// ImportContact copies a catalog contact into a party slot. Unknown codes
// change nothing.
func (s *Server) ImportContact(c *fiber.Ctx) error {
	slot, ok := record.ParseSlot(c.Query("slot"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid slot"})
	}

	delta, err := party.ImportContactByCode(s.db, c.Params("code"), slot)
	if err != nil {
		return err
	}
	currentSession(c).Merge(delta)

	return c.JSON(fiber.Map{"fields": delta.Names()})
}

// SearchContacts answers the contact search box. A search superseded by a
// newer one from the same session answers 204.
func (s *Server) SearchContacts(c *fiber.Ctx) error {
	contacts, superseded, err := s.autofill.SearchContacts(c.UserContext(), currentSession(c), c.Query("q"), contactSearchLimit)
	if err != nil {
		return err
	}
	if superseded {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if contacts == nil {
		return c.JSON([]any{})
	}
	return c.JSON(contacts)
}

// Extract reads a document image with the model and merges what it found.
// Without a configured model it answers with no fields.
func (s *Server) Extract(c *fiber.Ctx) error {
	section := extract.Section(c.Params("section"))
	slot, ok := record.ParseSlot(c.Query("slot"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid slot"})
	}

	if !s.extractor.Enabled() {
		return c.JSON(fiber.Map{"enabled": false, "fields": []string{}})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file"})
	}
	if fh.Size > maxExtractSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large"})
	}
	data, err := readFormFile(fh)
	if err != nil {
		return err
	}

	fields, err := s.extractor.Extract(c.UserContext(), section, slot, data, fh.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, extract.ErrDisabled):
		return c.JSON(fiber.Map{"enabled": false, "fields": []string{}})
	case errors.Is(err, extract.ErrUnknownSection):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown section"})
	case err != nil:
		slog.Error("Extraction failed", "section", section, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "extraction failed"})
	}

	var applied record.Delta
	currentSession(c).Update(func(rec record.Record) {
		applied = fields.Delta(rec)
		rec.Apply(applied)
	})

	return c.JSON(fiber.Map{"enabled": true, "fields": applied.Names()})
}

// Submit uploads the attachments, stores the document and prints it.
// File parts are named after their record field; the optional form value
// lastModified.<field> carries the file's modification time in milliseconds.
func (s *Server) Submit(c *fiber.Ctx) error {
	st := currentSession(c)

	var attachments []submit.Attachment
	if form, err := c.MultipartForm(); err == nil {
		for field, files := range form.File {
			for _, fh := range files {
				attachments = append(attachments, attachmentOf(form, field, fh))
			}
		}
	}

	result, err := s.submit.Submit(c.UserContext(), st, attachments)
	if errors.Is(err, session.ErrSaveInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		slog.Error("Submit failed", "session", st.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Não foi possível enviar o documento. Tente novamente."})
	}

	return c.JSON(result)
}

// Document returns the composed document as an HTML fragment.
func (s *Server) Document(c *fiber.Ctx) error {
	doc, err := s.composer.Compose(currentSession(c).Snapshot())
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(doc)
}

func attachmentOf(form *multipart.Form, field string, fh *multipart.FileHeader) submit.Attachment {
	var lastModified int64
	if v := form.Value["lastModified."+field]; len(v) > 0 {
		lastModified, _ = strconv.ParseInt(v[0], 10, 64)
	}
	return submit.Attachment{
		Field:        field,
		Name:         fh.Filename,
		Size:         fh.Size,
		LastModified: lastModified,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
