package docserver

import (
	"html/template"
	"log/slog"

	"github.com/evidenceledger/docgen/internal/party"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/submit"
	"github.com/evidenceledger/docgen/internal/taxid"
	"github.com/gofiber/fiber/v2"
)

var viewFuncs = map[string]any{
	"taxid":  taxid.FormatTaxID,
	"counts": partyCounts,
}

// partyCounts lists the choices of the party count selector.
func partyCounts() []int {
	out := make([]int, 0, party.MaxParties)
	for n := party.MinParties; n <= party.MaxParties; n++ {
		out = append(out, n)
	}
	return out
}

var documentKinds = []struct {
	Kind  record.DocumentKind
	Title string
}{
	{record.KindPowerOfAttorney, "Procuração"},
	{record.KindAppeal, "Recurso de multa"},
}

func kindTitle(kind record.DocumentKind) (string, bool) {
	for _, k := range documentKinds {
		if k.Kind == kind {
			return k.Title, true
		}
	}
	return "", false
}

func (s *Server) registerPageHandlers() {
	s.httpServer.Get("/", s.Index)
	s.httpServer.Get("/form/:kind", s.FormPage)
	s.httpServer.Get("/preview", s.PreviewPage)
}

func (s *Server) renderError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	return s.htmlRender.Render(c, "error", fiber.Map{"message": message})
}

// Index lists the documents that can be generated.
func (s *Server) Index(c *fiber.Ctx) error {
	return s.htmlRender.Render(c, "index", fiber.Map{
		"kinds": documentKinds,
	})
}

// FormPage shows the form of a document kind, starting a session if the
// browser has none.
func (s *Server) FormPage(c *fiber.Ctx) error {
	kind := record.DocumentKind(c.Params("kind"))
	title, ok := kindTitle(kind)
	if !ok {
		return s.renderError(c, fiber.StatusNotFound, "Documento desconhecido")
	}

	st, found := s.sessionFromCookie(c)
	if !found {
		var err error
		if st, err = s.startSession(c); err != nil {
			slog.Error("Failed to start session", "error", err)
			return s.renderError(c, fiber.StatusInternalServerError, "Não foi possível iniciar a sessão")
		}
	}

	st.Merge(record.Delta{record.Doc(record.AttrDocumentKind): string(kind)})
	rec := st.Snapshot()

	return s.htmlRender.Render(c, "form", fiber.Map{
		"title":          title,
		"kind":           string(kind),
		"sections":       buildForm(rec, kind, st.PartyCount()),
		"partyCount":     st.PartyCount(),
		"entityMode":     rec.Bool(record.Doc(record.AttrEntityMode)),
		"extractEnabled": s.extractor.Enabled(),
		"advisories":     st.TakeAdvisories(),
	})
}

// PreviewPage shows the composed document of the current session.
func (s *Server) PreviewPage(c *fiber.Ctx) error {
	st, found := s.sessionFromCookie(c)
	if !found {
		return c.Redirect("/")
	}

	rec := st.Snapshot()
	doc, err := s.composer.Compose(rec)
	if err != nil {
		slog.Error("Failed to compose document", "session", st.ID, "error", err)
		return s.renderError(c, fiber.StatusInternalServerError, "Não foi possível montar o documento")
	}

	return s.htmlRender.Render(c, "preview", fiber.Map{
		"title":    submit.Title(rec),
		"kind":     string(rec.Kind()),
		"document": template.HTML(doc),
	})
}
