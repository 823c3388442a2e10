package docserver

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evidenceledger/docgen/internal/autofill"
	"github.com/evidenceledger/docgen/internal/cache"
	"github.com/evidenceledger/docgen/internal/compose"
	"github.com/evidenceledger/docgen/internal/database"
	"github.com/evidenceledger/docgen/internal/extract"
	"github.com/evidenceledger/docgen/internal/lookup"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/session"
	"github.com/evidenceledger/docgen/internal/storage"
	"github.com/evidenceledger/docgen/internal/submit"
	"github.com/goccy/go-json"
)

const (
	testURL      = "https://docs.example.com"
	testPassword = "s3cret"
)

type noLookups struct{}

func (noLookups) Person(ctx context.Context, cpf string) lookup.Result {
	return lookup.NotFound{Query: cpf}
}

func (noLookups) Entity(ctx context.Context, cnpj string) lookup.Result {
	return lookup.NotFound{Query: cnpj}
}

func (noLookups) Postal(ctx context.Context, cep string) lookup.Result {
	return lookup.NotFound{Query: cep}
}

type fakePDF struct{}

func (fakePDF) Render(ctx context.Context, page string) ([]byte, error) {
	return []byte("%PDF-1.4 test"), nil
}

type testServer struct {
	*Server
	db *database.Database
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	db := database.New(filepath.Join(dir, "test.db"))
	if err := db.Initialize(false); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	bucket, err := storage.NewBucket(filepath.Join(dir, "files"), "/files")
	if err != nil {
		t.Fatal(err)
	}
	composer, err := compose.New()
	if err != nil {
		t.Fatal(err)
	}
	extractor, err := extract.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	sessions := session.NewManager(cache.New(time.Hour), time.Hour)
	sessions.SetDebounce(10 * time.Millisecond)
	af := autofill.New(noLookups{}, db)
	t.Cleanup(af.Wait)

	srv, err := New(Deps{
		DB:        db,
		Sessions:  sessions,
		Autofill:  af,
		Extractor: extractor,
		Composer:  composer,
		Submit: submit.New(submit.Options{
			Uploads:  bucket,
			Docs:     db,
			Composer: composer,
			PDF:      fakePDF{},
			BaseURL:  testURL,
			Phone:    "5511999998888",
		}),
	}, Config{
		Port:          "8010",
		URL:           testURL,
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
		FilesDir:      bucket.Root(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{Server: srv, db: db}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ts.httpServer.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonRequest(method, target string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

// startSession returns the session cookie of a new session.
func (ts *testServer) startSession(t *testing.T, kind string) *http.Cookie {
	t.Helper()
	resp := ts.do(t, jsonRequest(http.MethodPost, "/api/session", map[string]string{"kind": kind}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session: status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	return req
}

func withAdmin(req *http.Request) *http.Request {
	req.SetBasicAuth("admin", testPassword)
	return req
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestSessionRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no cookie: status %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-token"})
	if resp := ts.do(t, req); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad cookie: status %d", resp.StatusCode)
	}

	// A token signed with another secret is refused too
	other := &sessionCookies{issuer: testURL, secret: []byte("another-secret-of-enough-length"), ttl: time.Hour}
	forged, err := other.generate("some-session", "some-document")
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: forged.Value})
	if resp := ts.do(t, req); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged cookie: status %d", resp.StatusCode)
	}
}

func TestSessionCookieIsRefreshed(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "procuracao")
	first, err := ts.cookies.parse(cookie.Value)
	if err != nil {
		t.Fatal(err)
	}

	resp := ts.do(t, withCookie(httptest.NewRequest(http.MethodGet, "/api/session", nil), cookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var refreshed *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			refreshed = c
		}
	}
	if refreshed == nil {
		t.Fatal("session cookie not reissued")
	}
	id, err := ts.cookies.parse(refreshed.Value)
	if err != nil {
		t.Fatal(err)
	}
	if id != first {
		t.Errorf("session id = %q, want %q", id, first)
	}
	if refreshed.Expires.IsZero() {
		t.Error("reissued cookie has no expiry")
	}
}

func TestFieldChange(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "procuracao")

	resp := ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/field",
		map[string]string{"field": "cpfProprietario", "value": "529.982.247-25"}), cookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var change autofill.Change
	decode(t, resp, &change)
	if change.Stored != "52998224725" || change.Display != "529.982.247-25" {
		t.Errorf("change = %+v", change)
	}
	if change.Hint != "" {
		t.Errorf("valid CPF got hint %q", change.Hint)
	}
	if change.Action.Kind != autofill.ActionPerson {
		t.Errorf("action = %q, want person lookup", change.Action.Kind)
	}
	ts.autofill.Wait()

	resp = ts.do(t, withCookie(httptest.NewRequest(http.MethodGet, "/api/session", nil), cookie))
	var view sessionView
	decode(t, resp, &view)
	if view.Fields["cpfProprietario"] != "52998224725" {
		t.Errorf("stored cpf = %q", view.Fields["cpfProprietario"])
	}
	if view.Kind != "procuracao" {
		t.Errorf("kind = %q", view.Kind)
	}
	if len(view.Advisories) != 1 {
		t.Errorf("advisories = %v, want the lookup advisory once", view.Advisories)
	}
}

func TestFieldChangeUnknownField(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "")

	resp := ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/field",
		map[string]string{"field": "nome9", "value": "X"}), cookie))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestPartyCountIsClamped(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "")

	resp := ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/count", map[string]int{"count": 9}), cookie))
	var body map[string]int
	decode(t, resp, &body)
	if body["count"] != 5 {
		t.Errorf("count = %d, want 5", body["count"])
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/admin/companies", nil)); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous: status %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/companies", nil)
	req.SetBasicAuth("admin", "wrong")
	if resp := ts.do(t, req); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d", resp.StatusCode)
	}

	if resp := ts.do(t, withAdmin(httptest.NewRequest(http.MethodGet, "/admin/companies", nil))); resp.StatusCode != http.StatusOK {
		t.Errorf("admin: status %d", resp.StatusCode)
	}
}

func TestAdminPasswordHash(t *testing.T) {
	hash, err := adminPasswordHash("plain")
	if err != nil {
		t.Fatal(err)
	}
	again, err := adminPasswordHash(string(hash))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hash, again) {
		t.Error("a bcrypt hash should be used as is")
	}
}

func TestCompanyImport(t *testing.T) {
	ts := newTestServer(t)

	company := models.Company{
		Nome: "TRANSPORTES EXEMPLO LTDA",
		CNPJ: "11.222.333/0001-81",
		Partners: []models.Partner{
			{Nome: "JOAO SILVA", CPF: "529.982.247-25"},
			{Nome: "MARIA SOUZA"},
		},
		PartnerCount: 2,
	}
	resp := ts.do(t, withAdmin(jsonRequest(http.MethodPost, "/admin/companies", company)))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("save company: status %d: %s", resp.StatusCode, body)
	}
	var saved models.Company
	decode(t, resp, &saved)
	if len(saved.ID) != 8 || saved.CNPJ != "11222333000181" {
		t.Fatalf("saved = %+v", saved)
	}

	cookie := ts.startSession(t, "procuracao")
	resp = ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/import/company/"+saved.ID, nil), cookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import: status %d", resp.StatusCode)
	}

	resp = ts.do(t, withCookie(httptest.NewRequest(http.MethodGet, "/api/session", nil), cookie))
	var view sessionView
	decode(t, resp, &view)

	want := map[string]string{
		"nome":         "JOAO SILVA",
		"cpf":          "52998224725",
		"nome2":        "MARIA SOUZA",
		"nomeEmpresa":  "TRANSPORTES EXEMPLO LTDA",
		"cnpjEmpresa":  "11222333000181",
		"isEntityMode": "true",
	}
	for k, v := range want {
		if view.Fields[k] != v {
			t.Errorf("%s = %q, want %q", k, view.Fields[k], v)
		}
	}
	if view.PartyCount != 2 {
		t.Errorf("party count = %d", view.PartyCount)
	}

	resp = ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/import/company/99999999", nil), cookie))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing company: status %d", resp.StatusCode)
	}
}

func TestAdminPartnerUpdate(t *testing.T) {
	ts := newTestServer(t)

	company := &models.Company{Nome: "ACME", CNPJ: "11222333000181", PartnerCount: 3}
	if err := ts.db.SaveCompany(company); err != nil {
		t.Fatal(err)
	}

	resp := ts.do(t, withAdmin(jsonRequest(http.MethodPost, "/admin/companies/"+company.ID+"/partners/4",
		map[string]string{"field": "nome", "value": "X"})))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var saved models.Company
	decode(t, resp, &saved)
	if len(saved.Partners) != 5 || saved.Partners[4].Nome != "X" {
		t.Fatalf("partners = %+v", saved.Partners)
	}
	if saved.Partners[2].Nacionalidade != "brasileiro" {
		t.Errorf("materialized partner nationality = %q", saved.Partners[2].Nacionalidade)
	}
	if saved.PartnerCount != 3 {
		t.Errorf("partner count = %d, want 3", saved.PartnerCount)
	}

	resp = ts.do(t, withAdmin(jsonRequest(http.MethodPost, "/admin/companies/"+company.ID+"/partners/0",
		map[string]string{"field": "placa", "value": "ABC1D23"})))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("vehicle field on partner: status %d", resp.StatusCode)
	}

	resp = ts.do(t, withAdmin(jsonRequest(http.MethodPost, "/admin/companies/"+company.ID+"/partners/100000000",
		map[string]string{"field": "nome", "value": "X"})))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out of range partner index: status %d", resp.StatusCode)
	}
	stored, err := ts.db.GetCompany(company.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Partners) != 5 {
		t.Errorf("stored partners = %d, want 5", len(stored.Partners))
	}
}

func TestAdminContactValidation(t *testing.T) {
	ts := newTestServer(t)

	bad := map[string]string{"nome": "ANA", "cpf": "111.111.111-11"}
	if resp := ts.do(t, withAdmin(jsonRequest(http.MethodPost, "/admin/contacts", bad))); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid cpf: status %d", resp.StatusCode)
	}

	good := map[string]string{"nome": "ana lima", "cpf": "529.982.247-25"}
	resp := ts.do(t, withAdmin(jsonRequest(http.MethodPost, "/admin/contacts", good)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var contact models.Contact
	decode(t, resp, &contact)

	cookie := ts.startSession(t, "")
	ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/import/contact/"+contact.Code+"?slot=3", nil), cookie))

	resp = ts.do(t, withCookie(httptest.NewRequest(http.MethodGet, "/api/session", nil), cookie))
	var view sessionView
	decode(t, resp, &view)
	if view.Fields["nome3"] != "ANA LIMA" {
		t.Errorf("nome3 = %q", view.Fields["nome3"])
	}
}

func TestExtractDisabled(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "")

	resp := ts.do(t, withCookie(httptest.NewRequest(http.MethodPost, "/api/session/extract/vehicle", nil), cookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body struct {
		Enabled bool     `json:"enabled"`
		Fields  []string `json:"fields"`
	}
	decode(t, resp, &body)
	if body.Enabled || len(body.Fields) != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestDocumentFragment(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "procuracao")
	ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/field",
		map[string]string{"field": "nomeProprietario", "value": "JOAO SILVA"}), cookie))

	resp := ts.do(t, withCookie(httptest.NewRequest(http.MethodGet, "/api/session/document", nil), cookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "JOAO SILVA") {
		t.Errorf("document does not name the owner: %s", body)
	}
}

func TestSubmit(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.startSession(t, "procuracao")
	ts.do(t, withCookie(jsonRequest(http.MethodPost, "/api/session/field",
		map[string]string{"field": "nomeProprietario", "value": "JOAO SILVA"}), cookie))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("crlv", "crlv.jpg")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("jpeg bytes"))
	mw.WriteField("lastModified.crlv", "1700000000000")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/session/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := ts.do(t, withCookie(req, cookie))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}

	var result submit.Result
	decode(t, resp, &result)
	if !strings.HasPrefix(result.PDFURL, testURL+"/files/") {
		t.Errorf("pdf url = %q", result.PDFURL)
	}
	if !strings.HasPrefix(result.Handoff.URL, "https://wa.me/5511999998888?") {
		t.Errorf("handoff url = %q", result.Handoff.URL)
	}
	if _, ok := result.Attachments["crlv"]; !ok {
		t.Errorf("attachments = %v", result.Attachments)
	}

	doc, err := ts.db.GetDocument(result.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Fields["nomeProprietario"] != "JOAO SILVA" || doc.PDFURL != result.PDFURL {
		t.Errorf("stored document = %+v", doc)
	}

	// The stored PDF is served from the bucket
	pdfPath := strings.TrimPrefix(result.PDFURL, testURL)
	resp = ts.do(t, httptest.NewRequest(http.MethodGet, pdfPath, nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET %s: status %d", pdfPath, resp.StatusCode)
	}
}

func TestPages(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil)); resp.StatusCode != http.StatusOK {
		t.Errorf("index: status %d", resp.StatusCode)
	}

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/form/recurso", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("form: status %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("form page did not start a session")
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `name="autoInfracao"`) {
		t.Error("appeal form lacks the infraction field")
	}

	if resp := ts.do(t, withCookie(httptest.NewRequest(http.MethodGet, "/preview", nil), cookie)); resp.StatusCode != http.StatusOK {
		t.Errorf("preview: status %d", resp.StatusCode)
	}

	if resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/form/contrato", nil)); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown kind: status %d", resp.StatusCode)
	}

	if resp := ts.do(t, withAdmin(httptest.NewRequest(http.MethodGet, "/admin", nil))); resp.StatusCode != http.StatusOK {
		t.Errorf("admin dashboard: status %d", resp.StatusCode)
	}
}
