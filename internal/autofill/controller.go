package autofill

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evidenceledger/docgen/internal/lookup"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/session"
	"github.com/evidenceledger/docgen/internal/taxid"
)

// Debounce purposes. Postal lookups use one purpose per field.
const (
	PurposeContactSearch = "contact-search"
	purposePostalPrefix  = "postal:"
)

// AdvisoryLookupUnavailable is shown once per session when the registry does
// not know an identifier.
const AdvisoryLookupUnavailable = "Consulta indisponível para este documento. Preencha os dados manualmente."

// MinSearchLen is the shortest query sent to the contact search.
const MinSearchLen = 2

// Lookuper is the set of external lookups the controller uses.
type Lookuper interface {
	Person(ctx context.Context, cpf string) lookup.Result
	Entity(ctx context.Context, cnpj string) lookup.Result
	Postal(ctx context.Context, cep string) lookup.Result
}

// ContactSearcher finds catalog contacts by name.
type ContactSearcher interface {
	SearchContacts(query string, limit int) ([]models.Contact, error)
}

// Change is the answer to a field change: the value stored in the record,
// the value to display, inline helper text and the lookup decided.
type Change struct {
	Field   string `json:"field"`
	Stored  string `json:"stored"`
	Display string `json:"display"`
	Hint    string `json:"hint,omitempty"`
	Action  Action `json:"action"`
}

// Controller applies field changes to sessions and runs the lookups they
// trigger in the background.
type Controller struct {
	lookups  Lookuper
	contacts ContactSearcher
	timeout  time.Duration

	wg sync.WaitGroup
}

// New returns a controller. contacts may be nil, which disables the search.
func New(l Lookuper, contacts ContactSearcher) *Controller {
	return &Controller{lookups: l, contacts: contacts, timeout: 15 * time.Second}
}

// FieldChanged stores a new field value in the session and starts the
// lookup it triggers, if any. The lookup runs after the call returns; its
// answer is merged into whatever the record holds when it arrives.
func (c *Controller) FieldChanged(ctx context.Context, s *session.Store, key record.Key, value string) Change {
	ch := Change{Field: key.Name(), Stored: value, Display: value}

	switch key.Attr {
	case record.AttrTaxID:
		r := taxid.NormalizeTaxID(value)
		ch.Stored, ch.Display, ch.Hint = r.Digits, r.Formatted, taxid.Hint(value)
	case record.AttrPostalCode:
		ch.Display = taxid.NormalizePostalCode(value).Formatted
	}
	s.Merge(record.Delta{key: ch.Stored})

	ch.Action = Decide(key, value)
	if key.Attr == record.AttrPostalCode && ch.Action.Kind != ActionPostal {
		// An incomplete CEP still drops the lookup of the previous one.
		s.Debouncer(purposePostalPrefix + key.Name()).Stop()
	}
	c.start(ctx, s, ch.Action)
	return ch
}

func (c *Controller) start(ctx context.Context, s *session.Store, a Action) {
	parent := context.WithoutCancel(ctx)

	switch a.Kind {
	case ActionPerson, ActionEntity:
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			lctx, cancel := context.WithTimeout(parent, c.timeout)
			defer cancel()
			c.applyIdentifier(lctx, s, a)
		}()
	case ActionPostal:
		s.Debouncer(purposePostalPrefix+a.key.Name()).Schedule(parent, func(jctx context.Context) {
			c.applyPostal(jctx, s, a)
		})
	}
}

func (c *Controller) applyIdentifier(ctx context.Context, s *session.Store, a Action) {
	var res lookup.Result
	if a.Kind == ActionPerson {
		res = c.lookups.Person(ctx, a.Query)
	} else {
		res = c.lookups.Entity(ctx, a.Query)
	}

	switch r := res.(type) {
	case lookup.Person:
		s.Update(func(rec record.Record) {
			// The user may have typed another identifier meanwhile.
			if rec.Get(a.key) != a.Query {
				return
			}
			rec.Apply(PersonDelta(rec, a.key, r))
		})
	case lookup.Entity:
		s.Update(func(rec record.Record) {
			if rec.Get(a.key) != a.Query {
				return
			}
			rec.Apply(EntityDelta(a.key, r))
		})
	case lookup.NotFound:
		slog.Info("identifier not found", "session", s.ID, "field", a.key.Name())
		s.Advise("identifier-lookup", AdvisoryLookupUnavailable)
	case lookup.Failure:
		slog.Warn("identifier lookup failed", "session", s.ID, "field", a.key.Name(), "status", r.Status, "error", r.Error())
	}
}

func (c *Controller) applyPostal(ctx context.Context, s *session.Store, a Action) {
	res := c.lookups.Postal(ctx, a.Query)

	switch r := res.(type) {
	case lookup.Address:
		s.Update(func(rec record.Record) {
			// A newer keystroke cancelled this lookup: its answer is stale.
			if ctx.Err() != nil || taxid.Digits(rec.Get(a.key)) != a.Query {
				return
			}
			rec.Apply(PostalDelta(a.key, r))
		})
	case lookup.NotFound:
		slog.Info("postal code not found", "session", s.ID, "cep", a.Query)
	case lookup.Failure:
		if ctx.Err() == nil {
			slog.Warn("postal lookup failed", "session", s.ID, "cep", a.Query, "error", r.Error())
		}
	}
}

// Wait blocks until the identifier lookups started so far have finished.
// Debounced lookups are waited for through the session debouncers.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// SearchContacts runs a debounced name search over the contact catalog. When
// a newer search of the same session supersedes this one, it returns
// superseded=true and no contacts.
func (c *Controller) SearchContacts(ctx context.Context, s *session.Store, query string, limit int) (contacts []models.Contact, superseded bool, err error) {
	// The job may outlive the request buffer the query points into.
	query = strings.Clone(strings.TrimSpace(query))
	if c.contacts == nil || len([]rune(query)) < MinSearchLen {
		return nil, false, nil
	}

	type answer struct {
		contacts []models.Contact
		err      error
	}
	done := make(chan answer, 1)

	jctx := s.Debouncer(PurposeContactSearch).Schedule(ctx, func(jctx context.Context) {
		list, err := c.contacts.SearchContacts(query, limit)
		done <- answer{list, err}
	})

	select {
	case a := <-done:
		return a.contacts, false, a.err
	case <-jctx.Done():
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, nil
	}
}
