// Package submit runs the submission of a form session: attachments are
// uploaded concurrently, the record is persisted, the document is composed
// and printed to PDF, and a hand-off link is produced.
//
// A submission is all-or-nothing from the user's point of view. Any failing
// step aborts the rest and the session record is left untouched, so the user
// can retry. Attachments uploaded before the failure are remembered by their
// signature and are not uploaded again on the retry.
package submit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/handoff"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/pdf"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/session"
	"github.com/evidenceledger/docgen/internal/storage"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Attachment is a file sent with the submission.
type Attachment struct {
	// Field is the form field the file belongs to, e.g. "cnhProprietario".
	Field        string
	Name         string
	Size         int64
	LastModified int64
	Open         func() (io.ReadCloser, error)
}

// Signature identifies an attachment by name, size and modification time.
func (a Attachment) Signature() uint64 {
	return xxh3.HashString(fmt.Sprintf("%s|%d|%d", a.Name, a.Size, a.LastModified))
}

// Uploader stores files.
type Uploader interface {
	Put(ctx context.Context, name string, r io.Reader) (storage.Object, error)
}

// DocumentStore persists documents with merge semantics.
type DocumentStore interface {
	SaveDocument(doc *models.Document) error
}

// PageComposer renders a record as a printable page.
type PageComposer interface {
	Page(rec record.Record, title string) (string, error)
}

// Result is what the user gets back from a successful submission.
type Result struct {
	DocumentID  string            `json:"documentId"`
	PDFURL      string            `json:"pdfUrl"`
	Attachments map[string]string `json:"attachments"`
	Handoff     handoff.Link      `json:"handoff"`
}

// Options configures a Pipeline.
type Options struct {
	Uploads  Uploader
	Docs     DocumentStore
	Composer PageComposer
	PDF      pdf.Rasterizer
	// BaseURL makes stored object URLs absolute in the hand-off message.
	BaseURL string
	// Phone is the WhatsApp number the hand-off link points to.
	Phone string
}

// Pipeline runs submissions.
type Pipeline struct {
	opts Options
}

// New returns a pipeline.
func New(opts Options) *Pipeline {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &Pipeline{opts: opts}
}

// Submit runs the whole submission for s. A second call for the same session
// while one is running fails with session.ErrSaveInProgress.
func (p *Pipeline) Submit(ctx context.Context, s *session.Store, attachments []Attachment) (*Result, error) {
	if err := s.BeginSave(); err != nil {
		return nil, err
	}
	defer s.EndSave()

	rec := s.Snapshot()
	kind := string(rec.Kind())

	refs, err := p.uploadAll(ctx, s, attachments)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          s.DocumentID,
		Kind:        kind,
		Fields:      rec,
		Attachments: refs,
	}
	if err := p.opts.Docs.SaveDocument(doc); err != nil {
		return nil, errl.Errorf("saving document: %w", err)
	}

	title := Title(rec)
	page, err := p.opts.Composer.Page(rec, title)
	if err != nil {
		return nil, errl.Errorf("composing document: %w", err)
	}
	data, err := p.opts.PDF.Render(ctx, page)
	if err != nil {
		return nil, errl.Errorf("rendering pdf: %w", err)
	}
	obj, err := p.opts.Uploads.Put(ctx, kind+"_"+title+".pdf", bytes.NewReader(data))
	if err != nil {
		return nil, errl.Errorf("uploading pdf: %w", err)
	}
	pdfURL := p.opts.BaseURL + obj.URL

	link, err := handoff.New(p.opts.Phone, handoff.Message(kind, title, pdfURL))
	if err != nil {
		return nil, err
	}

	if err := p.opts.Docs.SaveDocument(&models.Document{
		ID:         s.DocumentID,
		PDFURL:     pdfURL,
		HandoffURL: link.URL,
	}); err != nil {
		return nil, errl.Errorf("saving document links: %w", err)
	}

	slog.Info("Document submitted", "session", s.ID, "document", s.DocumentID, "kind", kind, "attachments", len(refs))
	return &Result{
		DocumentID:  s.DocumentID,
		PDFURL:      pdfURL,
		Attachments: refs,
		Handoff:     link,
	}, nil
}

// uploadAll uploads every attachment not uploaded before, all at once. The
// first failure cancels the others and is returned.
func (p *Pipeline) uploadAll(ctx context.Context, s *session.Store, attachments []Attachment) (map[string]string, error) {
	refs := make(map[string]string, len(attachments))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range attachments {
		sig := a.Signature()
		if ref, ok := s.UploadRef(sig); ok {
			mu.Lock()
			refs[a.Field] = ref
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			ref, err := p.upload(gctx, a)
			if err != nil {
				return errl.Errorf("uploading %s: %w", a.Name, err)
			}
			s.RememberUpload(sig, ref)
			mu.Lock()
			refs[a.Field] = ref
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (p *Pipeline) upload(ctx context.Context, a Attachment) (string, error) {
	f, err := a.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	obj, err := p.opts.Uploads.Put(ctx, a.Name, f)
	if err != nil {
		return "", err
	}
	return p.opts.BaseURL + obj.URL, nil
}

// Title names a document after its owner.
func Title(rec record.Record) string {
	if rec.Bool(record.Doc(record.AttrEntityMode)) {
		if v := strings.TrimSpace(rec.Get(record.Entity(record.AttrName))); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(rec.Get(record.Principal(record.AttrName))); v != "" {
		return v
	}
	return "documento"
}
