// Package session holds the state of one form session: the record being
// edited, the visible party count, pending advisories and the references of
// attachments already uploaded.
//
// A Store has a single logical owner (the browser tab driving the form) but is
// written to by asynchronous lookups as well. Every write goes through Update,
// which hands the callback the record as it is at that moment, so a lookup
// that finishes late merges into the latest state instead of a copy taken when
// it started.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/evidenceledger/docgen/internal/debounce"
	"github.com/evidenceledger/docgen/internal/party"
	"github.com/evidenceledger/docgen/internal/record"
)

// ErrSaveInProgress is returned by BeginSave while another submit is running.
var ErrSaveInProgress = errors.New("a submission is already in progress")

// Store is the state container of one session.
type Store struct {
	ID         string
	DocumentID string
	CreatedAt  time.Time

	mu         sync.Mutex
	rec        record.Record
	parties    party.Accumulator
	version    uint64
	saving     bool
	advised    map[string]bool
	advisories []string
	uploads    map[uint64]string

	debounceDelay time.Duration
	debouncers    map[string]*debounce.Debouncer
}

// New creates an empty session store.
func New(id, documentID string) *Store {
	return &Store{
		ID:         id,
		DocumentID: documentID,
		CreatedAt:  time.Now(),
		rec:        record.New(),
		parties:    party.NewAccumulator(),
		advised:    map[string]bool{},
		uploads:    map[uint64]string{},

		debounceDelay: DefaultDebounce,
		debouncers:    map[string]*debounce.Debouncer{},
	}
}

// DefaultDebounce is the quiet period of the postal-code and search lookups.
const DefaultDebounce = 1000 * time.Millisecond

// Debouncer returns the debouncer of one lookup purpose, creating it on first
// use. Purposes are independent: a keystroke in the contact search does not
// cancel a pending postal-code lookup.
func (s *Store) Debouncer(purpose string) *debounce.Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debouncers[purpose]
	if !ok {
		d = debounce.New(s.debounceDelay)
		s.debouncers[purpose] = d
	}
	return d
}

// Close stops every pending lookup of the session.
func (s *Store) Close() {
	s.mu.Lock()
	ds := make([]*debounce.Debouncer, 0, len(s.debouncers))
	for _, d := range s.debouncers {
		ds = append(ds, d)
	}
	s.mu.Unlock()
	for _, d := range ds {
		d.Stop()
	}
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

// Version is incremented on every write. Clients use it to notice that an
// asynchronous merge has landed.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Update runs fn against the current record while holding the store lock.
func (s *Store) Update(fn func(rec record.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.rec)
	s.version++
}

// Merge applies a delta against the current record.
func (s *Store) Merge(d record.Delta) {
	if len(d) == 0 {
		return
	}
	s.Update(func(rec record.Record) {
		rec.Apply(d)
	})
}

// Replace swaps the whole record, used when an existing document is loaded.
func (s *Store) Replace(rec record.Record) {
	s.Update(func(cur record.Record) {
		clear(cur)
		for k, v := range rec {
			cur[k] = v
		}
	})
}

// Parties runs fn with exclusive access to the party accumulator.
func (s *Store) Parties(fn func(acc *party.Accumulator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.parties)
	s.version++
}

// PartyCount returns the number of visible party blocks.
func (s *Store) PartyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parties.Count()
}

// Advise queues a message for the user, at most once per key for the life of
// the session.
func (s *Store) Advise(key, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advised[key] {
		return false
	}
	s.advised[key] = true
	s.advisories = append(s.advisories, message)
	s.version++
	return true
}

// TakeAdvisories returns and clears the pending advisories.
func (s *Store) TakeAdvisories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.advisories
	s.advisories = nil
	return out
}

// BeginSave marks the session as saving. It fails if a save is running.
func (s *Store) BeginSave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	s.saving = true
	return nil
}

// EndSave releases the guard taken by BeginSave.
func (s *Store) EndSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
}

// UploadRef returns the storage reference cached for an attachment signature.
func (s *Store) UploadRef(signature uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.uploads[signature]
	return ref, ok
}

// RememberUpload caches the storage reference of an uploaded attachment.
func (s *Store) RememberUpload(signature uint64, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[signature] = ref
}
