// Package store owns the resume record. It loads the record from persistent storage (falling back
// to the bundled or configured document), serializes every mutation and persists the result.
// The store is the single source of truth, views render from it and edits commit into it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/store/persistence"
)

//go:generate moq -out mocks/persistence.go -pkg mocks -skip-ensure -fmt goimports . Persistence
//go:generate moq -out mocks/source.go -pkg mocks -skip-ensure -fmt goimports . Source
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// DefaultKey is the storage key of the resume document
const DefaultKey = "resumeData"

// ResetPrompt is the question asked before a reset
const ResetPrompt = "Are you sure you want to reset all changes?"

var (
	// ErrStorageRead is returned when the persisted value exists but can't be read or parsed
	ErrStorageRead = errors.New("storage read error")
	// ErrFetch is returned when the fallback document can't be fetched or decoded
	ErrFetch = errors.New("fetch error")
	// ErrPersist is returned when the record can't be written to storage
	ErrPersist = errors.New("persist error")
	// ErrResetDeclined is returned when the reset wasn't confirmed
	ErrResetDeclined = errors.New("reset declined")
)

// Persistence is a key-value slot for the serialized document
type Persistence interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Source provides the fallback document
type Source interface {
	Fetch(ctx context.Context) (resume.Document, error)
}

// Notifier sends out events. Implementations must not block for long and must not fail the caller.
type Notifier interface {
	Notify(ctx context.Context, event enums.Event, text string)
}

// Confirmer gates destructive operations
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc is an adapter allowing a function to be used as Confirmer
type ConfirmFunc func(prompt string) bool

// Confirm calls f(prompt)
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Params defines store dependencies. Notifier is optional.
type Params struct {
	Persistence Persistence
	Source      Source
	Notifier    Notifier
	Key         string // storage key, DefaultKey if empty
}

// Store owns the resume record and serializes access to it
type Store struct {
	Params
	mu  sync.Mutex
	rec *resume.Record
}

// New makes a store holding an empty record. Call Load to populate it.
func New(params Params) *Store {
	if params.Key == "" {
		params.Key = DefaultKey
	}
	return &Store{Params: params, rec: resume.New()}
}

// Load populates the record from storage. If storage has no value or the value can't be parsed,
// the fallback document is fetched and persisted. If the fallback fails too, the record is empty.
// Load never fails, all problems are logged and the store degrades to what it could get.
func (s *Store) Load(ctx context.Context) *resume.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err == nil {
		s.rec = resume.FromDocument(doc)
		log.Printf("[INFO] resume loaded from storage, key %q", s.Key)
		return s.rec.Clone()
	}
	if errors.Is(err, ErrStorageRead) {
		log.Printf("[WARN] %v", err)
	} else {
		log.Printf("[INFO] no stored resume under key %q", s.Key)
	}

	doc, err = s.Source.Fetch(ctx)
	if err != nil {
		log.Printf("[WARN] can't load fallback document: %v", err)
		s.notify(ctx, enums.EventFetchFailed, fmt.Sprintf("can't load fallback document: %v", err))
		s.rec = resume.New()
		return s.rec.Clone()
	}

	s.rec = resume.FromDocument(doc)
	log.Printf("[INFO] resume loaded from fallback document")
	if err := s.write(ctx); err != nil {
		log.Printf("[WARN] %v", err)
	}
	return s.rec.Clone()
}

// Save serializes the whole record and overwrites the stored value.
// The in-memory record stays authoritative if the write fails.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx)
}

// Reset replaces the record with a freshly fetched fallback document, after the confirmer agreed.
// Declined reset returns ErrResetDeclined, failed fetch returns the error, both leave the record unchanged.
// If only the write fails, the record is replaced anyway and returned along with the error.
func (s *Store) Reset(ctx context.Context, confirm Confirmer) (*resume.Record, error) {
	if confirm == nil || !confirm.Confirm(ResetPrompt) {
		return nil, ErrResetDeclined
	}

	// fetch outside of the lock, edits are not blocked by a slow source
	doc, err := s.Source.Fetch(ctx)
	if err != nil {
		log.Printf("[WARN] reset failed: %v", err)
		return nil, fmt.Errorf("failed to reset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = resume.FromDocument(doc)
	if err := s.save(ctx); err != nil {
		return s.rec.Clone(), fmt.Errorf("failed to reset: %w", err)
	}
	log.Printf("[INFO] resume reset to fallback document")
	s.notify(ctx, enums.EventReset, "resume reset to the fallback document")
	return s.rec.Clone(), nil
}

// Update applies fn to a copy of the record and, if fn succeeds, makes the copy current and persists it.
// Errors of fn are returned as is and nothing changes. Persistence failures don't fail the update,
// they are reported with SaveStatusFailed.
func (s *Store) Update(ctx context.Context, fn func(rec *resume.Record) error) (enums.SaveStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	upd := s.rec.Clone()
	if err := fn(upd); err != nil {
		return enums.SaveStatusNone, err
	}
	s.rec = upd
	if err := s.save(ctx); err != nil {
		return enums.SaveStatusFailed, nil
	}
	return enums.SaveStatusSaved, nil
}

// Replace makes doc the current record and persists it
func (s *Store) Replace(ctx context.Context, doc resume.Document) enums.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = resume.FromDocument(doc)
	if err := s.save(ctx); err != nil {
		return enums.SaveStatusFailed
	}
	return enums.SaveStatusSaved
}

// View calls fn with the current record. fn must not keep the record or modify it.
func (s *Store) View(fn func(rec *resume.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.rec)
}

// Document returns the wire shape of the current record
func (s *Store) Document() resume.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Document()
}

// read gets, checks against the schema and decodes the stored document.
// Returns ErrStorageRead wrapped if the value exists but can't be used.
func (s *Store) read(ctx context.Context) (resume.Document, error) {
	data, err := s.Persistence.Get(ctx, s.Key)
	if errors.Is(err, persistence.ErrNotFound) {
		return resume.Document{}, err
	}
	if err != nil {
		return resume.Document{}, fmt.Errorf("%w: can't get %q: %v", ErrStorageRead, s.Key, err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return resume.Document{}, fmt.Errorf("%w: can't parse %q: %v", ErrStorageRead, s.Key, err)
	}
	if err := resume.ValidateDocument(raw); err != nil {
		return resume.Document{}, fmt.Errorf("%w: invalid %q: %v", ErrStorageRead, s.Key, err)
	}
	var doc resume.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return resume.Document{}, fmt.Errorf("%w: can't decode %q: %v", ErrStorageRead, s.Key, err)
	}
	return doc, nil
}

// save writes the record and reports failures, caller holds the lock
func (s *Store) save(ctx context.Context) error {
	if err := s.write(ctx); err != nil {
		log.Printf("[WARN] %v", err)
		s.notify(ctx, enums.EventPersistFailed, err.Error())
		return err
	}
	return nil
}

func (s *Store) write(ctx context.Context) error {
	data, err := json.Marshal(s.rec.Document())
	if err != nil {
		return fmt.Errorf("%w: can't marshal resume: %v", ErrPersist, err)
	}
	if err := s.Persistence.Put(ctx, s.Key, data); err != nil {
		return fmt.Errorf("%w: can't write %q: %v", ErrPersist, s.Key, err)
	}
	log.Printf("[DEBUG] resume saved, %d bytes", len(data))
	return nil
}

func (s *Store) notify(ctx context.Context, event enums.Event, text string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(ctx, event, text)
}
