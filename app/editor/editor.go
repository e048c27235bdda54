// Package editor synchronizes resume views with the store. It renders sections into view models,
// keeps the per-entry display/editing state and commits validated edits back into the store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/store"
)

// ErrUnsupported is returned for entry operations on text sections and text operations on list sections
var ErrUnsupported = errors.New("operation not supported for section")

// Store is the resume owner used by the editor
type Store interface {
	View(fn func(rec *resume.Record))
	Update(ctx context.Context, fn func(rec *resume.Record) error) (enums.SaveStatus, error)
	Reset(ctx context.Context, confirm store.Confirmer) (*resume.Record, error)
}

// Editor renders and edits the resume. Entries being edited keep their entered values here
// until confirmed, cancelled or removed, the store holds committed data only.
type Editor struct {
	store  Store
	mu     sync.Mutex
	drafts map[string]draft // entry id -> in-progress edit
}

type draft struct {
	kind    enums.Section
	values  map[string]string
	message string // validation message of the last failed commit
}

// New makes an editor over the store
func New(st Store) *Editor {
	return &Editor{store: st, drafts: make(map[string]draft)}
}

// Sections renders all sections in page order
func (e *Editor) Sections() []SectionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := make([]SectionView, 0, len(resume.ListSections)+len(resume.TextSections))
	e.store.View(func(rec *resume.Record) {
		e.dropStale(rec)
		for _, kind := range resume.ListSections {
			res = append(res, e.section(rec, kind))
		}
		for _, kind := range resume.TextSections {
			res = append(res, e.section(rec, kind))
		}
	})
	return res
}

// Section renders a single section
func (e *Editor) Section(kind enums.Section) (SectionView, error) {
	if _, err := resume.Lookup(kind); err != nil {
		return SectionView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var res SectionView
	e.store.View(func(rec *resume.Record) {
		e.dropStale(rec)
		res = e.section(rec, kind)
	})
	return res, nil
}

// Entry renders a single entry in its current state
func (e *Editor) Entry(kind enums.Section, id string) (EntryView, error) {
	if _, err := listSection(kind); err != nil {
		return EntryView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var res EntryView
	var err error
	e.store.View(func(rec *resume.Record) { res, err = e.entry(rec, kind, id) })
	return res, err
}

// Add appends a new entry. Scalar sections validate the value and keep it in the returned view
// along with the message if it's rejected. Record sections append a blank entry, value is ignored.
func (e *Editor) Add(ctx context.Context, kind enums.Section, value string) (SectionView, enums.SaveStatus, error) {
	sec, err := listSection(kind)
	if err != nil {
		return SectionView{}, enums.SaveStatusNone, err
	}

	var p resume.Payload
	if sec.Shape == resume.ShapeScalar {
		p, err = sec.Decode(map[string]string{"value": value})
	} else {
		p, err = sec.Blank()
	}
	if err != nil {
		return SectionView{}, enums.SaveStatusNone, err
	}

	status, err := e.store.Update(ctx, func(rec *resume.Record) error {
		_, err := rec.Add(p)
		return err
	})

	view, verr := e.Section(kind)
	if verr != nil {
		return SectionView{}, enums.SaveStatusNone, verr
	}
	var valErr *resume.ValidationError
	if errors.As(err, &valErr) {
		view.AddValue, view.AddError = value, valErr.Message
		return view, enums.SaveStatusNone, err
	}
	if err != nil {
		return SectionView{}, enums.SaveStatusNone, fmt.Errorf("failed to add %s: %w", kind, err)
	}
	log.Printf("[DEBUG] %s entry added", kind)
	return view, status, nil
}

// BeginEdit switches the entry to editing, inputs are seeded with the committed values
func (e *Editor) BeginEdit(kind enums.Section, id string) (EntryView, error) {
	if _, err := listSection(kind); err != nil {
		return EntryView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var res EntryView
	var err error
	e.store.View(func(rec *resume.Record) {
		var ent resume.Entry
		if ent, _, err = rec.Find(kind, id); err != nil {
			return
		}
		if _, editing := e.drafts[id]; !editing {
			e.drafts[id] = draft{kind: kind, values: fieldValues(ent.Payload)}
		}
		res, err = e.entry(rec, kind, id)
	})
	return res, err
}

// Confirm validates the entered values and commits them. On success the entry is back to display,
// on validation failure it stays in editing with the entered values and the message attached,
// and the returned error is *resume.ValidationError.
func (e *Editor) Confirm(ctx context.Context, kind enums.Section, id string, values map[string]string) (EntryView, enums.SaveStatus, error) {
	return e.commit(ctx, kind, id, values)
}

// Cancel drops the entered values, the entry is back to display with committed data
func (e *Editor) Cancel(kind enums.Section, id string) (EntryView, error) {
	if _, err := listSection(kind); err != nil {
		return EntryView{}, err
	}
	e.mu.Lock()
	delete(e.drafts, id)
	e.mu.Unlock()
	return e.Entry(kind, id)
}

// SaveEntry is the durable save of a single entry. It runs the same validation as Confirm.
// With values it commits them, without values it re-commits the entry as stored.
// Entered but unsubmitted text is never used.
func (e *Editor) SaveEntry(ctx context.Context, kind enums.Section, id string, values map[string]string) (EntryView, enums.SaveStatus, error) {
	return e.commit(ctx, kind, id, values)
}

// Remove deletes the entry and returns all sections, positions of following entries shift down
func (e *Editor) Remove(ctx context.Context, kind enums.Section, id string) ([]SectionView, enums.SaveStatus, error) {
	if _, err := listSection(kind); err != nil {
		return nil, enums.SaveStatusNone, err
	}
	status, err := e.store.Update(ctx, func(rec *resume.Record) error { return rec.Remove(kind, id) })
	if err != nil {
		return nil, enums.SaveStatusNone, err
	}
	e.mu.Lock()
	delete(e.drafts, id)
	e.mu.Unlock()
	log.Printf("[DEBUG] %s entry %s removed", kind, id)
	return e.Sections(), status, nil
}

// SetText commits the content of a free-text section. The content is an html fragment
// of the editable region, only its text is kept.
func (e *Editor) SetText(ctx context.Context, kind enums.Section, html string) (enums.SaveStatus, error) {
	sec, err := resume.Lookup(kind)
	if err != nil {
		return enums.SaveStatusNone, err
	}
	if sec.Shape != resume.ShapeText {
		return enums.SaveStatusNone, fmt.Errorf("%s: %w", kind, ErrUnsupported)
	}
	text, err := resume.TextContent(html)
	if err != nil {
		return enums.SaveStatusNone, err
	}
	return e.store.Update(ctx, func(rec *resume.Record) error { return rec.SetText(kind, text) })
}

// Reset restores the fallback document if confirmed and drops all in-progress edits
func (e *Editor) Reset(ctx context.Context, confirm store.Confirmer) ([]SectionView, error) {
	_, err := e.store.Reset(ctx, confirm)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		return nil, err
	}
	// on persist error the record is replaced anyway and the view must show it
	e.clearDrafts()
	return e.Sections(), err
}

// Refresh drops all in-progress edits, used after the record was replaced outside of the editor
func (e *Editor) Refresh() []SectionView {
	e.clearDrafts()
	return e.Sections()
}

func (e *Editor) clearDrafts() {
	e.mu.Lock()
	e.drafts = make(map[string]draft)
	e.mu.Unlock()
}

// commit validates values and updates the entry. Fields missing from values keep their stored content.
// Failed validation keeps the entry in editing.
func (e *Editor) commit(ctx context.Context, kind enums.Section, id string, values map[string]string) (EntryView, enums.SaveStatus, error) {
	sec, err := listSection(kind)
	if err != nil {
		return EntryView{}, enums.SaveStatusNone, err
	}

	var entered map[string]string
	status, err := e.store.Update(ctx, func(rec *resume.Record) error {
		ent, _, err := rec.Find(kind, id)
		if err != nil {
			return err
		}
		entered = fieldValues(ent.Payload)
		for k, v := range values {
			entered[k] = v
		}
		p, err := sec.Decode(entered)
		if err != nil {
			return err
		}
		return rec.Update(id, p)
	})
	var valErr *resume.ValidationError
	switch {
	case errors.As(err, &valErr):
		e.mu.Lock()
		e.drafts[id] = draft{kind: kind, values: entered, message: valErr.Message}
		e.mu.Unlock()
		view, verr := e.Entry(kind, id)
		if verr != nil {
			return EntryView{}, enums.SaveStatusNone, verr
		}
		return view, enums.SaveStatusNone, err
	case err != nil:
		return EntryView{}, enums.SaveStatusNone, err
	}

	e.mu.Lock()
	delete(e.drafts, id)
	e.mu.Unlock()
	view, err := e.Entry(kind, id)
	if err != nil {
		return EntryView{}, enums.SaveStatusNone, err
	}
	view.SaveStatus = status
	return view, status, nil
}

// section renders a section, caller holds the lock and the record view
func (e *Editor) section(rec *resume.Record, kind enums.Section) SectionView {
	sec, _ := resume.Lookup(kind)
	res := SectionView{Kind: kind, Title: sec.Title, Shape: sec.Shape, Placeholder: sec.Placeholder,
		Fields: sec.FieldNames()}
	if sec.Shape == resume.ShapeText {
		res.Text = rec.Text(kind)
		return res
	}
	for i, ent := range rec.Entries(kind) {
		res.Entries = append(res.Entries, e.entryView(kind, i, ent))
	}
	return res
}

func (e *Editor) entry(rec *resume.Record, kind enums.Section, id string) (EntryView, error) {
	ent, idx, err := rec.Find(kind, id)
	if err != nil {
		return EntryView{}, err
	}
	return e.entryView(kind, idx, ent), nil
}

func (e *Editor) entryView(kind enums.Section, idx int, ent resume.Entry) EntryView {
	res := EntryView{ID: ent.ID, Section: kind, Index: idx, State: enums.EntryStateDisplay, Fields: ent.Payload.Fields()}
	d, editing := e.drafts[ent.ID]
	if !editing {
		return res
	}
	res.State = enums.EntryStateEditing
	res.Error = d.message
	for i, f := range res.Fields {
		res.Fields[i].Value = d.values[f.Name]
	}
	return res
}

// dropStale removes drafts of entries which are gone from the record
func (e *Editor) dropStale(rec *resume.Record) {
	for id, d := range e.drafts {
		if _, _, err := rec.Find(d.kind, id); err != nil {
			delete(e.drafts, id)
		}
	}
}

func listSection(kind enums.Section) (resume.Section, error) {
	sec, err := resume.Lookup(kind)
	if err != nil {
		return resume.Section{}, err
	}
	if !sec.IsList() {
		return resume.Section{}, fmt.Errorf("%s: %w", kind, ErrUnsupported)
	}
	return sec, nil
}

func fieldValues(p resume.Payload) map[string]string {
	res := make(map[string]string)
	for _, f := range p.Fields() {
		res[f.Name] = f.Value
	}
	return res
}
