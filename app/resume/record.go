//go:generate go run ./internal/schema ../../schema.json

// Package resume defines the resume record, its list entries and the per-section payload types.
// Entries carry a synthetic identifier assigned on creation, and all edits address entries by it.
package resume

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/umputun/cvedit/app/enums"
)

// ErrNotFound is returned when an entry id does not exist in the requested section
var ErrNotFound = errors.New("entry not found")

// Document is the persisted and fallback shape of the resume
type Document struct {
	ContactInfo    []string     `json:"contactInfo" yaml:"contactInfo" jsonschema_description:"numeric contact tokens in display order"`
	EducationData  []Education  `json:"educationData" yaml:"educationData"`
	SkillsData     []string     `json:"skillsData" yaml:"skillsData"`
	LanguagesData  []string     `json:"languagesData" yaml:"languagesData"`
	ExperienceData []Experience `json:"experienceData" yaml:"experienceData"`
	ProfileText    string       `json:"profileText" yaml:"profileText"`
	ReferenceText  string       `json:"referenceText" yaml:"referenceText"`
}

// Empty returns a document with empty containers and empty strings
func Empty() Document {
	return Document{
		ContactInfo:    []string{},
		EducationData:  []Education{},
		SkillsData:     []string{},
		LanguagesData:  []string{},
		ExperienceData: []Experience{},
	}
}

// Entry is a single list item of a section
type Entry struct {
	ID      string
	Payload Payload
}

// Record is the in-memory resume. It is not thread safe, the owner serializes access.
type Record struct {
	lists     map[enums.Section][]Entry
	profile   string
	reference string
}

// New makes an empty record
func New() *Record {
	return FromDocument(Empty())
}

// FromDocument builds a record from the wire shape, assigning fresh ids to every entry
func FromDocument(doc Document) *Record {
	r := &Record{lists: make(map[enums.Section][]Entry), profile: doc.ProfileText, reference: doc.ReferenceText}
	for _, v := range doc.ContactInfo {
		r.push(Contact{Value: v})
	}
	for _, v := range doc.EducationData {
		r.push(v)
	}
	for _, v := range doc.SkillsData {
		r.push(Skill{Value: v})
	}
	for _, v := range doc.LanguagesData {
		r.push(Language{Value: v})
	}
	for _, v := range doc.ExperienceData {
		r.push(v)
	}
	return r
}

// Document converts the record to the wire shape. Lists are never nil.
func (r *Record) Document() Document {
	doc := Empty()
	for _, e := range r.lists[enums.SectionContact] {
		doc.ContactInfo = append(doc.ContactInfo, e.Payload.(Contact).Value)
	}
	for _, e := range r.lists[enums.SectionEducation] {
		doc.EducationData = append(doc.EducationData, e.Payload.(Education))
	}
	for _, e := range r.lists[enums.SectionSkill] {
		doc.SkillsData = append(doc.SkillsData, e.Payload.(Skill).Value)
	}
	for _, e := range r.lists[enums.SectionLanguage] {
		doc.LanguagesData = append(doc.LanguagesData, e.Payload.(Language).Value)
	}
	for _, e := range r.lists[enums.SectionExperience] {
		doc.ExperienceData = append(doc.ExperienceData, e.Payload.(Experience))
	}
	doc.ProfileText = r.profile
	doc.ReferenceText = r.reference
	return doc
}

// Clone makes a deep copy, ids included
func (r *Record) Clone() *Record {
	res := &Record{lists: make(map[enums.Section][]Entry, len(r.lists)), profile: r.profile, reference: r.reference}
	for k, v := range r.lists {
		res.lists[k] = append([]Entry(nil), v...)
	}
	return res
}

// Entries returns a copy of the entries of a list section in display order
func (r *Record) Entries(kind enums.Section) []Entry {
	return append([]Entry{}, r.lists[kind]...)
}

// Find returns the entry with given id and its current position
func (r *Record) Find(kind enums.Section, id string) (Entry, int, error) {
	for i, e := range r.lists[kind] {
		if e.ID == id {
			return e, i, nil
		}
	}
	return Entry{}, -1, fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// Add validates the payload and appends it as a new entry
func (r *Record) Add(p Payload) (Entry, error) {
	if err := Validate(p); err != nil {
		return Entry{}, err
	}
	return r.push(p), nil
}

// Update validates the payload and replaces the content of the entry with given id.
// The whole payload is assigned at once, so multi-field entries change atomically.
func (r *Record) Update(id string, p Payload) error {
	_, idx, err := r.Find(p.Section(), id)
	if err != nil {
		return err
	}
	if err := Validate(p); err != nil {
		return err
	}
	r.lists[p.Section()][idx].Payload = p
	return nil
}

// Remove deletes the entry with given id, entries after it shift down by one
func (r *Record) Remove(kind enums.Section, id string) error {
	_, idx, err := r.Find(kind, id)
	if err != nil {
		return err
	}
	list := r.lists[kind]
	r.lists[kind] = append(list[:idx:idx], list[idx+1:]...)
	return nil
}

// Text returns the content of a free-text section
func (r *Record) Text(kind enums.Section) string {
	switch kind {
	case enums.SectionProfile:
		return r.profile
	case enums.SectionReference:
		return r.reference
	}
	return ""
}

// SetText replaces the content of a free-text section
func (r *Record) SetText(kind enums.Section, text string) error {
	switch kind {
	case enums.SectionProfile:
		r.profile = text
	case enums.SectionReference:
		r.reference = text
	default:
		return fmt.Errorf("section %s is not a text section", kind)
	}
	return nil
}

func (r *Record) push(p Payload) Entry {
	e := Entry{ID: uuid.NewString(), Payload: p}
	r.lists[p.Section()] = append(r.lists[p.Section()], e)
	return e
}
