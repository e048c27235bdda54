package resume

import (
	"fmt"
	"strings"

	"github.com/umputun/cvedit/app/enums"
)

// Shape describes how a section is edited
type Shape int

// section shapes
const (
	ShapeScalar Shape = iota // one string per entry
	ShapeRecord              // several named fields per entry, edited as a group
	ShapeText                // a single free-text blob
)

// Field is a named value of a payload, in display order
type Field struct {
	Name  string
	Label string
	Value string
}

// Payload is the typed content of a list entry. The set of implementations is closed:
// Contact, Skill, Language, Education and Experience.
type Payload interface {
	Section() enums.Section
	Fields() []Field
}

// Contact is a numeric contact token, e.g. a phone number
type Contact struct {
	Value string `validate:"required,digits"`
}

// Skill is a free-text skill
type Skill struct {
	Value string `validate:"required"`
}

// Language is a free-text language
type Language struct {
	Value string `validate:"required"`
}

// Education is a single education record. Fields are not validated.
type Education struct {
	Degree string `json:"degree" yaml:"degree"`
	School string `json:"school" yaml:"school"`
	Year   string `json:"year" yaml:"year"`
}

// Experience is a single work experience record. Fields are not validated.
type Experience struct {
	JobTitle    string `json:"jobTitle" yaml:"jobTitle"`
	Company     string `json:"company" yaml:"company"`
	Duration    string `json:"duration" yaml:"duration"`
	Description string `json:"description" yaml:"description"`
}

// Section implements Payload
func (Contact) Section() enums.Section { return enums.SectionContact }

// Section implements Payload
func (Skill) Section() enums.Section { return enums.SectionSkill }

// Section implements Payload
func (Language) Section() enums.Section { return enums.SectionLanguage }

// Section implements Payload
func (Education) Section() enums.Section { return enums.SectionEducation }

// Section implements Payload
func (Experience) Section() enums.Section { return enums.SectionExperience }

// Fields implements Payload
func (c Contact) Fields() []Field { return []Field{{Name: "value", Label: "Contact", Value: c.Value}} }

// Fields implements Payload
func (s Skill) Fields() []Field { return []Field{{Name: "value", Label: "Skill", Value: s.Value}} }

// Fields implements Payload
func (l Language) Fields() []Field {
	return []Field{{Name: "value", Label: "Language", Value: l.Value}}
}

// Fields implements Payload
func (e Education) Fields() []Field {
	return []Field{
		{Name: "degree", Label: "Degree", Value: e.Degree},
		{Name: "school", Label: "Institution", Value: e.School},
		{Name: "year", Label: "Year", Value: e.Year},
	}
}

// Fields implements Payload
func (e Experience) Fields() []Field {
	return []Field{
		{Name: "jobTitle", Label: "Position", Value: e.JobTitle},
		{Name: "company", Label: "Company", Value: e.Company},
		{Name: "duration", Label: "Duration", Value: e.Duration},
		{Name: "description", Label: "Description", Value: e.Description},
	}
}

// Section describes one of the seven resume sections
type Section struct {
	Kind        enums.Section
	Title       string
	Noun        string // used in validation messages, e.g. "Skill cannot be empty"
	Shape       Shape
	Placeholder string // add-input placeholder for scalar sections, empty-text hint for text sections
	decode      func(values map[string]string) Payload
}

var sections = map[enums.Section]Section{
	enums.SectionContact: {Kind: enums.SectionContact, Title: "Contact", Noun: "Contact info", Shape: ShapeScalar,
		Placeholder: "Add contact number",
		decode:      func(v map[string]string) Payload { return Contact{Value: strings.TrimSpace(v["value"])} }},
	enums.SectionEducation: {Kind: enums.SectionEducation, Title: "Education", Noun: "Education", Shape: ShapeRecord,
		decode: func(v map[string]string) Payload {
			return Education{Degree: v["degree"], School: v["school"], Year: v["year"]}
		}},
	enums.SectionSkill: {Kind: enums.SectionSkill, Title: "Skills", Noun: "Skill", Shape: ShapeScalar,
		Placeholder: "Add skill",
		decode:      func(v map[string]string) Payload { return Skill{Value: strings.TrimSpace(v["value"])} }},
	enums.SectionLanguage: {Kind: enums.SectionLanguage, Title: "Languages", Noun: "Language", Shape: ShapeScalar,
		Placeholder: "Add language",
		decode:      func(v map[string]string) Payload { return Language{Value: strings.TrimSpace(v["value"])} }},
	enums.SectionExperience: {Kind: enums.SectionExperience, Title: "Experience", Noun: "Experience", Shape: ShapeRecord,
		decode: func(v map[string]string) Payload {
			return Experience{JobTitle: v["jobTitle"], Company: v["company"], Duration: v["duration"],
				Description: v["description"]}
		}},
	enums.SectionProfile: {Kind: enums.SectionProfile, Title: "Profile", Noun: "Profile", Shape: ShapeText,
		Placeholder: "Enter your profile information here"},
	enums.SectionReference: {Kind: enums.SectionReference, Title: "Reference", Noun: "Reference", Shape: ShapeText,
		Placeholder: "Reference information"},
}

// ListSections are the list-typed sections in page order
var ListSections = []enums.Section{enums.SectionContact, enums.SectionEducation, enums.SectionSkill,
	enums.SectionLanguage, enums.SectionExperience}

// TextSections are the free-text sections in page order
var TextSections = []enums.Section{enums.SectionProfile, enums.SectionReference}

// Lookup returns the descriptor of a section
func Lookup(kind enums.Section) (Section, error) {
	s, ok := sections[kind]
	if !ok {
		return Section{}, fmt.Errorf("unknown section %q", kind)
	}
	return s, nil
}

// IsList reports whether entries of the section are addressable list items
func (s Section) IsList() bool { return s.Shape == ShapeScalar || s.Shape == ShapeRecord }

// Decode builds a payload from submitted form values keyed by field name.
// Scalar values are trimmed, record fields are kept as entered.
func (s Section) Decode(values map[string]string) (Payload, error) {
	if s.decode == nil {
		return nil, fmt.Errorf("section %s has no entries", s.Kind)
	}
	return s.decode(values), nil
}

// Blank returns an empty payload of the section
func (s Section) Blank() (Payload, error) {
	return s.Decode(map[string]string{})
}

// FieldNames returns the form field names of the section entries
func (s Section) FieldNames() []string {
	p, err := s.Blank()
	if err != nil {
		return nil
	}
	res := make([]string, 0, len(p.Fields()))
	for _, f := range p.Fields() {
		res = append(res, f.Name)
	}
	return res
}
