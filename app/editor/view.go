package editor

import (
	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
)

// SectionView is the render model of a section
type SectionView struct {
	Kind        enums.Section
	Title       string
	Shape       resume.Shape
	Placeholder string
	Fields      []string // entry field names, empty for text sections
	Entries     []EntryView
	Text        string // text sections only
	AddValue    string // rejected add-input value, kept for correction
	AddError    string // validation message of the rejected add
}

// IsText reports whether the section is a free-text section
func (s SectionView) IsText() bool { return s.Shape == resume.ShapeText }

// IsRecord reports whether entries of the section have several fields
func (s SectionView) IsRecord() bool { return s.Shape == resume.ShapeRecord }

// EntryView is the render model of a list entry
type EntryView struct {
	ID         string
	Section    enums.Section
	Index      int
	State      enums.EntryState
	Fields     []resume.Field // committed values in display, entered values in editing
	Error      string         // validation message, editing only
	SaveStatus enums.SaveStatus
}

// Editing reports whether the entry shows inputs
func (v EntryView) Editing() bool { return v.State == enums.EntryStateEditing }

// Saved reports whether the entry shows the transient save acknowledgment
func (v EntryView) Saved() bool { return v.SaveStatus == enums.SaveStatusSaved }

// Value returns the value of the first field, the only one for scalar entries
func (v EntryView) Value() string {
	if len(v.Fields) == 0 {
		return ""
	}
	return v.Fields[0].Value
}
