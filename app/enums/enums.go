// Package enums provides type-safe enumeration types shared by the editor, store and web packages.
//
// This package uses code generation via go-pkgz/enum. The enum types are defined as unexported
// integer types (e.g., section int) in this file, and the go:generate directives invoke the enum
// generator to create the exported types with String, Parse, Must, text marshaling and sql
// Scan/Value methods in separate files (*_enum.go).
//
// Usage:
//
//	sec := enums.SectionSkill
//	fmt.Println(sec.String()) // "skill"
//
//	parsed, err := enums.ParseSection(r.PathValue("section"))
//	if err != nil {
//	    // handle invalid input
//	}
//
// To regenerate the enum types after modifications:
//
//	go generate ./app/enums
//
// Note: The unexported type definitions below are only used by the generator.
// All actual code should use the generated exported types.
package enums

//go:generate go run github.com/go-pkgz/enum@latest -type section -lower
//go:generate go run github.com/go-pkgz/enum@latest -type entryState -lower
//go:generate go run github.com/go-pkgz/enum@latest -type saveStatus -lower
//go:generate go run github.com/go-pkgz/enum@latest -type event -lower
//go:generate go run github.com/go-pkgz/enum@latest -type theme -lower

// section represents one of the seven top-level resume categories.
// This is an unexported type used only as input for the code generator.
type section int

const (
	sectionContact section = iota
	sectionEducation
	sectionSkill
	sectionLanguage
	sectionExperience
	sectionProfile
	sectionReference
)

// entryState represents the edit state of a single list entry.
type entryState int

const (
	entryStateDisplay entryState = iota
	entryStateEditing
)

// saveStatus is the status signal reported after an operation touched persistence.
type saveStatus int

const (
	saveStatusNone saveStatus = iota
	saveStatusSaved
	saveStatusFailed
)

// event represents notification events sent to external destinations.
type event int

const (
	eventReset event = iota
	eventPersistFailed
	eventFetchFailed
)

// theme represents UI themes.
type theme int

const (
	themeLight theme = iota
	themeDark
)
