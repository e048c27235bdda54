package resume

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/umputun/cvedit/app/enums"
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	validate = newValidator()
)

// ValidationError reports a user value rejected by the section rules
type ValidationError struct {
	Section enums.Section
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Section, e.Field, e.Message)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("can't register digits validation: %v", err))
	}
	return v
}

// Validate checks the payload against the rules of its section.
// Returns *ValidationError with the first failed rule.
func Validate(p Payload) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate %s: %w", p.Section(), err)
	}

	fe := verrs[0]
	return &ValidationError{Section: p.Section(), Field: fe.Field(), Message: message(p.Section(), fe.Tag())}
}

func message(kind enums.Section, tag string) string {
	sec, err := Lookup(kind)
	if err != nil {
		return "invalid value"
	}
	switch tag {
	case "required":
		return sec.Noun + " cannot be empty"
	case "digits":
		return fmt.Sprintf("Please enter only numbers for %s", lowerFirst(sec.Noun))
	}
	return fmt.Sprintf("Invalid %s", lowerFirst(sec.Noun))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
