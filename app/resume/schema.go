package resume

import (
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

var compiled struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

// SchemaError reports a document that doesn't match the resume schema
type SchemaError struct {
	Errors []FieldError
}

// FieldError is a single schema violation at a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *SchemaError) Error() string {
	var sb strings.Builder
	sb.WriteString("document doesn't match resume schema:")
	for i, fe := range e.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, fe.Field, fe.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Schema reflects the JSON schema of Document. Fields are type-checked, none of them is required,
// missing lists are treated as empty.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Document{})
	s.Version = "http://json-schema.org/draft-07/schema#"
	s.ID = ""
	s.Title = "Resume document"
	s.Description = "Persisted and fallback shape of the resume"
	return s
}

// ValidateDocument checks a decoded document (maps, slices and scalars as produced by
// json or yaml decoding) against the resume schema
func ValidateDocument(doc any) error {
	compiled.once.Do(func() {
		compiled.schema, compiled.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(Schema()))
	})
	if compiled.err != nil {
		return fmt.Errorf("failed to compile resume schema: %w", compiled.err)
	}

	res, err := compiled.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate document: %w", err)
	}
	if res.Valid() {
		return nil
	}

	serr := &SchemaError{}
	for _, e := range res.Errors() {
		serr.Errors = append(serr.Errors, FieldError{Field: e.Field(), Message: e.Description()})
	}
	return serr
}
