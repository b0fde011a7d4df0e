package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/makeasinger/moviegen/internal/model"
)

// SchemaError reports model output that cannot become a MovieConcept.
type SchemaError struct {
	Issues []string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "generated content does not match the movie concept schema"
	if len(e.Issues) > 0 {
		msg += ": " + strings.Join(e.Issues, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ParseConcept strictly decodes model output into a MovieConcept.
// The content must be exactly one JSON object carrying all twelve keys with string values.
// Surrounding prose or code fences are rejected, values are kept verbatim, and unknown keys are ignored.
func ParseConcept(content string) (*model.MovieConcept, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &SchemaError{Err: fmt.Errorf("invalid JSON object: %w", err)}
	}
	if raw == nil {
		// literal null
		return nil, &SchemaError{Issues: []string{"content is not a JSON object"}}
	}

	var issues []string
	fields := make(map[string]string, len(model.ConceptFields))
	for _, f := range model.ConceptFields {
		v, ok := raw[f.Key]
		if !ok {
			issues = append(issues, f.Key+" is missing")
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil || isNull(v) {
			issues = append(issues, f.Key+" must be a string")
			continue
		}
		fields[f.Key] = s
	}
	if len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}

	concept := model.ConceptFromFields(fields)
	return &concept, nil
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}
