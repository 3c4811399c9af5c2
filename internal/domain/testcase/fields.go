package testcase

import (
	"fmt"
	"strings"
	"time"
)

// Field names an editable test case attribute.
type Field string

const (
	FieldProcess        Field = "process"
	FieldCaseID         Field = "caseId"
	FieldDescription    Field = "description"
	FieldTestData       Field = "testData"
	FieldSteps          Field = "steps"
	FieldExpectedResult Field = "expectedResult"
	FieldEvidence       Field = "evidence"
	FieldComments       Field = "comments"
	FieldStatus         Field = "status"
)

// Fields lists every editable field.
var Fields = []Field{
	FieldProcess,
	FieldCaseID,
	FieldDescription,
	FieldTestData,
	FieldSteps,
	FieldExpectedResult,
	FieldEvidence,
	FieldComments,
	FieldStatus,
}

// ParseField resolves a field name, ignoring case.
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(name)
	for _, f := range Fields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Edit describes who applies a field update and when.
type Edit struct {
	Editor string
	At     time.Time
}

// Apply returns a copy of tc with the given field values set.
// A status change is validated against the final values of all other fields
// and stamps the editor. The original is never modified.
func Apply(tc TestCase, values map[Field]string, edit Edit) (TestCase, error) {
	next := tc
	status := tc.Status
	statusSet := false

	for field, value := range values {
		switch field {
		case FieldProcess:
			next.Process = value
		case FieldCaseID:
			next.CaseID = value
		case FieldDescription:
			next.Description = value
		case FieldTestData:
			next.TestData = value
		case FieldSteps:
			next.Steps = value
		case FieldExpectedResult:
			next.ExpectedResult = value
		case FieldEvidence:
			next.Evidence = value
		case FieldComments:
			next.Comments = value
		case FieldStatus:
			parsed, err := ParseStatus(value)
			if err != nil {
				return tc, err
			}
			status = parsed
			statusSet = true
		default:
			return tc, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	if !statusSet || status == tc.Status {
		return next, nil
	}

	if err := ValidateStatusChange(next, status); err != nil {
		return tc, err
	}
	next.Status = status
	next.LastEditor = edit.Editor
	at := edit.At
	next.LastEditedAt = &at
	return next, nil
}
