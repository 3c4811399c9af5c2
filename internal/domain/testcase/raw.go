package testcase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Raw is an imported test case before it receives an id.
// Status may be empty or use any spelling ParseStatus accepts.
type Raw struct {
	Process        string `json:"process"`
	CaseID         string `json:"caseId"`
	Description    string `json:"description"`
	TestData       string `json:"testData"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expectedResult"`
	Evidence       string `json:"evidence"`
	Comments       string `json:"comments"`
	Status         string `json:"status"`
}

// ToTestCase validates the record and returns a case without an id.
func (r Raw) ToTestCase() (TestCase, error) {
	status, err := ParseStatus(r.Status)
	if err != nil {
		return TestCase{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return TestCase{
		Process:        r.Process,
		CaseID:         r.CaseID,
		Description:    r.Description,
		TestData:       r.TestData,
		Steps:          r.Steps,
		ExpectedResult: r.ExpectedResult,
		Evidence:       r.Evidence,
		Comments:       r.Comments,
		Status:         status,
	}, nil
}

// DecodeRawJSON parses an import file. It accepts either a JSON array of
// records or an object holding the array under "testCases" or "cases".
// Scalar values are coerced to strings; nested values are rejected.
func DecodeRawJSON(data []byte) ([]Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidRecord)
	}

	var items []map[string]any
	if data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		list, ok := wrapper["testCases"]
		if !ok {
			list, ok = wrapper["cases"]
		}
		if !ok {
			return nil, fmt.Errorf("%w: no testCases array", ErrInvalidRecord)
		}
		data = list
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	raws := make([]Raw, 0, len(items))
	for i, item := range items {
		raw, err := rawFromMap(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func rawFromMap(item map[string]any) (Raw, error) {
	var raw Raw
	targets := map[Field]*string{
		FieldProcess:        &raw.Process,
		FieldCaseID:         &raw.CaseID,
		FieldDescription:    &raw.Description,
		FieldTestData:       &raw.TestData,
		FieldSteps:          &raw.Steps,
		FieldExpectedResult: &raw.ExpectedResult,
		FieldEvidence:       &raw.Evidence,
		FieldComments:       &raw.Comments,
		FieldStatus:         &raw.Status,
	}
	for key, value := range item {
		field, err := ParseField(key)
		if err != nil {
			continue
		}
		text, err := scalarString(value)
		if err != nil {
			return Raw{}, fmt.Errorf("%w: field %s: %w", ErrInvalidRecord, field, err)
		}
		*targets[field] = text
	}
	if _, err := ParseStatus(raw.Status); err != nil {
		return Raw{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return raw, nil
}

func scalarString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", value)
	}
}
