package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() map[string]any {
	return map[string]any{
		"report_info": map[string]any{
			"report_type": "Blood Test",
			"report_date": "2026-05-01",
			"lab_name":    "Acme Diagnostics",
		},
		"patient_info": map[string]any{
			"name":   "John Doe",
			"age":    float64(45),
			"gender": "male",
		},
		"test_sections": []any{
			map[string]any{
				"section_name": "Complete Blood Count",
				"parameters": []any{
					map[string]any{"name": "Hemoglobin", "value": "13.5 g/dL"},
					map[string]any{"name": "WBC", "value": float64(6.2)},
				},
			},
		},
		"abnormal_parameters": []any{},
		"health_insights":     map[string]any{"summary": "All values within range."},
	}
}

func TestVerifyValidDocument(t *testing.T) {
	out := NewVerifier().Verify(validDocument())
	assert.True(t, out.Valid())
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Warnings)
}

func TestVerifyMissingTopLevelFields(t *testing.T) {
	out := NewVerifier().Verify(map[string]any{})
	assert.False(t, out.Valid())
	require.Len(t, out.Errors, 5)
	assert.Contains(t, out.Errors, "Missing required field: report_info")
	assert.Contains(t, out.Errors, "Missing required field: patient_info")
	assert.Contains(t, out.Errors, "Missing required field: test_sections")
	assert.Contains(t, out.Errors, "Missing required field: abnormal_parameters")
	assert.Contains(t, out.Errors, "Missing required field: health_insights")
}

func TestVerifyNilDocument(t *testing.T) {
	out := NewVerifier().Verify(nil)
	assert.False(t, out.Valid())
}

func TestVerifyWrongShapes(t *testing.T) {
	doc := validDocument()
	doc["report_info"] = "not a dict"
	doc["patient_info"] = []any{}
	doc["test_sections"] = "not a list"
	doc["abnormal_parameters"] = map[string]any{}
	doc["health_insights"] = "free text"

	out := NewVerifier().Verify(doc)
	assert.False(t, out.Valid())
	assert.Contains(t, out.Errors, "report_info must be a dictionary")
	assert.Contains(t, out.Errors, "patient_info must be a dictionary")
	assert.Contains(t, out.Errors, "test_sections must be a list")
	assert.Contains(t, out.Errors, "abnormal_parameters must be a list")
	assert.Contains(t, out.Errors, "health_insights must be a dictionary or list")
}

func TestVerifyHealthInsightsBothShapes(t *testing.T) {
	doc := validDocument()
	doc["health_insights"] = []any{map[string]any{"insight": "Stay hydrated."}}
	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())

	doc["health_insights"] = map[string]any{"hydration": "Stay hydrated."}
	out = NewVerifier().Verify(doc)
	assert.True(t, out.Valid())
}

func TestVerifyMissingSubFieldsAreWarnings(t *testing.T) {
	doc := validDocument()
	doc["report_info"] = map[string]any{}
	doc["patient_info"] = map[string]any{}

	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())
	assert.Contains(t, out.Warnings, "Missing report_info field: report_type")
	assert.Contains(t, out.Warnings, "Missing report_info field: report_date")
	assert.Contains(t, out.Warnings, "Missing report_info field: lab_name")
	assert.Contains(t, out.Warnings, "Missing patient_info field: name")
	assert.Contains(t, out.Warnings, "Missing patient_info field: age")
	assert.Contains(t, out.Warnings, "Missing patient_info field: gender")
}

func TestVerifyImplausibleAge(t *testing.T) {
	doc := validDocument()
	doc["patient_info"].(map[string]any)["age"] = float64(200)
	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())
	assert.Contains(t, out.Warnings, "Implausible age: 200")

	// Free-form ages are not range-checked.
	doc["patient_info"].(map[string]any)["age"] = "200 years"
	out = NewVerifier().Verify(doc)
	assert.Empty(t, out.Warnings)
}

func TestVerifyParameterPlausibility(t *testing.T) {
	doc := validDocument()
	doc["test_sections"] = []any{
		map[string]any{
			"section_name": "Chemistry",
			"parameters": []any{
				map[string]any{"name": "Glucose", "value": "500 mg/dL"},
				map[string]any{"name": "TSH", "value": float64(2.1)},
			},
		},
	}
	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "Unusual value 500 for Glucose. Expected range: 40-300", out.Warnings[0])
}

func TestVerifyParameterStructure(t *testing.T) {
	doc := validDocument()
	doc["test_sections"] = []any{
		map[string]any{
			"parameters": []any{
				map[string]any{"value": "13.5"},
				"not a dict",
			},
		},
		map[string]any{"section_name": "Empty"},
	}
	out := NewVerifier().Verify(doc)
	assert.False(t, out.Valid())
	assert.Contains(t, out.Errors, "Missing name in parameter 0, section 0")
	assert.Contains(t, out.Errors, "Parameter 1 in section 0 must be a dictionary")
	assert.Contains(t, out.Errors, "Missing parameters in test section 1")
	assert.Contains(t, out.Warnings, "Missing section_name in test section 0")
}

func TestVerifyEmptySectionsIsWarning(t *testing.T) {
	doc := validDocument()
	doc["test_sections"] = []any{}
	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())
	assert.Contains(t, out.Warnings, "test_sections list is empty")
}

func TestVerifyAbnormalDirection(t *testing.T) {
	doc := validDocument()

	// Correct direction passes.
	doc["abnormal_parameters"] = []any{
		map[string]any{"name": "Glucose", "value": "120 mg/dL", "reference_range": "70-100", "direction": "high"},
	}
	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())

	// Wrong direction is a blocking error.
	doc["abnormal_parameters"] = []any{
		map[string]any{"name": "Glucose", "value": "120 mg/dL", "reference_range": "70-100", "direction": "low"},
	}
	out = NewVerifier().Verify(doc)
	assert.False(t, out.Valid())
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], `direction must be "high"`)

	// Missing direction on a violated bound is also an error.
	doc["abnormal_parameters"] = []any{
		map[string]any{"name": "Hemoglobin", "value": float64(10), "reference_range": "12.0-16.0"},
	}
	out = NewVerifier().Verify(doc)
	assert.False(t, out.Valid())
	assert.Contains(t, out.Errors[0], `direction must be "low"`)

	// Value inside the range needs no direction.
	doc["abnormal_parameters"] = []any{
		map[string]any{"name": "Glucose", "value": "90", "reference_range": "70-100"},
	}
	out = NewVerifier().Verify(doc)
	assert.True(t, out.Valid())
}

func TestVerifyDirectionInTestSections(t *testing.T) {
	doc := validDocument()
	doc["test_sections"] = []any{
		map[string]any{
			"section_name": "CBC",
			"parameters": []any{
				map[string]any{
					"name": "Hemoglobin", "value": "18", "reference_range": "12.0-16.0",
					"is_abnormal": true, "direction": "high",
				},
				// Not flagged abnormal: no direction required.
				map[string]any{"name": "WBC", "value": "6.2", "reference_range": "4-11"},
			},
		},
	}
	out := NewVerifier().Verify(doc)
	assert.True(t, out.Valid())

	doc["test_sections"].([]any)[0].(map[string]any)["parameters"].([]any)[0].(map[string]any)["direction"] = "low"
	out = NewVerifier().Verify(doc)
	assert.False(t, out.Valid())
}

func TestParseReferenceRange(t *testing.T) {
	min, max, ok := parseReferenceRange("12.0-16.0")
	require.True(t, ok)
	assert.Equal(t, 12.0, min)
	assert.Equal(t, 16.0, max)

	min, max, ok = parseReferenceRange("70 - 100 mg/dL")
	require.True(t, ok)
	assert.Equal(t, 70.0, min)
	assert.Equal(t, 100.0, max)

	_, _, ok = parseReferenceRange("negative")
	assert.False(t, ok)
	_, _, ok = parseReferenceRange(nil)
	assert.False(t, ok)
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(13.5), 13.5, true},
		{"13.5 g/dL", 13.5, true},
		{"90", 90, true},
		{"< 0.5", 0.5, true},
		{"negative", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := numericValue(tt.in)
		assert.Equal(t, tt.ok, ok)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
