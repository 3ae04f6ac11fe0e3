package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Outcome carries the result of validating one extracted document.
// Errors block acceptance and drive refinement; warnings are advisory
// and attached to the response as-is.
type Outcome struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the document passed with no blocking errors.
func (o Outcome) Valid() bool { return len(o.Errors) == 0 }

// Messages returns errors followed by warnings, the order they are
// reported to callers.
func (o Outcome) Messages() []string {
	out := make([]string, 0, len(o.Errors)+len(o.Warnings))
	out = append(out, o.Errors...)
	out = append(out, o.Warnings...)
	return out
}

var expectedFields = []string{
	"report_info",
	"patient_info",
	"test_sections",
	"abnormal_parameters",
	"health_insights",
}

type valueRange struct {
	min, max float64
}

// Plausible ranges for common blood test parameters. Values outside a
// range produce warnings, never errors; units vary between labs and a
// wrong unit is a reporting issue, not a structural one.
var parameterRanges = map[string]valueRange{
	"hemoglobin":    {7, 20},    // g/dL
	"wbc":           {2, 20},    // K/uL
	"rbc":           {2, 7},     // M/uL
	"platelets":     {50, 500},  // K/uL
	"glucose":       {40, 300},  // mg/dL
	"cholesterol":   {100, 300}, // mg/dL
	"hdl":           {20, 100},  // mg/dL
	"ldl":           {40, 200},  // mg/dL
	"triglycerides": {40, 500},  // mg/dL
	"alt":           {5, 200},   // U/L
	"ast":           {5, 200},   // U/L
	"bun":           {5, 50},    // mg/dL
	"creatinine":    {0.4, 5},   // mg/dL
	"tsh":           {0.1, 10},  // mIU/L
	"t4":            {4, 12},    // ug/dL
	"t3":            {80, 200},  // ng/dL
	"vitamin_d":     {10, 100},  // ng/mL
	"iron":          {30, 200},  // ug/dL
	"ferritin":      {10, 500},  // ng/mL
	"sodium":        {120, 150}, // mmol/L
	"potassium":     {3, 6},     // mmol/L
	"calcium":       {8, 11},    // mg/dL
	"magnesium":     {1, 3},     // mg/dL
	"phosphorus":    {2, 5},     // mg/dL
	"albumin":       {2, 6},     // g/dL
	"a1c":           {4, 14},    // %
	"psa":           {0, 10},    // ng/mL
}

// Verifier validates the structure and plausibility of extracted
// medical report data.
type Verifier struct{}

func NewVerifier() *Verifier { return &Verifier{} }

// Verify walks the document and collects blocking errors and advisory
// warnings. It never mutates the input.
func (v *Verifier) Verify(data map[string]any) Outcome {
	var out Outcome

	if data == nil {
		out.Errors = append(out.Errors, "extracted data is empty")
		return out
	}

	for _, field := range expectedFields {
		if _, ok := data[field]; !ok {
			out.Errors = append(out.Errors, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	v.checkReportInfo(data, &out)
	v.checkPatientInfo(data, &out)
	v.checkTestSections(data, &out)
	v.checkAbnormalParameters(data, &out)
	v.checkHealthInsights(data, &out)

	log.Debug().Int("errors", len(out.Errors)).Int("warnings", len(out.Warnings)).Msg("document verified")
	return out
}

func (v *Verifier) checkReportInfo(data map[string]any, out *Outcome) {
	raw, ok := data["report_info"]
	if !ok {
		return
	}
	info, ok := raw.(map[string]any)
	if !ok {
		out.Errors = append(out.Errors, "report_info must be a dictionary")
		return
	}
	for _, field := range []string{"report_type", "report_date", "lab_name"} {
		if _, ok := info[field]; !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Missing report_info field: %s", field))
		}
	}
}

func (v *Verifier) checkPatientInfo(data map[string]any, out *Outcome) {
	raw, ok := data["patient_info"]
	if !ok {
		return
	}
	info, ok := raw.(map[string]any)
	if !ok {
		out.Errors = append(out.Errors, "patient_info must be a dictionary")
		return
	}
	for _, field := range []string{"name", "age", "gender"} {
		if _, ok := info[field]; !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Missing patient_info field: %s", field))
		}
	}
	if rawAge, ok := info["age"]; ok {
		// An age like "45 years" is left alone; only plainly numeric
		// values are range-checked.
		if age, ok := strictNumeric(rawAge); ok {
			if age < 0 || age > 120 {
				out.Warnings = append(out.Warnings, fmt.Sprintf("Implausible age: %s", formatNumber(age)))
			}
		}
	}
}

func (v *Verifier) checkTestSections(data map[string]any, out *Outcome) {
	raw, ok := data["test_sections"]
	if !ok {
		return
	}
	sections, ok := raw.([]any)
	if !ok {
		out.Errors = append(out.Errors, "test_sections must be a list")
		return
	}
	if len(sections) == 0 {
		out.Warnings = append(out.Warnings, "test_sections list is empty")
		return
	}

	for i, rawSection := range sections {
		section, ok := rawSection.(map[string]any)
		if !ok {
			out.Errors = append(out.Errors, fmt.Sprintf("Test section %d must be a dictionary", i))
			continue
		}
		if _, ok := section["section_name"]; !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Missing section_name in test section %d", i))
		}
		rawParams, ok := section["parameters"]
		if !ok {
			out.Errors = append(out.Errors, fmt.Sprintf("Missing parameters in test section %d", i))
			continue
		}
		params, ok := rawParams.([]any)
		if !ok {
			out.Errors = append(out.Errors, fmt.Sprintf("parameters in test section %d must be a list", i))
			continue
		}
		for j, rawParam := range params {
			param, ok := rawParam.(map[string]any)
			if !ok {
				out.Errors = append(out.Errors, fmt.Sprintf("Parameter %d in section %d must be a dictionary", j, i))
				continue
			}
			for _, field := range []string{"name", "value"} {
				if _, ok := param[field]; !ok {
					out.Errors = append(out.Errors, fmt.Sprintf("Missing %s in parameter %d, section %d", field, j, i))
				}
			}
			v.checkParameterValue(param, out)
			if abnormal, ok := param["is_abnormal"].(bool); ok && abnormal {
				v.checkDirection(param, fmt.Sprintf("parameter %d in section %d", j, i), out)
			}
		}
	}
}

func (v *Verifier) checkParameterValue(param map[string]any, out *Outcome) {
	rawName, ok := param["name"].(string)
	if !ok {
		return
	}
	rawValue, ok := param["value"]
	if !ok {
		return
	}
	value, ok := numericValue(rawValue)
	if !ok {
		return
	}

	name := strings.ReplaceAll(strings.ToLower(rawName), " ", "_")
	for known, r := range parameterRanges {
		if strings.Contains(name, known) || strings.Contains(known, name) {
			if value < r.min || value > r.max {
				out.Warnings = append(out.Warnings, fmt.Sprintf(
					"Unusual value %s for %s. Expected range: %s-%s",
					formatNumber(value), rawName, formatNumber(r.min), formatNumber(r.max)))
			}
		}
	}
}

func (v *Verifier) checkAbnormalParameters(data map[string]any, out *Outcome) {
	raw, ok := data["abnormal_parameters"]
	if !ok {
		return
	}
	params, ok := raw.([]any)
	if !ok {
		out.Errors = append(out.Errors, "abnormal_parameters must be a list")
		return
	}
	for i, rawParam := range params {
		param, ok := rawParam.(map[string]any)
		if !ok {
			continue
		}
		v.checkDirection(param, fmt.Sprintf("abnormal parameter %d", i), out)
	}
}

// checkDirection enforces that a flagged abnormal value declares which
// reference bound it violates, and the right one.
func (v *Verifier) checkDirection(param map[string]any, where string, out *Outcome) {
	if abnormal, ok := param["is_abnormal"].(bool); ok && !abnormal {
		return
	}

	value, okValue := numericValue(param["value"])
	min, max, okRange := parseReferenceRange(param["reference_range"])
	if !okValue || !okRange {
		return
	}
	var expected string
	switch {
	case value > max:
		expected = "high"
	case value < min:
		expected = "low"
	default:
		return
	}

	direction, _ := param["direction"].(string)
	if strings.ToLower(direction) != expected {
		out.Errors = append(out.Errors, fmt.Sprintf(
			"%s: direction must be %q for value %s against range %s-%s, got %q",
			where, expected, formatNumber(value), formatNumber(min), formatNumber(max), direction))
	}
}

var rangeRe = regexp.MustCompile(`(\d+\.?\d*)\s*[-\x{2013}]\s*(\d+\.?\d*)`)

// parseReferenceRange understands "12.0-16.0" style bounds, with or
// without surrounding units.
func parseReferenceRange(raw any) (float64, float64, bool) {
	s, ok := raw.(string)
	if !ok {
		return 0, 0, false
	}
	m := rangeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	min, err1 := strconv.ParseFloat(m[1], 64)
	max, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || min > max {
		return 0, 0, false
	}
	return min, max, true
}

func (v *Verifier) checkHealthInsights(data map[string]any, out *Outcome) {
	raw, ok := data["health_insights"]
	if !ok {
		return
	}
	// Both shapes occur in the wild: a keyed object of insight groups
	// and a flat list of insight entries.
	switch raw.(type) {
	case map[string]any, []any:
	default:
		out.Errors = append(out.Errors, "health_insights must be a dictionary or list")
	}
}

var leadingNumberRe = regexp.MustCompile(`(\d+\.?\d*)`)

// numericValue extracts a number from a raw JSON value. Strings like
// "13.5 g/dL" yield their leading number; non-numeric values yield
// ok=false.
func numericValue(raw any) (float64, bool) {
	switch val := raw.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		m := leadingNumberRe.FindString(val)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// strictNumeric accepts numbers and fully numeric strings only.
func strictNumeric(raw any) (float64, bool) {
	switch val := raw.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
