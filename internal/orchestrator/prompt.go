package orchestrator

import (
	"fmt"
	"strings"
)

// systemPrompt instructs the model to answer with the report JSON and
// nothing else. The five top-level keys match what the verifier
// expects.
const systemPrompt = "You are an AI assistant specialized in analyzing medical blood test reports. " +
	"Your task is to extract structured information from the blood test report text and return it in a specific JSON format. " +
	"The JSON must include these main sections: " +
	"1. 'report_info': general information about the report including report_type, report_date, lab_name and doctor. " +
	"2. 'patient_info': details about the patient including name, age, gender and patient ID. " +
	"3. 'test_sections': all test categories as a list, each with a section_name and a list of parameters carrying name, value, unit and reference_range. " +
	"4. 'abnormal_parameters': a list of all abnormal values with their details. " +
	"5. 'health_insights': clinical interpretation of results and recommendations. " +
	"Please ensure all JSON is valid, and extract as much information as possible from the provided text. " +
	"DO NOT include any explanatory text in your response - ONLY return the JSON object."

// userPrompt wraps the normalized document text, with optional caller
// context ahead of it.
func userPrompt(text, extraContext string) string {
	var b strings.Builder
	if extraContext != "" {
		b.WriteString("Additional context from the requester:\n")
		b.WriteString(extraContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Please analyze this blood test report and extract the structured information into JSON format. ")
	b.WriteString("Respond ONLY with valid JSON, no other text:\n\n")
	b.WriteString(text)
	return b.String()
}

// feedbackMessage enumerates validation errors verbatim for the
// refinement turn.
func feedbackMessage(errors []string) string {
	var b strings.Builder
	b.WriteString("The extracted data has the following issues that need to be fixed:\n")
	for _, e := range errors {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\nPlease correct these issues and provide a complete, valid JSON response.")
	return b.String()
}
