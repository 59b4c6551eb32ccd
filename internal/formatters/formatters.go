package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"careercoach/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ResumeReviewOutput", &ReviewTextFormatter{})
	registry.RegisterFormatter("markdown", "ResumeReviewOutput", &ReviewMarkdownFormatter{})
	registry.RegisterFormatter("text", "InterviewReport", &InterviewTextFormatter{})
	registry.RegisterFormatter("markdown", "InterviewReport", &InterviewMarkdownFormatter{})
	registry.RegisterFormatter("text", "QuestionnaireReport", &QuestionnaireTextFormatter{})
	registry.RegisterFormatter("markdown", "QuestionnaireReport", &QuestionnaireMarkdownFormatter{})
	registry.RegisterFormatter("text", "HowItWorks", &HowItWorksTextFormatter{})
	registry.RegisterFormatter("markdown", "HowItWorks", &HowItWorksMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ResumeReviewOutput, *types.ResumeReviewOutput:
		return "ResumeReviewOutput"
	case types.InterviewReport, *types.InterviewReport:
		return "InterviewReport"
	case types.QuestionnaireReport, *types.QuestionnaireReport:
		return "QuestionnaireReport"
	case []types.HowItWorksStep:
		return "HowItWorks"
	default:
		return "any"
	}
}

// deref accepts T or *T so callers may pass either
func deref[T any](data any) (T, bool) {
	switch v := data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ReviewTextFormatter prints a resume review as plain text
type ReviewTextFormatter struct{}

func (f *ReviewTextFormatter) Format(data any) (string, error) {
	result, ok := deref[types.ResumeReviewOutput](data)
	if !ok {
		return "", fmt.Errorf("expected ResumeReviewOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== RESUME REVIEW ===\n")
	if result.FileName != "" {
		fmt.Fprintf(&output, "File: %s\n", result.FileName)
	}
	if result.PageCount > 1 {
		fmt.Fprintf(&output, "Pages: %d (only the first page was reviewed)\n", result.PageCount)
	}
	output.WriteString("\n")
	output.WriteString(strings.TrimSpace(result.Report))
	output.WriteString("\n")
	return output.String(), nil
}

func (f *ReviewTextFormatter) SupportedType() string {
	return "ResumeReviewOutput"
}

// ReviewMarkdownFormatter renders a resume review as markdown
type ReviewMarkdownFormatter struct{}

func (f *ReviewMarkdownFormatter) Format(data any) (string, error) {
	result, ok := deref[types.ResumeReviewOutput](data)
	if !ok {
		return "", fmt.Errorf("expected ResumeReviewOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Resume Review\n\n")
	if result.FileName != "" {
		fmt.Fprintf(&output, "**File:** %s\n\n", result.FileName)
	}
	if result.PageCount > 1 {
		fmt.Fprintf(&output, "> Only page 1 of %d was reviewed.\n\n", result.PageCount)
	}
	output.WriteString(strings.TrimSpace(result.Report))
	output.WriteString("\n")
	return output.String(), nil
}

func (f *ReviewMarkdownFormatter) SupportedType() string {
	return "ResumeReviewOutput"
}

// InterviewTextFormatter prints the full mock interview outcome
type InterviewTextFormatter struct{}

func (f *InterviewTextFormatter) Format(data any) (string, error) {
	report, ok := deref[types.InterviewReport](data)
	if !ok {
		return "", fmt.Errorf("expected InterviewReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== RESUME ANALYSIS ===\n\n")
	output.WriteString(strings.TrimSpace(report.ResumeAnalysis))
	output.WriteString("\n\n")

	output.WriteString("=== INTERVIEW ===\n\n")
	for i, qa := range report.Questions {
		fmt.Fprintf(&output, "Question %d: %s\n", i+1, qa.Question)
		fmt.Fprintf(&output, "Answer: %s\n\n", qa.Answer)
	}

	output.WriteString("=== FEEDBACK ===\n\n")
	output.WriteString(strings.TrimSpace(report.Feedback))
	output.WriteString("\n")
	return output.String(), nil
}

func (f *InterviewTextFormatter) SupportedType() string {
	return "InterviewReport"
}

// InterviewMarkdownFormatter renders the mock interview outcome as markdown
type InterviewMarkdownFormatter struct{}

func (f *InterviewMarkdownFormatter) Format(data any) (string, error) {
	report, ok := deref[types.InterviewReport](data)
	if !ok {
		return "", fmt.Errorf("expected InterviewReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Interview Report\n\n")
	if report.FileName != "" {
		fmt.Fprintf(&output, "**Resume:** %s\n\n", report.FileName)
	}

	output.WriteString("## Resume Analysis\n\n")
	output.WriteString(strings.TrimSpace(report.ResumeAnalysis))
	output.WriteString("\n\n")

	output.WriteString("## Questions and Answers\n\n")
	for i, qa := range report.Questions {
		fmt.Fprintf(&output, "### %d. %s\n\n", i+1, qa.Question)
		fmt.Fprintf(&output, "%s\n\n", qa.Answer)
	}

	output.WriteString("## Feedback\n\n")
	output.WriteString(strings.TrimSpace(report.Feedback))
	output.WriteString("\n")
	return output.String(), nil
}

func (f *InterviewMarkdownFormatter) SupportedType() string {
	return "InterviewReport"
}

// QuestionnaireTextFormatter prints the chosen answers followed by the analysis
type QuestionnaireTextFormatter struct{}

func (f *QuestionnaireTextFormatter) Format(data any) (string, error) {
	report, ok := deref[types.QuestionnaireReport](data)
	if !ok {
		return "", fmt.Errorf("expected QuestionnaireReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== YOUR ANSWERS ===\n\n")
	for i, r := range report.Responses {
		fmt.Fprintf(&output, "%d. %s\n   %s\n", i+1, r.Question, r.Answer)
	}
	output.WriteString("\n=== CAREER ANALYSIS ===\n\n")
	output.WriteString(strings.TrimSpace(report.Analysis))
	output.WriteString("\n")
	return output.String(), nil
}

func (f *QuestionnaireTextFormatter) SupportedType() string {
	return "QuestionnaireReport"
}

type QuestionnaireMarkdownFormatter struct{}

func (f *QuestionnaireMarkdownFormatter) Format(data any) (string, error) {
	report, ok := deref[types.QuestionnaireReport](data)
	if !ok {
		return "", fmt.Errorf("expected QuestionnaireReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Career Questionnaire\n\n")
	output.WriteString("## Your Answers\n\n")
	for i, r := range report.Responses {
		fmt.Fprintf(&output, "%d. **%s** %s\n", i+1, r.Question, r.Answer)
	}
	output.WriteString("\n## Analysis\n\n")
	output.WriteString(strings.TrimSpace(report.Analysis))
	output.WriteString("\n")
	return output.String(), nil
}

func (f *QuestionnaireMarkdownFormatter) SupportedType() string {
	return "QuestionnaireReport"
}

// HowItWorksTextFormatter prints the walkthrough steps
type HowItWorksTextFormatter struct{}

func (f *HowItWorksTextFormatter) Format(data any) (string, error) {
	steps, ok := data.([]types.HowItWorksStep)
	if !ok {
		return "", fmt.Errorf("expected []HowItWorksStep, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== HOW IT WORKS ===\n\n")
	for _, step := range steps {
		fmt.Fprintf(&output, "%d. %s\n   %s\n\n", step.Step, step.Title, step.Description)
	}
	return output.String(), nil
}

func (f *HowItWorksTextFormatter) SupportedType() string {
	return "HowItWorks"
}

type HowItWorksMarkdownFormatter struct{}

func (f *HowItWorksMarkdownFormatter) Format(data any) (string, error) {
	steps, ok := data.([]types.HowItWorksStep)
	if !ok {
		return "", fmt.Errorf("expected []HowItWorksStep, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# How It Works\n\n")
	for _, step := range steps {
		fmt.Fprintf(&output, "## %d. %s\n\n%s\n\n", step.Step, step.Title, step.Description)
	}
	return output.String(), nil
}

func (f *HowItWorksMarkdownFormatter) SupportedType() string {
	return "HowItWorks"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
