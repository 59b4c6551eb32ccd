package types

// Interview question types returned by the model
const (
	QuestionTypeTechnical  = "technical"
	QuestionTypeBehavioral = "behavioral"
)

// InterviewQuestion is one generated interview question
type InterviewQuestion struct {
	ID       int    `json:"id"`
	Type     string `json:"type"` // "technical" or "behavioral"
	Question string `json:"question"`
	Category string `json:"category"`
}

// QuestionSet is the JSON document the model returns for question generation
type QuestionSet struct {
	Questions []InterviewQuestion `json:"questions"`
}

// ResumeReviewOutput is the result of a one-shot ATS style resume review
type ResumeReviewOutput struct {
	FileName  string `json:"fileName"`
	PageCount int    `json:"pageCount"`
	Report    string `json:"report"`
}

// QuestionAnswer pairs a question with the answer given to it
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InterviewReport is the outcome of a completed mock interview
type InterviewReport struct {
	FileName       string           `json:"fileName"`
	ResumeAnalysis string           `json:"resumeAnalysis"`
	Questions      []QuestionAnswer `json:"questions"`
	Feedback       string           `json:"feedback"`
}

// QuestionnaireQuestion is one multiple-choice career questionnaire item
type QuestionnaireQuestion struct {
	ID       int      `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
}

// QuestionnaireReport is the outcome of a completed questionnaire
type QuestionnaireReport struct {
	Responses []QuestionAnswer `json:"responses"`
	Analysis  string           `json:"analysis"`
}

// HowItWorksStep is one step of the product walkthrough
type HowItWorksStep struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
