package ai

import (
	"fmt"
	"strings"

	"careercoach/internal/config"
	"careercoach/internal/types"
)

// NoAnswerPlaceholder stands in for a blank or missing interview answer
const NoAnswerPlaceholder = "No answer provided"

// DefaultUserPrompts are the built-in prompt templates. Templates that take
// content carry a single %s placeholder.
var DefaultUserPrompts = map[string]string{
	config.OpResumeAnalysis: "Analyze this resume and provide: 1. Key skills and experiences 2. Potential interview questions based on the resume 3. Suggested areas to focus on during the interview",

	config.OpResumeReview: "Analyze this resume and provide: 1. ATS Score (out of 100) 2. Detailed resume feedback (strengths and areas for improvement) 3. Career path recommendations based on skills and experience",

	config.OpQuestions: `Generate exactly 5 interview questions based on this resume analysis. Return ONLY a JSON object in this exact format without any additional text:
{
  "questions": [
    {
      "id": 1,
      "type": "technical",
      "question": "...",
      "category": "..."
    },
    {
      "id": 2,
      "type": "behavioral",
      "question": "...",
      "category": "..."
    }
  ]
}

Resume Analysis:
%s`,

	config.OpScoring: `Analyze these interview responses and provide:
1. Overall Score (out of 100)
2. Detailed feedback for each answer
3. Communication style analysis
4. Specific improvement tips
5. Areas of strength

Questions and Answers:
%s`,

	config.OpQuestionnaire: `Based on these career questionnaire answers, analyze the personality type and suggest suitable careers. Provide the response in this format:
1. Personality Analysis
2. Top 5 Career Recommendations
3. Skills to Develop

Answers:
%s`,
}

// DefaultSystemPrompts are only sent when useSystemPrompts is enabled
var DefaultSystemPrompts = map[string]string{
	config.OpResumeAnalysis: "You are an experienced career coach and technical recruiter. Base every statement on what the resume actually shows.",
	config.OpResumeReview:   "You are an applicant tracking system specialist and career advisor. Be specific and honest about weaknesses.",
	config.OpQuestions:      "You are an interviewer preparing a mock interview. Respond with JSON only.",
	config.OpScoring:        "You are an interview coach giving candid, constructive feedback.",
	config.OpQuestionnaire:  "You are a career counsellor for people starting their careers.",
}

// PromptResolver picks the template for each operation. A prompt file wins
// over an inline config prompt, which wins over the built-in default.
type PromptResolver struct {
	store      *config.PromptStore
	configured map[string]config.PromptConfig
}

// NewPromptResolver snapshots the inline prompts of cfg. File prompts are
// read from the store on every call so reloads take effect immediately.
func NewPromptResolver(cfg *config.Config) *PromptResolver {
	r := &PromptResolver{configured: make(map[string]config.PromptConfig)}
	if cfg == nil {
		return r
	}
	r.store = cfg.Prompts
	for _, op := range config.Operations {
		r.configured[op] = cfg.GetOperationConfig(op).Prompts
	}
	return r
}

// User returns the user prompt template for op
func (r *PromptResolver) User(op string) string {
	if r == nil {
		return DefaultUserPrompts[op]
	}
	return resolvePrompt(r.store.Get(op).User, r.configured[op].User, DefaultUserPrompts[op])
}

// System returns the system instruction for op
func (r *PromptResolver) System(op string) string {
	if r == nil {
		return DefaultSystemPrompts[op]
	}
	return resolvePrompt(r.store.Get(op).System, r.configured[op].System, DefaultSystemPrompts[op])
}

func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

// fill substitutes content for the first %s in template, appending it when
// the template has no placeholder. Other verbs are left as written.
func fill(template, content string) string {
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", content, 1)
	}
	return template + "\n\n" + content
}

func formatPairs(pairs []types.QuestionAnswer) string {
	blocks := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		blocks = append(blocks, fmt.Sprintf("Question: %s\nAnswer: %s", pair.Question, pair.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

// ResumeAnalysisPrompt returns the prompt sent with the rendered resume image
func (r *PromptResolver) ResumeAnalysisPrompt() string {
	return r.User(config.OpResumeAnalysis)
}

// ResumeReviewPrompt returns the ATS review prompt sent with the rendered resume image
func (r *PromptResolver) ResumeReviewPrompt() string {
	return r.User(config.OpResumeReview)
}

// QuestionsPrompt embeds the resume analysis report in the question generation prompt
func (r *PromptResolver) QuestionsPrompt(analysis string) string {
	return fill(r.User(config.OpQuestions), analysis)
}

// ScoringPairs pairs every question with its answer. A missing or blank
// answer is replaced by NoAnswerPlaceholder.
func ScoringPairs(questions []types.InterviewQuestion, answers map[int]string) []types.QuestionAnswer {
	pairs := make([]types.QuestionAnswer, 0, len(questions))
	for i, q := range questions {
		answer := strings.TrimSpace(answers[i])
		if answer == "" {
			answer = NoAnswerPlaceholder
		}
		pairs = append(pairs, types.QuestionAnswer{Question: q.Question, Answer: answer})
	}
	return pairs
}

// ScoringPrompt embeds every question/answer pair in order
func (r *PromptResolver) ScoringPrompt(questions []types.InterviewQuestion, answers map[int]string) string {
	return fill(r.User(config.OpScoring), formatPairs(ScoringPairs(questions, answers)))
}

// QuestionnairePrompt embeds each question with the text of the chosen option, in order
func (r *PromptResolver) QuestionnairePrompt(responses []types.QuestionAnswer) string {
	return fill(r.User(config.OpQuestionnaire), formatPairs(responses))
}
