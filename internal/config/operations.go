package config

// Operation names. Each has its own AI configuration block under ai.<name>.
const (
	OpResumeAnalysis = "resumeAnalysis"
	OpResumeReview   = "resumeReview"
	OpQuestions      = "questions"
	OpScoring        = "scoring"
	OpQuestionnaire  = "questionnaire"
)

// Operations lists every AI operation in a stable order
var Operations = []string{
	OpResumeAnalysis,
	OpResumeReview,
	OpQuestions,
	OpScoring,
	OpQuestionnaire,
}

func (c *Config) operationBlock(op string) OperationAIConfig {
	switch op {
	case OpResumeAnalysis:
		return c.AI.ResumeAnalysis
	case OpResumeReview:
		return c.AI.ResumeReview
	case OpQuestions:
		return c.AI.Questions
	case OpScoring:
		return c.AI.Scoring
	case OpQuestionnaire:
		return c.AI.Questionnaire
	default:
		return OperationAIConfig{}
	}
}

// GetOperationConfig returns the configuration for op with unset fields
// filled from the global ai block. The returned value is a copy.
func (c *Config) GetOperationConfig(op string) OperationAIConfig {
	opCfg := c.operationBlock(op)

	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		useSystem := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystem
	}

	return opCfg
}

// SetAPIKey replaces the global Gemini key and clears per-operation keys
// that were inherited from the previous global value.
func (c *Config) SetAPIKey(key string) {
	previous := c.AI.APIKey
	c.AI.APIKey = key

	for _, block := range []*OperationAIConfig{
		&c.AI.ResumeAnalysis,
		&c.AI.ResumeReview,
		&c.AI.Questions,
		&c.AI.Scoring,
		&c.AI.Questionnaire,
	} {
		if block.APIKey == previous {
			block.APIKey = ""
		}
	}
}
