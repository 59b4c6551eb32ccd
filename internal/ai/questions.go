package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"careercoach/internal/errors"
	"careercoach/internal/types"
)

// QuestionCount is the number of questions in every interview
const QuestionCount = 5

const questionsFailureMessage = "Error generating questions. Please try again."

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\r?\n(.*?)\r?\n?```$")

// StripCodeFence removes a surrounding markdown code fence such as ```json ... ```
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ParseQuestions decodes a question generation response. Anything other than
// a JSON object holding exactly QuestionCount non-empty questions is a
// MALFORMED_RESPONSE error.
func ParseQuestions(text string) ([]types.InterviewQuestion, error) {
	cleaned := StripCodeFence(text)
	if cleaned == "" {
		return nil, errors.NewMalformedResponseError(questionsFailureMessage, fmt.Errorf("empty response"))
	}

	var set types.QuestionSet
	if err := json.Unmarshal([]byte(cleaned), &set); err != nil {
		return nil, errors.NewMalformedResponseError(questionsFailureMessage, fmt.Errorf("decode questions: %w", err)).
			WithContext("response_length", len(text))
	}

	if len(set.Questions) != QuestionCount {
		return nil, errors.NewMalformedResponseError(questionsFailureMessage,
			fmt.Errorf("expected %d questions, got %d", QuestionCount, len(set.Questions)))
	}

	for i, q := range set.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, errors.NewMalformedResponseError(questionsFailureMessage,
				fmt.Errorf("question %d has no text", i+1))
		}
	}

	return set.Questions, nil
}
