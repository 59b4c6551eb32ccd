package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/speech"
	"careercoach/internal/types"
)

var testLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)

type analyzerMap map[string]ai.Analyzer

func (m analyzerMap) Analyzer(op string) ai.Analyzer {
	return m[op]
}

// scriptedAnalyzer returns queued responses in order and records every prompt
type scriptedAnalyzer struct {
	mu        sync.Mutex
	responses []scripted
	prompts   []string
	images    []*ai.Image
}

type scripted struct {
	text string
	err  error
}

func respond(items ...scripted) *scriptedAnalyzer {
	return &scriptedAnalyzer{responses: items}
}

func reply(text string) scripted { return scripted{text: text} }

func failWith(err error) scripted { return scripted{err: err} }

func (s *scriptedAnalyzer) Analyze(ctx context.Context, prompt string, image *ai.Image) (string, *ai.TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.images = append(s.images, image)
	if len(s.responses) == 0 {
		return "", nil, fmt.Errorf("unexpected call")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	if next.err != nil {
		return "", nil, next.err
	}
	return next.text, &ai.TokenUsage{}, nil
}

func (s *scriptedAnalyzer) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func (s *scriptedAnalyzer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// blockingAnalyzer holds every call until released or canceled
type blockingAnalyzer struct {
	started chan struct{}
	release chan string
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{started: make(chan struct{}, 4), release: make(chan string, 4)}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, prompt string, image *ai.Image) (string, *ai.TokenUsage, error) {
	b.started <- struct{}{}
	select {
	case text := <-b.release:
		return text, nil, nil
	case <-ctx.Done():
		return "", nil, errors.NewServiceError("Error analyzing interview. Please try again.", ctx.Err())
	}
}

type fakeRenderer struct {
	mu    sync.Mutex
	image string
	err   error
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.image, nil
}

func questionsJSON(t *testing.T, fenced bool) string {
	t.Helper()
	set := types.QuestionSet{}
	for i := range ai.QuestionCount {
		kind := types.QuestionTypeTechnical
		if i%2 == 1 {
			kind = types.QuestionTypeBehavioral
		}
		set.Questions = append(set.Questions, types.InterviewQuestion{
			ID:       i + 1,
			Type:     kind,
			Question: fmt.Sprintf("Q%d", i+1),
			Category: "general",
		})
	}
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatal(err)
	}
	if fenced {
		return "```json\n" + string(data) + "\n```"
	}
	return string(data)
}

type interviewFixture struct {
	interview  *Interview
	recognizer *speech.PushRecognizer
	renderer   *fakeRenderer
	analyzers  analyzerMap
	mu         sync.Mutex
	changes    []InterviewSnapshot
}

func newInterviewFixture(t *testing.T, analyzers analyzerMap) *interviewFixture {
	t.Helper()
	f := &interviewFixture{
		recognizer: speech.NewPushRecognizer(),
		renderer:   &fakeRenderer{image: "aW1hZ2U="},
		analyzers:  analyzers,
	}
	f.interview = NewInterview("session-1", InterviewDeps{
		Renderer:   f.renderer,
		Analyzers:  analyzers,
		Prompts:    ai.NewPromptResolver(nil),
		Recognizer: f.recognizer,
		Logger:     testLogger,
		OnChange: func(s InterviewSnapshot) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.changes = append(f.changes, s)
		},
	})
	return f
}

func (f *interviewFixture) changeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.changes)
}

// defaultAnalyzers answers one analysis, one question set and one scoring call
func defaultAnalyzers(t *testing.T) analyzerMap {
	return analyzerMap{
		config.OpResumeAnalysis: respond(reply("Strong Go background")),
		config.OpQuestions:      respond(reply(questionsJSON(t, true))),
		config.OpScoring:        respond(reply("Overall Score: 80/100")),
	}
}
