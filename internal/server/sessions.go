package server

import (
	"context"
	stderrors "errors"
	"time"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/observability"
	"careercoach/internal/session"
	"careercoach/internal/speech"
	"careercoach/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
)

const snapshotSaveTimeout = 3 * time.Second

// interviewSession pairs an interview with the recognizer its client feeds
type interviewSession struct {
	interview  *workflow.Interview
	recognizer *speech.PushRecognizer
}

// SetMetrics replaces the metrics used by new sessions and middleware.
// It must be called before the server starts handling requests.
func (s *Server) SetMetrics(metrics *observability.Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// meteredAnalyzers records a span and metrics around every model call
type meteredAnalyzers struct {
	source  workflow.AnalyzerSource
	metrics *observability.Metrics
}

var businessMetricByOperation = map[string]string{
	config.OpResumeAnalysis: observability.MetricResumeAnalyzed,
	config.OpResumeReview:   observability.MetricResumeReviewed,
	config.OpQuestions:      observability.MetricQuestionsGenerated,
	config.OpScoring:        observability.MetricInterviewScored,
	config.OpQuestionnaire:  observability.MetricQuestionnaireCompleted,
}

func (m meteredAnalyzers) Analyzer(op string) ai.Analyzer {
	inner := m.source.Analyzer(op)
	return ai.AnalyzerFunc(func(ctx context.Context, prompt string, image *ai.Image) (string, *ai.TokenUsage, error) {
		var text string
		var usage *ai.TokenUsage
		err := m.metrics.TrackAIOperationWithTokens(ctx, op, func(ctx context.Context) *observability.AIOperationResult {
			var callErr error
			text, usage, callErr = inner.Analyze(ctx, prompt, image)
			result := &observability.AIOperationResult{Error: callErr}
			if usage != nil {
				result.TokenUsage = &observability.TokenUsage{
					InputTokens:  usage.InputTokens,
					OutputTokens: usage.OutputTokens,
					TotalTokens:  usage.TotalTokens,
				}
			}
			return result
		})
		if name, ok := businessMetricByOperation[op]; ok {
			m.metrics.RecordBusinessMetric(ctx, name, err == nil, attribute.String("operation", op))
		}
		return text, usage, err
	})
}

func (s *Server) analyzers() workflow.AnalyzerSource {
	return meteredAnalyzers{source: s.components.AI, metrics: s.metrics}
}

func (s *Server) createInterview(ctx context.Context) (string, *interviewSession) {
	id, is := s.interviews.Create(func(id string) *interviewSession {
		recognizer := speech.NewPushRecognizer()
		return &interviewSession{
			recognizer: recognizer,
			interview: workflow.NewInterview(id, workflow.InterviewDeps{
				Renderer:   s.components.Renderer,
				Analyzers:  s.analyzers(),
				Prompts:    s.components.AI.Prompts(),
				Recognizer: recognizer,
				Logger:     s.Logger.With("session_id", id),
				OnChange: func(snap workflow.InterviewSnapshot) {
					s.persist(session.KindInterview, snap.ID, snap)
				},
			}),
		}
	})
	s.metrics.RecordSessionCreated(ctx, session.KindInterview)
	s.Logger.Info("Interview session created", "session_id", id)
	return id, is
}

func (s *Server) createQuestionnaire(ctx context.Context) (string, *workflow.Questionnaire) {
	questions := s.components.Catalog.Questions()
	id, q := s.questionnaires.Create(func(id string) *workflow.Questionnaire {
		return workflow.NewQuestionnaire(id, questions, workflow.QuestionnaireDeps{
			Analyzers: s.analyzers(),
			Prompts:   s.components.AI.Prompts(),
			Logger:    s.Logger.With("session_id", id),
			OnChange: func(snap workflow.QuestionnaireSnapshot) {
				s.persist(session.KindQuestionnaire, snap.ID, snap)
			},
		})
	})
	s.metrics.RecordSessionCreated(ctx, session.KindQuestionnaire)
	s.Logger.Info("Questionnaire session created", "session_id", id)
	return id, q
}

// persist saves a snapshot so it stays readable after the live session is gone
func (s *Server) persist(kind, id string, snapshot any) {
	if s.components.Snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
	defer cancel()
	if err := s.components.Snapshots.Save(ctx, kind, id, snapshot); err != nil {
		s.Logger.LogError(err, "Failed to persist session snapshot", "kind", kind, "session_id", id)
	}
}

func sessionNotFound(id string) error {
	return errors.NewWorkflowError(errors.ErrCodeSessionNotFound, "Session not found. Please start again.").
		WithContext("session_id", id)
}

// loadSnapshot reads a persisted snapshot of a session that is no longer live
func (s *Server) loadSnapshot(ctx context.Context, kind, id string, into any) error {
	if s.components.Snapshots == nil {
		return sessionNotFound(id)
	}
	err := s.components.Snapshots.Load(ctx, kind, id, into)
	if stderrors.Is(err, session.ErrSnapshotNotFound) {
		return sessionNotFound(id)
	}
	if err != nil {
		return errors.NewInternalError("SNAPSHOT_LOAD_FAILED", "Could not load the session. Please try again.", err)
	}
	return nil
}

func (s *Server) discardSnapshot(ctx context.Context, kind, id string) {
	if s.components.Snapshots == nil {
		return
	}
	if err := s.components.Snapshots.Delete(ctx, kind, id); err != nil {
		s.Logger.LogError(err, "Failed to delete session snapshot", "kind", kind, "session_id", id)
	}
}
