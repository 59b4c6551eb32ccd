package workflow

import (
	"context"
	"slices"
	"sync"
	"time"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/types"
)

// QuestionnaireStage is the position of a questionnaire session
type QuestionnaireStage string

const (
	QuestionnaireAnswering QuestionnaireStage = "answering"
	QuestionnaireAnalyzing QuestionnaireStage = "analyzing"
	QuestionnaireComplete  QuestionnaireStage = "complete"
)

// EventSelect picks an option for the current questionnaire question
const EventSelect Event = "select"

// QuestionnaireSnapshot is a copy of a questionnaire session safe to hand out
type QuestionnaireSnapshot struct {
	ID           string                       `json:"id"`
	Stage        QuestionnaireStage           `json:"stage"`
	CurrentIndex int                          `json:"currentIndex"`
	Total        int                          `json:"total"`
	Progress     float64                      `json:"progress"`
	Question     *types.QuestionnaireQuestion `json:"question,omitempty"`
	Answers      []int                        `json:"answers"`
	Pending      Event                        `json:"pending,omitempty"`
	Report       *types.QuestionnaireReport   `json:"report,omitempty"`
	Error        string                       `json:"error,omitempty"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
	Revision     uint64                       `json:"revision"`
}

// QuestionnaireDeps are the collaborators of a questionnaire session
type QuestionnaireDeps struct {
	Analyzers AnalyzerSource
	Prompts   *ai.PromptResolver
	Logger    *errors.Logger

	// OnChange follows the same ordering rules as InterviewDeps.OnChange
	OnChange func(QuestionnaireSnapshot)
}

// Questionnaire walks the fixed question list once, front to back.
// Answers cannot be changed after moving on.
type Questionnaire struct {
	mu        sync.Mutex
	id        string
	deps      QuestionnaireDeps
	questions []types.QuestionnaireQuestion

	stage     QuestionnaireStage
	current   int
	answers   []int
	analysis  string
	lastError string
	updatedAt time.Time
	revision  uint64
	pending   *call

	notifyMu sync.Mutex
	notified uint64
}

func NewQuestionnaire(id string, questions []types.QuestionnaireQuestion, deps QuestionnaireDeps) *Questionnaire {
	return &Questionnaire{
		id:        id,
		deps:      deps,
		questions: questions,
		stage:     QuestionnaireAnswering,
		answers:   make([]int, 0, len(questions)),
		updatedAt: time.Now(),
	}
}

func (q *Questionnaire) ID() string {
	return q.id
}

// Select records option for the current question and advances. Selecting on
// the last question requests the analysis; if that fails the session stays on
// the last question so the selection can be retried.
func (q *Questionnaire) Select(ctx context.Context, option int) (QuestionnaireSnapshot, error) {
	q.mu.Lock()
	if err := q.guardSelect(option); err != nil {
		snap := q.snapshotLocked()
		q.mu.Unlock()
		return snap, err
	}

	if q.current < len(q.questions)-1 {
		q.answers = append(q.answers, option)
		q.current++
		q.lastError = ""
		q.touchLocked()
		snap := q.snapshotLocked()
		q.mu.Unlock()
		q.notify(snap)
		return snap, nil
	}

	final := append(slices.Clone(q.answers), option)
	prompt := q.deps.Prompts.QuestionnairePrompt(q.responses(final))
	c := newCall(ctx, EventSelect)
	q.pending = c
	q.stage = QuestionnaireAnalyzing
	q.lastError = ""
	q.touchLocked()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)

	text, _, err := q.deps.Analyzers.Analyzer(config.OpQuestionnaire).Analyze(c.ctx, prompt, nil)

	q.mu.Lock()
	if q.pending != c {
		snap := q.snapshotLocked()
		q.mu.Unlock()
		c.cancel()
		return snap, requestCanceled()
	}
	q.pending = nil
	if err != nil {
		q.stage = QuestionnaireAnswering
		q.lastError, err = resolveFailure(c, err, ai.FailureMessage(config.OpQuestionnaire))
		if q.lastError != "" {
			q.deps.Logger.LogError(err, "Questionnaire analysis failed", "session_id", q.id)
		}
	} else {
		q.answers = final
		q.analysis = text
		q.stage = QuestionnaireComplete
	}
	c.cancel()
	q.touchLocked()
	snap = q.snapshotLocked()
	q.mu.Unlock()

	q.notify(snap)
	return snap, err
}

func (q *Questionnaire) guardSelect(option int) error {
	if q.pending != nil {
		return requestInFlight(q.pending.event)
	}
	if q.stage != QuestionnaireAnswering {
		return errors.NewWorkflowError(errors.ErrCodeInvalidTransition,
			"The questionnaire is already complete.").
			WithContext("stage", string(q.stage))
	}
	if option < 0 || option >= len(q.questions[q.current].Options) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Please choose one of the listed options.", nil).
			WithContext("option", option)
	}
	return nil
}

// responses pairs each question with the text of the chosen option, in order
func (q *Questionnaire) responses(answers []int) []types.QuestionAnswer {
	out := make([]types.QuestionAnswer, 0, len(answers))
	for i, option := range answers {
		out = append(out, types.QuestionAnswer{
			Question: q.questions[i].Question,
			Answer:   q.questions[i].Options[option],
		})
	}
	return out
}

// Cancel aborts the outstanding analysis request, if any
func (q *Questionnaire) Cancel() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return false
	}
	q.pending.cancel()
	return true
}

func (q *Questionnaire) Snapshot() QuestionnaireSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Questionnaire) touchLocked() {
	q.updatedAt = time.Now()
	q.revision++
}

func (q *Questionnaire) notify(snap QuestionnaireSnapshot) {
	if q.deps.OnChange == nil {
		return
	}
	q.notifyMu.Lock()
	defer q.notifyMu.Unlock()
	if snap.Revision <= q.notified {
		return
	}
	q.notified = snap.Revision
	q.deps.OnChange(snap)
}

func (q *Questionnaire) snapshotLocked() QuestionnaireSnapshot {
	total := len(q.questions)
	snap := QuestionnaireSnapshot{
		ID:           q.id,
		Stage:        q.stage,
		CurrentIndex: q.current,
		Total:        total,
		Answers:      slices.Clone(q.answers),
		Error:        q.lastError,
		UpdatedAt:    q.updatedAt,
		Revision:     q.revision,
	}
	if total > 0 {
		snap.Progress = float64(q.current+1) / float64(total) * 100
	}
	if q.pending != nil {
		snap.Pending = q.pending.event
	}
	if q.stage == QuestionnaireComplete {
		snap.Progress = 100
		snap.Report = &types.QuestionnaireReport{
			Responses: q.responses(q.answers),
			Analysis:  q.analysis,
		}
	} else if q.current < total {
		current := q.questions[q.current]
		current.Options = slices.Clone(current.Options)
		snap.Question = &current
	}
	return snap
}
