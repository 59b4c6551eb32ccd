package workflow

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/render"
	"careercoach/internal/speech"
	"careercoach/internal/types"
)

// UploadedFile is the resume selected by the user
type UploadedFile struct {
	Name string
	Data []byte
}

// InterviewSnapshot is a copy of an interview session safe to hand out
type InterviewSnapshot struct {
	ID             string                    `json:"id"`
	Stage          Stage                     `json:"stage"`
	QuestionIndex  int                       `json:"questionIndex"`
	Recording      bool                      `json:"recording"`
	FileName       string                    `json:"fileName,omitempty"`
	ResumeAnalysis string                    `json:"resumeAnalysis,omitempty"`
	Questions      []types.InterviewQuestion `json:"questions,omitempty"`
	Answers        map[int]string            `json:"answers,omitempty"`
	LiveTranscript string                    `json:"liveTranscript,omitempty"`
	CanAdvance     bool                      `json:"canAdvance"`
	Pending        Event                     `json:"pending,omitempty"`
	Report         *types.InterviewReport    `json:"report,omitempty"`
	Error          string                    `json:"error,omitempty"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
	Revision       uint64                    `json:"revision"`
}

// InterviewDeps are the collaborators of an interview session
type InterviewDeps struct {
	Renderer   render.Renderer
	Analyzers  AnalyzerSource
	Prompts    *ai.PromptResolver
	Recognizer speech.Recognizer
	Logger     *errors.Logger

	// OnChange receives a snapshot after every state change. It is called
	// without the session lock held, one call at a time and in revision
	// order; a snapshot overtaken by a newer one is dropped.
	OnChange func(InterviewSnapshot)
}

// Interview is one mock interview session. All methods are safe for
// concurrent use; at most one model request runs at a time.
type Interview struct {
	mu      sync.Mutex
	id      string
	deps    InterviewDeps
	capture *speech.Capture

	state     State
	file      *UploadedFile
	analysis  string
	questions []types.InterviewQuestion
	answers   map[int]string
	live      string
	feedback  string
	lastError string
	updatedAt time.Time
	revision  uint64

	pending *call
	prior   State

	notifyMu sync.Mutex
	notified uint64
}

func NewInterview(id string, deps InterviewDeps) *Interview {
	return &Interview{
		id:        id,
		deps:      deps,
		capture:   speech.NewCapture(deps.Recognizer),
		state:     idle(),
		answers:   make(map[int]string),
		updatedAt: time.Now(),
	}
}

func (iv *Interview) ID() string {
	return iv.id
}

// Upload stores the resume. Uploading again before the interview starts
// replaces the file and discards any earlier analysis.
func (iv *Interview) Upload(name string, data []byte) (InterviewSnapshot, error) {
	return iv.apply(func() error {
		if err := iv.guard(EventUpload); err != nil {
			return err
		}
		if len(data) == 0 {
			return errors.NewFileMissingError("Please select a resume file to upload.")
		}
		iv.file = &UploadedFile{Name: name, Data: bytes.Clone(data)}
		iv.analysis = ""
		iv.state = State{Stage: StageResumeUploaded}
		return nil
	})
}

// Analyze renders the first page of the resume and asks the model to analyze it
func (iv *Interview) Analyze(ctx context.Context) (InterviewSnapshot, error) {
	var data []byte
	c, snap, err := iv.begin(ctx, EventAnalyze, func() (bool, error) {
		if err := iv.guard(EventAnalyze); err != nil {
			return false, err
		}
		if iv.file == nil {
			return false, errors.NewFileMissingError("Please select a resume file to upload.")
		}
		data = iv.file.Data
		return true, nil
	})
	if c == nil {
		return snap, err
	}

	text, err := iv.analyzeResume(c.ctx, data)
	return iv.finish(c, err, ai.FailureMessage(config.OpResumeAnalysis), func() error {
		iv.analysis = text
		iv.state = State{Stage: StageResumeAnalyzed}
		return nil
	})
}

func (iv *Interview) analyzeResume(ctx context.Context, data []byte) (string, error) {
	image, err := iv.deps.Renderer.Render(ctx, data)
	if err != nil {
		return "", err
	}
	text, _, err := iv.deps.Analyzers.Analyzer(config.OpResumeAnalysis).
		Analyze(ctx, iv.deps.Prompts.ResumeAnalysisPrompt(), ai.PNGImage(image))
	return text, err
}

// StartInterview generates the questions from the resume analysis and
// moves to the first question.
func (iv *Interview) StartInterview(ctx context.Context) (InterviewSnapshot, error) {
	var prompt string
	c, snap, err := iv.begin(ctx, EventStartInterview, func() (bool, error) {
		if err := iv.guard(EventStartInterview); err != nil {
			return false, err
		}
		prompt = iv.deps.Prompts.QuestionsPrompt(iv.analysis)
		iv.state = State{Stage: StageQuestionsGenerating}
		return true, nil
	})
	if c == nil {
		return snap, err
	}

	text, _, err := iv.deps.Analyzers.Analyzer(config.OpQuestions).Analyze(c.ctx, prompt, nil)
	return iv.finish(c, err, ai.FailureMessage(config.OpQuestions), func() error {
		questions, err := ai.ParseQuestions(text)
		if err != nil {
			return err
		}
		iv.questions = questions
		iv.answers = make(map[int]string)
		iv.state = inProgress(0)
		return nil
	})
}

// StartRecording begins capturing the answer to the current question.
// It is a no-op while already recording.
func (iv *Interview) StartRecording(ctx context.Context) (InterviewSnapshot, error) {
	return iv.apply(func() error {
		if iv.pending == nil && iv.state.Stage == StageInProgress && iv.state.Recording {
			return nil
		}
		if err := iv.guard(EventStartRecording); err != nil {
			return err
		}
		if err := iv.capture.Start(ctx, iv.state.Index, iv.onTranscript); err != nil {
			return err
		}
		iv.state.Recording = true
		iv.live = ""
		return nil
	})
}

func (iv *Interview) onTranscript(index int, transcript string) {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.state.Stage != StageInProgress || !iv.state.Recording || iv.state.Index != index {
		return
	}
	iv.live = transcript
	iv.touchLocked()
}

// StopRecording ends capture and commits the transcript as the answer to the
// current question, replacing any earlier answer. An empty transcript still
// counts as an answer. It is a no-op while not recording.
func (iv *Interview) StopRecording() (InterviewSnapshot, error) {
	return iv.apply(func() error {
		if iv.pending == nil && iv.state.Stage == StageInProgress && !iv.state.Recording {
			return nil
		}
		if err := iv.guard(EventStopRecording); err != nil {
			return err
		}

		index, transcript, ok, err := iv.capture.Stop()
		if err != nil {
			iv.deps.Logger.Warn("Speech recognizer did not stop cleanly", "session_id", iv.id, "error", err.Error())
		}
		if !ok {
			index, transcript = iv.state.Index, iv.live
		}
		iv.answers[index] = transcript
		iv.state.Recording = false
		iv.live = ""
		return nil
	})
}

// Next moves to the following question, or scores the interview after the last one
func (iv *Interview) Next(ctx context.Context) (InterviewSnapshot, error) {
	var prompt string
	c, snap, err := iv.begin(ctx, EventNext, func() (bool, error) {
		if err := iv.guardNext(); err != nil {
			return false, err
		}
		if iv.state.Index+1 < len(iv.questions) {
			iv.state = inProgress(iv.state.Index + 1)
			return false, nil
		}
		prompt = iv.deps.Prompts.ScoringPrompt(iv.questions, iv.answers)
		iv.state = State{Stage: StageScoring}
		return true, nil
	})
	if c == nil {
		return snap, err
	}

	text, _, err := iv.deps.Analyzers.Analyzer(config.OpScoring).Analyze(c.ctx, prompt, nil)
	return iv.finish(c, err, ai.FailureMessage(config.OpScoring), func() error {
		iv.feedback = text
		iv.state = State{Stage: StageComplete}
		return nil
	})
}

func (iv *Interview) guardNext() error {
	if iv.pending != nil {
		return requestInFlight(iv.pending.event)
	}
	if iv.state.Stage != StageInProgress {
		return invalidTransition(iv.state, EventNext)
	}
	if iv.state.Recording {
		return errors.NewWorkflowError(errors.ErrCodeRecordingActive,
			"Stop recording before moving to the next question.")
	}
	if _, ok := iv.answers[iv.state.Index]; !ok {
		return errors.NewWorkflowError(errors.ErrCodeAnswerRequired,
			"Record an answer before moving to the next question.").
			WithContext("question_index", iv.state.Index)
	}
	return nil
}

// Cancel aborts the outstanding model request, if any. The session returns
// to the state it had before the request.
func (iv *Interview) Cancel() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.pending == nil {
		return false
	}
	iv.pending.cancel()
	return true
}

// Reset cancels outstanding work, stops capture and returns to Idle
func (iv *Interview) Reset() InterviewSnapshot {
	iv.mu.Lock()
	if iv.pending != nil {
		iv.pending.cancel()
		iv.pending = nil
	}
	if _, _, _, err := iv.capture.Stop(); err != nil {
		iv.deps.Logger.Warn("Speech recognizer did not stop cleanly", "session_id", iv.id, "error", err.Error())
	}
	iv.state = idle()
	iv.file = nil
	iv.analysis = ""
	iv.questions = nil
	iv.answers = make(map[int]string)
	iv.live = ""
	iv.feedback = ""
	iv.lastError = ""
	iv.touchLocked()
	snap := iv.snapshotLocked()
	iv.mu.Unlock()

	iv.notify(snap)
	return snap
}

// Snapshot returns the current state of the session
func (iv *Interview) Snapshot() InterviewSnapshot {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.snapshotLocked()
}

func (iv *Interview) guard(e Event) error {
	if iv.pending != nil {
		return requestInFlight(iv.pending.event)
	}
	if !iv.state.allow(e) {
		return invalidTransition(iv.state, e)
	}
	return nil
}

// apply runs a synchronous transition
func (iv *Interview) apply(fn func() error) (InterviewSnapshot, error) {
	iv.mu.Lock()
	err := fn()
	iv.recordOutcome(err)
	snap := iv.snapshotLocked()
	iv.mu.Unlock()

	iv.notify(snap)
	return snap, err
}

// begin runs prepare under the lock. When prepare asks for a model request
// the returned call is registered as pending; otherwise the call is nil and
// the transition is already complete.
func (iv *Interview) begin(ctx context.Context, event Event, prepare func() (bool, error)) (*call, InterviewSnapshot, error) {
	iv.mu.Lock()
	prior := iv.state
	needsCall, err := prepare()

	var c *call
	if err == nil && needsCall {
		c = newCall(ctx, event)
		iv.pending = c
		iv.prior = prior
	}
	iv.recordOutcome(err)
	snap := iv.snapshotLocked()
	iv.mu.Unlock()

	iv.notify(snap)
	return c, snap, err
}

// finish settles a model request. On failure the pre-request state is restored.
func (iv *Interview) finish(c *call, callErr error, fallback string, commit func() error) (InterviewSnapshot, error) {
	iv.mu.Lock()
	if iv.pending != c {
		// reset while the request was running
		snap := iv.snapshotLocked()
		iv.mu.Unlock()
		c.cancel()
		return snap, requestCanceled()
	}
	iv.pending = nil

	err := callErr
	if err == nil {
		err = commit()
	}
	if err != nil {
		iv.state = iv.prior
		iv.lastError, err = resolveFailure(c, err, fallback)
		if iv.lastError != "" {
			iv.deps.Logger.LogError(err, "Interview step failed", "session_id", iv.id, "event", string(c.event))
		}
	} else {
		iv.lastError = ""
	}
	c.cancel()
	iv.touchLocked()
	snap := iv.snapshotLocked()
	iv.mu.Unlock()

	iv.notify(snap)
	return snap, err
}

// recordOutcome keeps the display message of failed collaborator calls.
// Rejected actions leave the previous message in place.
func (iv *Interview) recordOutcome(err error) {
	iv.touchLocked()
	if err == nil {
		iv.lastError = ""
		return
	}
	if appErr, ok := errors.AsAppError(err); ok && appErr.Type != errors.ErrorTypeWorkflow {
		iv.lastError = appErr.Message
	}
}

func (iv *Interview) touchLocked() {
	iv.updatedAt = time.Now()
	iv.revision++
}

func (iv *Interview) notify(snap InterviewSnapshot) {
	if iv.deps.OnChange == nil {
		return
	}
	iv.notifyMu.Lock()
	defer iv.notifyMu.Unlock()
	if snap.Revision <= iv.notified {
		return
	}
	iv.notified = snap.Revision
	iv.deps.OnChange(snap)
}

func (iv *Interview) snapshotLocked() InterviewSnapshot {
	snap := InterviewSnapshot{
		ID:             iv.id,
		Stage:          iv.state.Stage,
		QuestionIndex:  iv.state.Index,
		Recording:      iv.state.Recording,
		ResumeAnalysis: iv.analysis,
		Questions:      slices.Clone(iv.questions),
		Answers:        maps.Clone(iv.answers),
		LiveTranscript: iv.live,
		Error:          iv.lastError,
		UpdatedAt:      iv.updatedAt,
		Revision:       iv.revision,
	}
	if iv.file != nil {
		snap.FileName = iv.file.Name
	}
	if iv.pending != nil {
		snap.Pending = iv.pending.event
	}
	if iv.pending == nil && iv.state.Stage == StageInProgress && !iv.state.Recording {
		_, snap.CanAdvance = iv.answers[iv.state.Index]
	}
	if iv.state.Stage == StageComplete {
		snap.Report = &types.InterviewReport{
			FileName:       snap.FileName,
			ResumeAnalysis: iv.analysis,
			Questions:      ai.ScoringPairs(iv.questions, iv.answers),
			Feedback:       iv.feedback,
		}
	}
	return snap
}
