package workflow

import (
	"careercoach/internal/errors"
)

// Stage is the coarse position of an interview session
type Stage string

const (
	StageIdle                Stage = "idle"
	StageResumeUploaded      Stage = "resume_uploaded"
	StageResumeAnalyzed      Stage = "resume_analyzed"
	StageQuestionsGenerating Stage = "questions_generating"
	StageInProgress          Stage = "in_progress"
	StageScoring             Stage = "scoring"
	StageComplete            Stage = "complete"
)

// Event is a user action offered to the interview state machine
type Event string

const (
	EventUpload         Event = "upload"
	EventAnalyze        Event = "analyze"
	EventStartInterview Event = "start_interview"
	EventStartRecording Event = "start_recording"
	EventStopRecording  Event = "stop_recording"
	EventNext           Event = "next"
	EventReset          Event = "reset"
)

// State is the tagged interview state. Index and Recording are only
// meaningful in StageInProgress and are zero everywhere else.
type State struct {
	Stage     Stage `json:"stage"`
	Index     int   `json:"questionIndex"`
	Recording bool  `json:"recording"`
}

func idle() State { return State{Stage: StageIdle} }

func inProgress(index int) State {
	return State{Stage: StageInProgress, Index: index}
}

// allow reports whether e may be applied in s. Data preconditions such as
// an answer being present are checked by the caller.
func (s State) allow(e Event) bool {
	switch e {
	case EventReset:
		return true
	case EventUpload:
		return s.Stage == StageIdle || s.Stage == StageResumeUploaded || s.Stage == StageResumeAnalyzed
	case EventAnalyze:
		return s.Stage == StageResumeUploaded || s.Stage == StageResumeAnalyzed
	case EventStartInterview:
		return s.Stage == StageResumeAnalyzed
	case EventStartRecording, EventNext:
		return s.Stage == StageInProgress && !s.Recording
	case EventStopRecording:
		return s.Stage == StageInProgress && s.Recording
	default:
		return false
	}
}

// Terminal reports whether only a reset can leave s
func (s State) Terminal() bool {
	return s.Stage == StageComplete
}

func invalidTransition(s State, e Event) error {
	return errors.NewWorkflowError(errors.ErrCodeInvalidTransition,
		"That action is not available right now.").
		WithContext("stage", string(s.Stage)).
		WithContext("event", string(e))
}

func requestInFlight(pending Event) error {
	return errors.NewWorkflowError(errors.ErrCodeRequestInFlight,
		"Please wait for the current request to finish.").
		WithContext("pending", string(pending))
}

func requestCanceled() error {
	return errors.NewWorkflowError(errors.ErrCodeRequestCanceled, "The request was canceled.")
}
