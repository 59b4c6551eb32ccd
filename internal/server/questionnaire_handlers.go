package server

import (
	"net/http"

	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/session"
	"careercoach/internal/workflow"
)

type answerRequest struct {
	Option *int `json:"option"`
}

func (s *Server) createQuestionnaireHandler(w http.ResponseWriter, r *http.Request) {
	id, q := s.createQuestionnaire(r.Context())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, State: q.Snapshot()})
}

func (s *Server) getQuestionnaireHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if q, ok := s.questionnaires.Get(id); ok {
		writeJSON(w, http.StatusOK, q.Snapshot())
		return
	}

	var snap workflow.QuestionnaireSnapshot
	if err := s.loadSnapshot(r.Context(), session.KindQuestionnaire, id, &snap); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// answerHandler selects an option for the current question. The last answer
// triggers the career analysis.
func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, ok := s.questionnaires.Get(id)
	if !ok {
		s.writeAppError(w, r, sessionNotFound(id))
		return
	}

	var req answerRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if req.Option == nil {
		s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Please choose one of the listed options.", nil))
		return
	}

	snap, err := q.Select(r.Context(), *req.Option)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// reviewHandler runs a one-shot ATS review of an uploaded resume
func (s *Server) reviewHandler(w http.ResponseWriter, r *http.Request) {
	name, data, err := readResume(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	result, err := workflow.Review(r.Context(), workflow.ReviewDeps{
		Renderer: s.components.Renderer,
		Analyzer: s.analyzers().Analyzer(config.OpResumeReview),
		Prompts:  s.components.AI.Prompts(),
		Logger:   s.Logger,
	}, name, data)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
