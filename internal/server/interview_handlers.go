package server

import (
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"careercoach/internal/errors"
	"careercoach/internal/session"
	"careercoach/internal/workflow"
)

const (
	resumeFormField     = "resume"
	defaultResumeName   = "resume.pdf"
	multipartMemory     = 8 << 20
	microphoneGranted   = "granted"
	missingResumeReason = "Please select a resume file to upload."
)

type sessionResponse struct {
	ID    string `json:"id"`
	State any    `json:"state"`
}

type recordingStartRequest struct {
	Microphone string `json:"microphone"`
}

type transcriptRequest struct {
	Results []string `json:"results"`
}

func (s *Server) createInterviewHandler(w http.ResponseWriter, r *http.Request) {
	id, is := s.createInterview(r.Context())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, State: is.interview.Snapshot()})
}

// getInterviewHandler returns the live snapshot, or the persisted one when
// the session has already expired
func (s *Server) getInterviewHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if is, ok := s.interviews.Get(id); ok {
		writeJSON(w, http.StatusOK, is.interview.Snapshot())
		return
	}

	var snap workflow.InterviewSnapshot
	if err := s.loadSnapshot(r.Context(), session.KindInterview, id, &snap); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) deleteInterviewHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	is, ok := s.interviews.Delete(id)
	if ok {
		is.interview.Reset()
		s.metrics.RecordSessionEnded(r.Context(), session.KindInterview)
	} else {
		var snap workflow.InterviewSnapshot
		if err := s.loadSnapshot(r.Context(), session.KindInterview, id, &snap); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	s.discardSnapshot(r.Context(), session.KindInterview, id)
	s.Logger.Info("Interview session discarded", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// interviewAction resolves the session named in the path and runs fn against it
func (s *Server) interviewAction(fn func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		is, ok := s.interviews.Get(id)
		if !ok {
			s.writeAppError(w, r, sessionNotFound(id))
			return
		}

		snap, err := fn(r, is)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) uploadResumeHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		name, data, err := readResume(r)
		if err != nil {
			return workflow.InterviewSnapshot{}, err
		}
		return is.interview.Upload(name, data)
	})(w, r)
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		return is.interview.Analyze(r.Context())
	})(w, r)
}

func (s *Server) startInterviewHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		return is.interview.StartInterview(r.Context())
	})(w, r)
}

// startRecordingHandler applies the client's microphone permission before
// starting capture. An empty body means the microphone is available.
func (s *Server) startRecordingHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		var req recordingStartRequest
		if r.ContentLength != 0 {
			if err := parseJSONRequest(r, &req); err != nil {
				return workflow.InterviewSnapshot{}, err
			}
		}
		if req.Microphone == "" || req.Microphone == microphoneGranted {
			is.recognizer.SetUnavailable("")
		} else {
			is.recognizer.SetUnavailable(req.Microphone)
		}
		return is.interview.StartRecording(r.Context())
	})(w, r)
}

func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		var req transcriptRequest
		if err := parseJSONRequest(r, &req); err != nil {
			return workflow.InterviewSnapshot{}, err
		}
		if !is.recognizer.Push(req.Results) {
			return workflow.InterviewSnapshot{}, errors.NewWorkflowError(errors.ErrCodeInvalidTransition,
				"Recording has not started.")
		}
		return is.interview.Snapshot(), nil
	})(w, r)
}

func (s *Server) stopRecordingHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		return is.interview.StopRecording()
	})(w, r)
}

func (s *Server) nextHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		return is.interview.Next(r.Context())
	})(w, r)
}

func (s *Server) cancelInterviewHandler(w http.ResponseWriter, r *http.Request) {
	s.interviewAction(func(r *http.Request, is *interviewSession) (workflow.InterviewSnapshot, error) {
		if is.interview.Cancel() {
			s.Logger.Info("Interview request canceled", "session_id", is.interview.ID())
		}
		return is.interview.Snapshot(), nil
	})(w, r)
}

// readResume accepts a multipart upload in the "resume" field or a raw
// application/pdf body
func readResume(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxBytesErr *http.MaxBytesError
			if stderrors.As(err, &maxBytesErr) {
				return "", nil, err
			}
			return "", nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "The upload could not be read.", err)
		}
		file, header, err := r.FormFile(resumeFormField)
		if err != nil {
			return "", nil, errors.NewFileMissingError(missingResumeReason)
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(header.Filename), data, nil

	case "application/pdf":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", nil, err
		}
		name := r.URL.Query().Get("filename")
		if name == "" {
			name = defaultResumeName
		}
		return filepath.Base(name), data, nil

	default:
		return "", nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Upload the resume as multipart field 'resume' or as an application/pdf body.", nil).
			WithContext("content_type", mediaType)
	}
}
