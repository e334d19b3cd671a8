package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
	"github.com/mind-engage/mindengage-learn/internal/grading"
	"github.com/mind-engage/mindengage-learn/internal/learning"
)

const codeInvalidInput learning.ErrorCode = "invalid_input"

type saveProgressReq struct {
	Score     *float64        `json:"score" validate:"omitempty,min=0,max=100"`
	Completed bool            `json:"completed"`
	Answers   json.RawMessage `json:"answers"`
	TimeSpent *int            `json:"time_spent" validate:"omitempty,min=0"`
}

// POST /activities/{activityID}/progress
// Without a score in the body the server scores the answers itself.
func SaveProgressHandler(rec *learning.Recorder, store learning.Store, grader *grading.Grader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := authmw.CurrentUser(ctx)
		activityID := chi.URLParam(r, "activityID")
		if userID == "" {
			writeSaveResult(w, rec.SaveActivityProgress(ctx, "", learning.SaveInput{ActivityID: activityID}))
			return
		}

		var req saveProgressReq
		if err := decodeValid(r, &req); err != nil {
			writeSaveResult(w, learning.SaveResult{Error: err.Error(), Code: codeInvalidInput})
			return
		}
		if string(req.Answers) == "null" {
			req.Answers = nil
		}

		in := learning.SaveInput{
			ActivityID: activityID,
			Completed:  req.Completed,
			Answers:    req.Answers,
			TimeSpent:  req.TimeSpent,
		}
		if req.Score != nil {
			in.Score = *req.Score
		} else {
			score, err := autoScore(ctx, store, grader, userID, activityID, req)
			if err != nil {
				writeSaveResult(w, scoreFailure(err))
				return
			}
			in.Score = float64(score)
		}

		writeSaveResult(w, rec.SaveActivityProgress(ctx, userID, in))
	}
}

// autoScore grades the submitted answers, falling back to the stored ones
// when the request carries none.
func autoScore(ctx context.Context, store learning.Store, grader *grading.Grader, userID, activityID string, req saveProgressReq) (int, error) {
	act, err := store.GetActivity(ctx, activityID)
	if err != nil {
		return 0, err
	}
	answers := req.Answers
	if len(answers) == 0 {
		prev, err := store.FindProgress(ctx, userID, activityID)
		if err != nil {
			return 0, err
		}
		if prev != nil {
			answers = prev.Answers
		}
	}
	score, err := grader.Score(string(act.Type), act.Content, answers, req.Completed)
	if err != nil {
		return 0, &gradeError{err}
	}
	return score, nil
}

type gradeError struct{ err error }

func (e *gradeError) Error() string { return e.err.Error() }
func (e *gradeError) Unwrap() error { return e.err }

func scoreFailure(err error) learning.SaveResult {
	var ge *gradeError
	if errors.As(err, &ge) {
		return learning.SaveResult{Error: err.Error(), Code: codeInvalidInput}
	}
	if errors.Is(err, learning.ErrNotFound) {
		return learning.SaveResult{Error: err.Error(), Code: learning.CodeNotFound}
	}
	return learning.SaveResult{Error: err.Error(), Code: learning.CodePersistenceError}
}

func writeSaveResult(w http.ResponseWriter, res learning.SaveResult) {
	status := http.StatusOK
	if !res.Success {
		switch res.Code {
		case learning.CodeUnauthenticated:
			status = http.StatusUnauthorized
		case learning.CodeNotFound:
			status = http.StatusNotFound
		case codeInvalidInput:
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, res)
}
