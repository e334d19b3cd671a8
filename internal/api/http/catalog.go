package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-learn/internal/learning"
)

// GET /courses
func ListCoursesHandler(store learning.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := store.ListCourses(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if cs == nil {
			cs = []learning.Course{}
		}
		writeJSON(w, http.StatusOK, cs)
	}
}

type putCourseReq struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
}

// PUT /courses/{courseID}
func PutCourseHandler(store learning.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		var req putCourseReq
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if err := store.PutCourse(ctx, learning.Course{ID: id, Title: req.Title, Description: req.Description}); err != nil {
			storeError(w, err)
			return
		}
		c, err := store.GetCourse(ctx, id)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

type putActivityReq struct {
	CourseID    string          `json:"course_id" validate:"required"`
	Type        string          `json:"type" validate:"required,oneof=reading listening quiz fill_blank drag_drop matching flip_cards video"`
	Status      string          `json:"status" validate:"omitempty,oneof=draft published"`
	OrderIndex  int             `json:"order_index" validate:"min=0"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Content     json.RawMessage `json:"content"`
}

// PUT /activities/{activityID}
// The owning course must exist; new activities default to draft.
func PutActivityHandler(store learning.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "activityID")
		var req putActivityReq
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Content) > 0 && !json.Valid(req.Content) {
			http.Error(w, "content must be JSON", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if _, err := store.GetCourse(ctx, req.CourseID); err != nil {
			storeError(w, err)
			return
		}
		status := learning.ActivityStatus(req.Status)
		if status == "" {
			status = learning.StatusDraft
		}
		a := learning.Activity{
			ID:          id,
			CourseID:    req.CourseID,
			Type:        learning.ActivityType(req.Type),
			Status:      status,
			OrderIndex:  req.OrderIndex,
			Title:       req.Title,
			Description: req.Description,
			Content:     req.Content,
		}
		if err := store.PutActivity(ctx, a); err != nil {
			storeError(w, err)
			return
		}
		saved, err := store.GetActivity(ctx, id)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}
