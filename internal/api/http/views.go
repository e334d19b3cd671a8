package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	authmw "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
	"github.com/mind-engage/mindengage-learn/internal/learning"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/views"
)

type activityView struct {
	Activity learning.Activity  `json:"activity"`
	Progress *learning.Progress `json:"progress"`
}

type courseView struct {
	Course     learning.Course      `json:"course"`
	Activities []learning.Activity  `json:"activities"`
	Progress   []learning.Progress  `json:"progress"`
	Enrollment *learning.Enrollment `json:"enrollment"`
}

// serveView answers from the loader's cache, building on a miss.
func serveView(w http.ResponseWriter, r *http.Request, loader *views.Loader, path string, build func(ctx context.Context, userID string) (any, error)) {
	userID := authmw.CurrentUser(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b, err := loader.Load(r.Context(), views.Key(path, userID), func(ctx context.Context) (any, error) {
		return build(ctx, userID)
	})
	if err != nil {
		storeError(w, err)
		return
	}
	writeRawJSON(w, b)
}

// GET /activities/{activityID}
// Drafts are visible only to roles that manage activities.
func GetActivityHandler(store learning.Store, loader *views.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "activityID")
		canDraft := rbac.Allowed(r.Context(), rbac.PermActivityManage)
		serveView(w, r, loader, views.ActivityPath(id), func(ctx context.Context, userID string) (any, error) {
			a, err := store.GetActivity(ctx, id)
			if err != nil {
				return nil, err
			}
			if a.Status != learning.StatusPublished && !canDraft {
				return nil, learning.ErrNotFound
			}
			p, err := store.FindProgress(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			return activityView{Activity: a, Progress: p}, nil
		})
	}
}

// GET /courses/{courseID}
func GetCourseHandler(store learning.Store, loader *views.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		serveView(w, r, loader, views.CoursePath(id), func(ctx context.Context, userID string) (any, error) {
			var v courseView
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				v.Course, err = store.GetCourse(gctx, id)
				return err
			})
			g.Go(func() (err error) {
				v.Activities, err = store.ListPublishedActivities(gctx, id)
				return err
			})
			g.Go(func() (err error) {
				v.Progress, err = store.ListUserProgress(gctx, userID, id)
				return err
			})
			g.Go(func() (err error) {
				v.Enrollment, err = store.FindEnrollment(gctx, userID, id)
				return err
			})
			if err := g.Wait(); err != nil {
				return nil, err
			}
			if v.Activities == nil {
				v.Activities = []learning.Activity{}
			}
			if v.Progress == nil {
				v.Progress = []learning.Progress{}
			}
			return v, nil
		})
	}
}

// GET /dashboard
func DashboardHandler(store learning.Store, loader *views.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveView(w, r, loader, views.DashboardPath, func(ctx context.Context, userID string) (any, error) {
			entries, err := store.ListUserEnrollments(ctx, userID)
			if entries == nil && err == nil {
				entries = []learning.DashboardEntry{}
			}
			return entries, err
		})
	}
}

// GET /progress
func ProgressHandler(store learning.Store, loader *views.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveView(w, r, loader, views.ProgressPath, func(ctx context.Context, userID string) (any, error) {
			rows, err := store.ListUserProgress(ctx, userID, "")
			if rows == nil && err == nil {
				rows = []learning.Progress{}
			}
			return rows, err
		})
	}
}
