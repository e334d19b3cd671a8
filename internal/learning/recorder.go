package learning

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-learn/internal/logger"
	syncx "github.com/mind-engage/mindengage-learn/internal/sync"
	"github.com/mind-engage/mindengage-learn/internal/views"
)

// EventAppender receives a ProgressSaved event after each successful save.
type EventAppender interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Recorder saves one activity attempt per (user, activity) and keeps the
// enrollment and cached views in step with it.
type Recorder struct {
	store  Store
	agg    *Aggregator
	inval  views.Invalidator // optional
	events EventAppender     // optional
	log    *logger.Logger
	now    func() time.Time
}

type RecorderOption func(*Recorder)

func WithInvalidator(v views.Invalidator) RecorderOption { return func(r *Recorder) { r.inval = v } }
func WithEvents(e EventAppender) RecorderOption { return func(r *Recorder) { r.events = e } }
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
		r.agg.now = now
	}
}

func NewRecorder(store Store, log *logger.Logger, opts ...RecorderOption) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	r := &Recorder{
		store: store,
		agg:   NewAggregator(store, log),
		log:   log.With("component", "ProgressRecorder"),
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SaveResult is the tagged outcome handed back to activity clients.
type SaveResult struct {
	Success bool      `json:"success"`
	Data    *Progress `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}

// SaveActivityProgress is Record with its outcome folded into a SaveResult.
func (r *Recorder) SaveActivityProgress(ctx context.Context, userID string, in SaveInput) SaveResult {
	p, err := r.Record(ctx, userID, in)
	if err != nil {
		return SaveResult{Error: err.Error(), Code: CodeOf(err)}
	}
	return SaveResult{Success: true, Data: &p}
}

// Record upserts the progress row for (userID, in.ActivityID). Enrollment
// bookkeeping, aggregation, invalidation and the event append are best
// effort; only the activity lookup and the progress write can fail the call.
func (r *Recorder) Record(ctx context.Context, userID string, in SaveInput) (Progress, error) {
	if userID == "" {
		return Progress{}, ErrUnauthenticated
	}

	act, err := r.store.GetActivity(ctx, in.ActivityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Progress{}, err
		}
		return Progress{}, persistErr("get activity", err)
	}
	courseID := act.CourseID

	if err := r.ensureEnrollment(ctx, userID, courseID); err != nil {
		r.log.Warn("enrollment bookkeeping failed", "user_id", userID, "course_id", courseID, "error", err)
	}

	prev, err := r.store.FindProgress(ctx, userID, act.ID)
	if err != nil {
		return Progress{}, persistErr("find progress", err)
	}

	now := r.now().UTC()
	p := Progress{
		UserID:     userID,
		ActivityID: act.ID,
		CourseID:   courseID,
		Score:      in.Score,
		Completed:  in.Completed,
		Answers:    in.Answers,
		TimeSpent:  timeSpent(in.TimeSpent, prev),
		UpdatedAt:  now,
	}
	if prev != nil {
		p.ID = prev.ID
		p.CreatedAt = prev.CreatedAt
		if len(p.Answers) == 0 {
			p.Answers = prev.Answers
		}
		if err := r.store.UpdateProgress(ctx, p); err != nil {
			return Progress{}, persistErr("update progress", err)
		}
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = now
		if err := r.store.InsertProgress(ctx, p); err != nil {
			return Progress{}, persistErr("insert progress", err)
		}
	}

	// Aggregate before invalidating so rebuilt views see fresh percentages.
	r.agg.Recompute(ctx, userID, courseID)

	if r.inval != nil {
		keys := []string{
			views.Key(views.ActivityPath(act.ID), userID),
			views.Key(views.CoursePath(courseID), userID),
			views.Key(views.DashboardPath, userID),
			views.Key(views.ProgressPath, userID),
		}
		if err := r.inval.Invalidate(ctx, keys...); err != nil {
			r.log.Warn("view invalidation failed", "user_id", userID, "activity_id", act.ID, "error", err)
		}
	}
	if r.events != nil {
		if err := r.appendEvent(ctx, p); err != nil {
			r.log.Warn("event append failed", "progress_id", p.ID, "error", err)
		}
	}
	return p, nil
}

// ensureEnrollment creates the (user, course) enrollment on first contact
// and bumps the course's enrollment counter.
func (r *Recorder) ensureEnrollment(ctx context.Context, userID, courseID string) error {
	existing, err := r.store.FindEnrollment(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	now := r.now().UTC()
	e := Enrollment{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.InsertEnrollment(ctx, e); err != nil {
		return err
	}
	return r.store.IncrementCourseEnrollments(ctx, courseID)
}

func (r *Recorder) appendEvent(ctx context.Context, p Progress) error {
	data, err := json.Marshal(struct {
		UserID     string  `json:"user_id"`
		ActivityID string  `json:"activity_id"`
		CourseID   string  `json:"course_id"`
		Score      float64 `json:"score"`
		Completed  bool    `json:"completed"`
		TimeSpent  int     `json:"time_spent"`
	}{p.UserID, p.ActivityID, p.CourseID, p.Score, p.Completed, p.TimeSpent})
	if err != nil {
		return err
	}
	return r.events.Append(ctx, syncx.Event{Type: syncx.TypeProgressSaved, Key: p.ID, DataJSON: string(data)})
}

// timeSpent never regresses a stored value to zero when the caller omits it.
func timeSpent(supplied *int, prev *Progress) int {
	switch {
	case supplied != nil:
		return *supplied
	case prev != nil:
		return prev.TimeSpent
	default:
		return 0
	}
}
