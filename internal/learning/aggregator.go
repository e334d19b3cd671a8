package learning

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-learn/internal/logger"
)

// Aggregator recomputes a user's course-level progress and average score
// from their completed, published activities.
type Aggregator struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

func NewAggregator(store Store, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{store: store, log: log.With("component", "CourseAggregator"), now: time.Now}
}

// Recompute is best effort: failures are logged and never returned.
func (a *Aggregator) Recompute(ctx context.Context, userID, courseID string) {
	if _, _, err := a.compute(ctx, userID, courseID); err != nil {
		a.log.Warn("course progress recompute failed", "user_id", userID, "course_id", courseID, "error", err)
	}
}

// compute returns the enrollment as written and whether a write happened.
func (a *Aggregator) compute(ctx context.Context, userID, courseID string) (Enrollment, bool, error) {
	published, err := a.store.ListPublishedActivities(ctx, courseID)
	if err != nil {
		return Enrollment{}, false, persistErr("list published activities", err)
	}
	if len(published) == 0 {
		return Enrollment{}, false, nil
	}
	live := make(map[string]struct{}, len(published))
	for _, act := range published {
		live[act.ID] = struct{}{}
	}

	done, err := a.store.ListCompletedProgress(ctx, userID, courseID)
	if err != nil {
		return Enrollment{}, false, persistErr("list completed progress", err)
	}
	completed := 0
	sum := 0.0
	for _, p := range done {
		if _, ok := live[p.ActivityID]; !ok {
			continue // unpublished since completion
		}
		completed++
		sum += p.Score
	}
	progress, score := Rollup(completed, len(published), sum)

	now := a.now().UTC()
	existing, err := a.store.FindEnrollment(ctx, userID, courseID)
	if err != nil {
		return Enrollment{}, false, persistErr("find enrollment", err)
	}
	if existing != nil {
		if err := a.store.UpdateEnrollmentScores(ctx, existing.ID, userID, progress, score, now); err != nil {
			return Enrollment{}, false, persistErr("update enrollment", err)
		}
		e := *existing
		e.Progress, e.Score, e.UpdatedAt = progress, score, now
		return e, true, nil
	}

	e := Enrollment{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		Progress:  progress,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.InsertEnrollment(ctx, e); err != nil {
		return Enrollment{}, false, persistErr("insert enrollment", err)
	}
	return e, true, nil
}

// Rollup turns completion counts and the score sum into the enrollment's
// integer percentages. Both round half away from zero.
func Rollup(completed, total int, scoreSum float64) (progress, score int) {
	if total <= 0 {
		return 0, 0
	}
	progress = int(math.Round(100 * float64(completed) / float64(total)))
	if completed > 0 {
		score = int(math.Round(scoreSum / float64(completed)))
	}
	return progress, score
}
