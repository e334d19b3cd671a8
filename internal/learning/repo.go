package learning

import (
	"context"
	"time"
)

// Store is the row store behind the recorder and aggregator. Each call is an
// independent round trip; nothing here spans a transaction.
//
// Get* return ErrNotFound when the row is absent. Find* return (nil, nil).
type Store interface {
	GetActivity(ctx context.Context, id string) (Activity, error)
	FindEnrollment(ctx context.Context, userID, courseID string) (*Enrollment, error)
	InsertEnrollment(ctx context.Context, e Enrollment) error
	// UpdateEnrollmentScores updates progress/score of the row matching both id and userID.
	UpdateEnrollmentScores(ctx context.Context, id, userID string, progress, score int, at time.Time) error
	IncrementCourseEnrollments(ctx context.Context, courseID string) error

	FindProgress(ctx context.Context, userID, activityID string) (*Progress, error)
	InsertProgress(ctx context.Context, p Progress) error
	// UpdateProgress rewrites the row matching both p.ID and p.UserID.
	UpdateProgress(ctx context.Context, p Progress) error

	ListPublishedActivities(ctx context.Context, courseID string) ([]Activity, error)
	ListCompletedProgress(ctx context.Context, userID, courseID string) ([]Progress, error)

	// Catalog and dashboard reads.
	PutCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	PutActivity(ctx context.Context, a Activity) error
	ListUserEnrollments(ctx context.Context, userID string) ([]DashboardEntry, error)
	// ListUserProgress filters by course when courseID is non-empty.
	ListUserProgress(ctx context.Context, userID, courseID string) ([]Progress, error)
}
