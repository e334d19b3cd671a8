package learning

import (
	"encoding/json"
	"time"
)

type ActivityType string

const (
	TypeReading   ActivityType = "reading"
	TypeListening ActivityType = "listening"
	TypeQuiz      ActivityType = "quiz"
	TypeFillBlank ActivityType = "fill_blank"
	TypeDragDrop  ActivityType = "drag_drop"
	TypeMatching  ActivityType = "matching"
	TypeFlipCards ActivityType = "flip_cards"
	TypeVideo     ActivityType = "video"
)

// ActivityTypes lists every supported kind, in display order.
var ActivityTypes = []ActivityType{
	TypeReading, TypeListening, TypeQuiz, TypeFillBlank,
	TypeDragDrop, TypeMatching, TypeFlipCards, TypeVideo,
}

func (t ActivityType) Valid() bool {
	for _, k := range ActivityTypes {
		if k == t {
			return true
		}
	}
	return false
}

type ActivityStatus string

const (
	StatusDraft     ActivityStatus = "draft"
	StatusPublished ActivityStatus = "published"
)

type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	TotalEnrollments int       `json:"total_enrollments"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Activity struct {
	ID          string          `json:"id"`
	CourseID    string          `json:"course_id"`
	Type        ActivityType    `json:"type"`
	Status      ActivityStatus  `json:"status"`
	OrderIndex  int             `json:"order_index"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"` // shape depends on Type
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Enrollment is the user_courses row: one per (user, course).
type Enrollment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Progress  int       `json:"progress"` // 0..100
	Score     int       `json:"score"`    // 0..100
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress is the user_progress row: one per (user, activity).
type Progress struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	ActivityID string          `json:"activity_id"`
	CourseID   string          `json:"course_id"`
	Score      float64         `json:"score"`
	Completed  bool            `json:"completed"`
	Answers    json.RawMessage `json:"answers,omitempty"`
	TimeSpent  int             `json:"time_spent"` // seconds
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SaveInput is one activity attempt as submitted by a learner.
type SaveInput struct {
	ActivityID string
	Score      float64
	Completed  bool
	Answers    json.RawMessage // optional
	TimeSpent  *int            // optional, seconds
}

// DashboardEntry joins an enrollment with its course title.
type DashboardEntry struct {
	Enrollment
	CourseTitle string `json:"course_title"`
}
