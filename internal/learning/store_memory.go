package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for offline/dev mode and tests. It
// enforces the same uniqueness rules as the SQL schema.
type MemoryStore struct {
	mu          sync.RWMutex
	courses     map[string]Course
	activities  map[string]Activity
	enrollments map[string]Enrollment // id -> row
	progress    map[string]Progress   // id -> row
	writes      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:     map[string]Course{},
		activities:  map[string]Activity{},
		enrollments: map[string]Enrollment{},
		progress:    map[string]Progress{},
	}
}

// Writes reports how many mutating calls have succeeded.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *MemoryStore) GetActivity(_ context.Context, id string) (Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.activities[id]
	if !ok {
		return Activity{}, fmt.Errorf("activity %q: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *MemoryStore) PutActivity(_ context.Context, a Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[a.CourseID]; !ok {
		return fmt.Errorf("course %q: %w", a.CourseID, ErrNotFound)
	}
	now := time.Now().UTC()
	if prev, ok := m.activities[a.ID]; ok {
		a.CreatedAt = prev.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.activities[a.ID] = a
	m.writes++
	return nil
}

func (m *MemoryStore) ListPublishedActivities(_ context.Context, courseID string) ([]Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Activity
	for _, a := range m.activities {
		if a.CourseID == courseID && a.Status == StatusPublished {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) PutCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := m.courses[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
		c.TotalEnrollments = prev.TotalEnrollments
	} else {
		c.CreatedAt = now
		c.TotalEnrollments = 0
	}
	c.UpdatedAt = now
	m.courses[c.ID] = c
	m.writes++
	return nil
}

func (m *MemoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, fmt.Errorf("course %q: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *MemoryStore) ListCourses(_ context.Context) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) IncrementCourseEnrollments(_ context.Context, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return fmt.Errorf("course %q: %w", courseID, ErrNotFound)
	}
	c.TotalEnrollments++
	c.UpdatedAt = time.Now().UTC()
	m.courses[courseID] = c
	m.writes++
	return nil
}

func (m *MemoryStore) FindEnrollment(_ context.Context, userID, courseID string) (*Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) InsertEnrollment(_ context.Context, e Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[e.ID]; ok {
		return fmt.Errorf("enrollment %q already exists", e.ID)
	}
	for _, x := range m.enrollments {
		if x.UserID == e.UserID && x.CourseID == e.CourseID {
			return fmt.Errorf("enrollment for user %q in course %q already exists", e.UserID, e.CourseID)
		}
	}
	m.enrollments[e.ID] = e
	m.writes++
	return nil
}

func (m *MemoryStore) UpdateEnrollmentScores(_ context.Context, id, userID string, progress, score int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.UserID != userID {
		return nil // zero rows matched
	}
	e.Progress, e.Score, e.UpdatedAt = progress, score, at
	m.enrollments[id] = e
	m.writes++
	return nil
}

func (m *MemoryStore) ListUserEnrollments(_ context.Context, userID string) ([]DashboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DashboardEntry
	for _, e := range m.enrollments {
		if e.UserID != userID {
			continue
		}
		out = append(out, DashboardEntry{Enrollment: e, CourseTitle: m.courses[e.CourseID].Title})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) FindProgress(_ context.Context, userID, activityID string) (*Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.progress {
		if p.UserID == userID && p.ActivityID == activityID {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) InsertProgress(_ context.Context, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.progress[p.ID]; ok {
		return fmt.Errorf("progress %q already exists", p.ID)
	}
	for _, x := range m.progress {
		if x.UserID == p.UserID && x.ActivityID == p.ActivityID {
			return fmt.Errorf("progress for user %q on activity %q already exists", p.UserID, p.ActivityID)
		}
	}
	m.progress[p.ID] = p
	m.writes++
	return nil
}

func (m *MemoryStore) UpdateProgress(_ context.Context, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.progress[p.ID]
	if !ok || prev.UserID != p.UserID {
		return nil // zero rows matched
	}
	p.CreatedAt = prev.CreatedAt
	p.ActivityID = prev.ActivityID
	m.progress[p.ID] = p
	m.writes++
	return nil
}

func (m *MemoryStore) ListCompletedProgress(_ context.Context, userID, courseID string) ([]Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Progress
	for _, p := range m.progress {
		if p.UserID == userID && p.CourseID == courseID && p.Completed {
			out = append(out, p)
		}
	}
	sortProgress(out)
	return out, nil
}

func (m *MemoryStore) ListUserProgress(_ context.Context, userID, courseID string) ([]Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Progress
	for _, p := range m.progress {
		if p.UserID == userID && (courseID == "" || p.CourseID == courseID) {
			out = append(out, p)
		}
	}
	sortProgress(out)
	return out, nil
}

func sortProgress(ps []Progress) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].UpdatedAt.Equal(ps[j].UpdatedAt) {
			return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
