package learning

import (
	"context"
	"testing"
	"time"
)

func putProgress(t *testing.T, st *MemoryStore, id, userID, activityID string, score float64, completed bool) {
	t.Helper()
	now := time.Now().UTC()
	p := Progress{ID: id, UserID: userID, ActivityID: activityID, CourseID: "c1", Score: score, Completed: completed, CreatedAt: now, UpdatedAt: now}
	if err := st.InsertProgress(context.Background(), p); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
}

func TestAggregator_ThreeOfFour(t *testing.T) {
	st := seedCourse(t)
	putProgress(t, st, "p1", "u1", "a1", 80, true)
	putProgress(t, st, "p2", "u1", "a2", 90, true)
	putProgress(t, st, "p3", "u1", "a3", 100, true)
	putProgress(t, st, "p4", "u1", "a4", 20, false) // incomplete: ignored

	e, wrote, err := NewAggregator(st, nil).compute(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !wrote {
		t.Fatal("expected enrollment write")
	}
	if e.Progress != 75 || e.Score != 90 {
		t.Fatalf("got progress=%d score=%d, want 75/90", e.Progress, e.Score)
	}
}

func TestAggregator_UpdatesExistingEnrollment(t *testing.T) {
	ctx := context.Background()
	st := seedCourse(t)
	now := time.Now().UTC()
	if err := st.InsertEnrollment(ctx, Enrollment{ID: "e1", UserID: "u1", CourseID: "c1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	putProgress(t, st, "p1", "u1", "a1", 50, true)

	NewAggregator(st, nil).Recompute(ctx, "u1", "c1")

	entries, _ := st.ListUserEnrollments(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("enrollments = %d, want 1", len(entries))
	}
	if entries[0].ID != "e1" || entries[0].Progress != 25 || entries[0].Score != 50 {
		t.Fatalf("enrollment = %+v", entries[0].Enrollment)
	}
}

func TestAggregator_NoPublishedActivitiesNoWrite(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	_ = st.PutCourse(ctx, Course{ID: "empty", Title: "Empty"})
	_ = st.PutActivity(ctx, Activity{ID: "d", CourseID: "empty", Type: TypeVideo, Status: StatusDraft})
	before := st.Writes()

	_, wrote, err := NewAggregator(st, nil).compute(ctx, "u1", "empty")
	if err != nil || wrote {
		t.Fatalf("wrote=%v err=%v, want no write", wrote, err)
	}
	if st.Writes() != before {
		t.Fatal("store was written")
	}
}

func TestAggregator_IgnoresUnpublishedCompletions(t *testing.T) {
	st := seedCourse(t)
	putProgress(t, st, "p1", "u1", "a1", 100, true)
	putProgress(t, st, "p2", "u1", "d1", 0, true) // draft activity

	e, _, err := NewAggregator(st, nil).compute(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Progress != 25 || e.Score != 100 {
		t.Fatalf("got %d/%d, want 25/100", e.Progress, e.Score)
	}
}

func TestAggregator_ScopedToUser(t *testing.T) {
	st := seedCourse(t)
	putProgress(t, st, "p1", "u1", "a1", 100, true)
	putProgress(t, st, "p2", "u2", "a2", 40, true)
	putProgress(t, st, "p3", "u2", "a3", 60, true)

	e, _, err := NewAggregator(st, nil).compute(context.Background(), "u2", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if e.UserID != "u2" || e.Progress != 50 || e.Score != 50 {
		t.Fatalf("enrollment = %+v", e)
	}
}

func TestRollup(t *testing.T) {
	cases := []struct {
		name                string
		completed, total    int
		sum                 float64
		wantProg, wantScore int
	}{
		{"none", 0, 4, 0, 0, 0},
		{"three of four", 3, 4, 270, 75, 90},
		{"all", 5, 5, 500, 100, 100},
		{"one of three rounds down", 1, 3, 70, 33, 70},
		{"two of three rounds up", 2, 3, 150, 67, 75},
		{"half rounds away from zero", 1, 8, 0, 13, 0}, // 12.5 -> 13
		{"score half rounds up", 2, 2, 85, 100, 43},    // 42.5 -> 43
		{"zero total", 0, 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, s := Rollup(tc.completed, tc.total, tc.sum)
			if p != tc.wantProg || s != tc.wantScore {
				t.Fatalf("Rollup(%d,%d,%v) = %d/%d, want %d/%d", tc.completed, tc.total, tc.sum, p, s, tc.wantProg, tc.wantScore)
			}
		})
	}
}
