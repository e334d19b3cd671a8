package learning_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mind-engage/mindengage-learn/internal/db"
	"github.com/mind-engage/mindengage-learn/internal/learning"
	syncx "github.com/mind-engage/mindengage-learn/internal/sync"
)

func openSQLStore(t *testing.T, name string) (*learning.SQLStore, *syncx.EventRepo) {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	st := learning.NewSQLStore(dbh)
	if err := st.PutCourse(ctx, learning.Course{ID: "c1", Title: "Listening 101"}); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	for i, id := range []string{"a1", "a2", "a3", "a4"} {
		a := learning.Activity{
			ID: id, CourseID: "c1", Type: learning.TypeQuiz, Status: learning.StatusPublished,
			OrderIndex: i, Title: "Quiz " + id, Content: json.RawMessage(`{"questions":[]}`),
		}
		if err := st.PutActivity(ctx, a); err != nil {
			t.Fatalf("seed activity %s: %v", id, err)
		}
	}
	if err := st.PutActivity(ctx, learning.Activity{ID: "d1", CourseID: "c1", Type: learning.TypeVideo, Status: learning.StatusDraft, Title: "wip"}); err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return st, syncx.NewEventRepo(dbh, "test")
}

func TestSQLStore_EndToEndRecording(t *testing.T) {
	ctx := context.Background()
	st, events := openSQLStore(t, "sqlstore_e2e")
	rec := learning.NewRecorder(st, nil, learning.WithEvents(events))

	spent := 45
	for _, in := range []learning.SaveInput{
		{ActivityID: "a1", Score: 80, Completed: true, TimeSpent: &spent, Answers: json.RawMessage(`{"q1":"a"}`)},
		{ActivityID: "a2", Score: 90, Completed: true},
		{ActivityID: "a3", Score: 100, Completed: true},
		{ActivityID: "a1", Score: 80, Completed: true}, // resave, no time spent
	} {
		if res := rec.SaveActivityProgress(ctx, "u1", in); !res.Success {
			t.Fatalf("save %s: %+v", in.ActivityID, res)
		}
	}

	rows, err := st.ListUserProgress(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("progress rows = %d, want 3", len(rows))
	}
	p, err := st.FindProgress(ctx, "u1", "a1")
	if err != nil || p == nil {
		t.Fatalf("find a1: %v %v", p, err)
	}
	if p.TimeSpent != 45 {
		t.Fatalf("time spent = %d, want 45", p.TimeSpent)
	}
	if string(p.Answers) != `{"q1":"a"}` {
		t.Fatalf("answers = %s", p.Answers)
	}
	if !p.Completed {
		t.Fatal("completed flag lost")
	}

	dash, err := st.ListUserEnrollments(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(dash) != 1 {
		t.Fatalf("enrollments = %d, want 1", len(dash))
	}
	if dash[0].Progress != 75 || dash[0].Score != 90 || dash[0].CourseTitle != "Listening 101" {
		t.Fatalf("dashboard entry = %+v", dash[0])
	}

	c, err := st.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.TotalEnrollments != 1 {
		t.Fatalf("total enrollments = %d, want 1", c.TotalEnrollments)
	}

	evs, err := events.Since(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 4 {
		t.Fatalf("events = %d, want 4", len(evs))
	}
}

func TestSQLStore_NotFoundAndScopedUpdates(t *testing.T) {
	ctx := context.Background()
	st, _ := openSQLStore(t, "sqlstore_scoped")

	res := learning.NewRecorder(st, nil).SaveActivityProgress(ctx, "u1", learning.SaveInput{ActivityID: "missing"})
	if res.Code != learning.CodeNotFound {
		t.Fatalf("code = %q, want not_found", res.Code)
	}
	if rows, _ := st.ListUserProgress(ctx, "u1", ""); len(rows) != 0 {
		t.Fatalf("unexpected rows %v", rows)
	}
	if _, err := st.GetCourse(ctx, "nope"); learning.CodeOf(err) != learning.CodeNotFound {
		t.Fatalf("GetCourse err = %v", err)
	}

	if _, err := learning.NewRecorder(st, nil).Record(ctx, "u1", learning.SaveInput{ActivityID: "a1", Score: 10}); err != nil {
		t.Fatal(err)
	}
	p, _ := st.FindProgress(ctx, "u1", "a1")

	// Another user cannot rewrite u1's row even with its id.
	hijack := *p
	hijack.UserID = "u2"
	hijack.Score = 99
	if err := st.UpdateProgress(ctx, hijack); err != nil {
		t.Fatal(err)
	}
	again, _ := st.FindProgress(ctx, "u1", "a1")
	if again.Score != 10 {
		t.Fatalf("score = %v, want 10", again.Score)
	}
}

func TestSQLStore_DuplicateProgressRejected(t *testing.T) {
	ctx := context.Background()
	st, _ := openSQLStore(t, "sqlstore_dupe")
	rec := learning.NewRecorder(st, nil)
	p, err := rec.Record(ctx, "u1", learning.SaveInput{ActivityID: "a2", Score: 5})
	if err != nil {
		t.Fatal(err)
	}
	dupe := p
	dupe.ID = "other-id"
	if err := st.InsertProgress(ctx, dupe); err == nil {
		t.Fatal("expected unique violation for second (user, activity) row")
	}
}

func TestSQLStore_ListPublishedOrdered(t *testing.T) {
	ctx := context.Background()
	st, _ := openSQLStore(t, "sqlstore_list")
	acts, err := st.ListPublishedActivities(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 4 {
		t.Fatalf("published = %d, want 4", len(acts))
	}
	for i, a := range acts {
		if a.OrderIndex != i {
			t.Fatalf("activity %d has order %d", i, a.OrderIndex)
		}
		if a.Status != learning.StatusPublished {
			t.Fatalf("draft leaked: %+v", a)
		}
	}
	if string(acts[0].Content) != `{"questions":[]}` {
		t.Fatalf("content = %s", acts[0].Content)
	}
}
