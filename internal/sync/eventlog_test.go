package syncx_test

import (
	"context"
	"testing"

	"github.com/mind-engage/mindengage-learn/internal/db"
	syncx "github.com/mind-engage/mindengage-learn/internal/sync"
)

func TestEventRepo_AppendAndSince(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:eventlog_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer dbh.Close()

	repo := syncx.NewEventRepo(dbh, "site-a")
	for _, k := range []string{"p1", "p2"} {
		if err := repo.Append(ctx, syncx.Event{Type: syncx.TypeProgressSaved, Key: k, DataJSON: `{}`}); err != nil {
			t.Fatalf("append %s: %v", k, err)
		}
	}

	evs, err := repo.Since(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Key != "p1" || evs[0].SiteID != "site-a" || evs[0].Type != syncx.TypeProgressSaved {
		t.Fatalf("unexpected first event %+v", evs[0])
	}

	rest, err := repo.Since(ctx, evs[0].Seq, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].Key != "p2" {
		t.Fatalf("unexpected tail %+v", rest)
	}
}
