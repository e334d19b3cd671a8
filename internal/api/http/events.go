package http

import (
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/mindengage-learn/internal/sync"
)

type eventOut struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	Data      any    `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// GET /events?after=<seq>&limit=<n>
// Feed of saved-progress events for downstream sync.
func EventsHandler(repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := repo.Since(r.Context(), after, limit)
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		out := make([]eventOut, 0, len(evs))
		for _, e := range evs {
			out = append(out, eventOut{
				Seq:       e.Seq,
				SiteID:    e.SiteID,
				Type:      e.Type,
				Key:       e.Key,
				Data:      rawOrString(e.DataJSON),
				CreatedAt: e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
