package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	authmw "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
)

// PUT /users  JSON array, or multipart file= holding JSON or CSV
// (columns id, username, role[, password]).
func BulkUpsertUsersHandler(users *authmw.SQLUsers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []authmw.UserInput
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			body, err := io.ReadAll(f)
			if err != nil || len(strings.TrimSpace(string(body))) == 0 {
				http.Error(w, "empty file", http.StatusBadRequest)
				return
			}
			if t := strings.TrimSpace(string(body)); t[0] == '[' {
				if err := json.Unmarshal(body, &rows); err != nil {
					http.Error(w, "bad json", http.StatusBadRequest)
					return
				}
			} else {
				rows, err = parseUsersCSV(strings.NewReader(string(body)))
				if err != nil {
					http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
					return
				}
			}
		} else if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
			return
		}
		for _, u := range rows {
			if err := validate.Struct(u); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusOK, map[string]int{"inserted": 0, "updated": 0})
			return
		}
		ins, upd, err := users.Upsert(r.Context(), rows)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
	}
}

// GET /users?role=
func ListUsersHandler(users *authmw.SQLUsers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), r.URL.Query().Get("role"))
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=4"`
}

// POST /users/change-password
func ChangePasswordHandler(users *authmw.SQLUsers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.CurrentUser(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req changePasswordReq
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch err := users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, authmw.ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, authmw.ErrBadPassword):
			http.Error(w, "incorrect old password", http.StatusForbidden)
		default:
			http.Error(w, "store error", http.StatusInternalServerError)
		}
	}
}

func parseUsersCSV(r io.Reader) ([]authmw.UserInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "username", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	var rows []authmw.UserInput
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := authmw.UserInput{
			ID:       rec[idx["id"]],
			Username: rec[idx["username"]],
			Role:     strings.ToLower(rec[idx["role"]]),
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
