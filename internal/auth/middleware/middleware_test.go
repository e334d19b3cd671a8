package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-learn/internal/db"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
)

func openUsers(t *testing.T, name string) (*sql.DB, *SQLUsers) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh, NewSQLUsers(dbh)
}

func login(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	return rr
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret")
	tok, err := a.IssueJWT("u1", RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.Sub != "u1" || c.Role != RoleStudent {
		t.Fatalf("claims = %+v", c)
	}

	if _, err := NewAuthService("other").Parse(tok); err == nil {
		t.Fatal("token verified with wrong secret")
	}

	a.now = func() time.Time { return time.Now().Add(9 * time.Hour) }
	if _, err := a.Parse(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret")
	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = CurrentUser(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no bearer: status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: status %d", rr.Code)
	}

	tok, _ := a.IssueJWT("u7", RoleTeacher)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || gotSub != "u7" || gotRole != RoleTeacher {
		t.Fatalf("status=%d sub=%q role=%q", rr.Code, gotSub, gotRole)
	}
}

func TestLoginHandler(t *testing.T) {
	_, users := openUsers(t, "auth_login")
	ctx := context.Background()
	if _, _, err := users.Upsert(ctx, []UserInput{{ID: "s1", Username: "ana", Password: "pw"}}); err != nil {
		t.Fatal(err)
	}
	adminHash, _ := bcrypt.GenerateFromPassword([]byte("root"), bcrypt.MinCost)
	a := NewAuthService("secret")
	h := LoginHandler(a, users, Admin{Username: "admin", PasswordHash: string(adminHash)})

	cases := []struct {
		name     string
		body     string
		status   int
		wantSub  string
		wantRole string
	}{
		{"student", `{"username":"ana","password":"pw"}`, http.StatusOK, "s1", RoleStudent},
		{"admin", `{"username":"admin","password":"root"}`, http.StatusOK, "admin", RoleAdmin},
		{"wrong password", `{"username":"ana","password":"nope"}`, http.StatusUnauthorized, "", ""},
		{"unknown user", `{"username":"zed","password":"pw"}`, http.StatusUnauthorized, "", ""},
		{"admin wrong password", `{"username":"admin","password":"pw"}`, http.StatusUnauthorized, "", ""},
		{"missing password", `{"username":"ana"}`, http.StatusBadRequest, "", ""},
		{"bad json", `{`, http.StatusBadRequest, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := login(t, h, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tc.status, rr.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var resp loginResp
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			c, err := a.Parse(resp.AccessToken)
			if err != nil {
				t.Fatal(err)
			}
			if c.Sub != tc.wantSub || c.Role != tc.wantRole {
				t.Fatalf("claims = %+v", c)
			}
		})
	}
}

func TestLoginHandler_AdminOnly(t *testing.T) {
	adminHash, _ := bcrypt.GenerateFromPassword([]byte("root"), bcrypt.MinCost)
	h := LoginHandler(NewAuthService("s"), nil, Admin{Username: "admin", PasswordHash: string(adminHash)})
	if rr := login(t, h, `{"username":"ana","password":"pw"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr := login(t, h, `{"username":"admin","password":"root"}`); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSQLUsers_UpsertAndChangePassword(t *testing.T) {
	ctx := context.Background()
	_, users := openUsers(t, "auth_users")

	ins, upd, err := users.Upsert(ctx, []UserInput{
		{ID: "t1", Username: "tess", Role: "Teacher", Password: "a"},
		{ID: "s1", Username: "sam", Password: "b"},
	})
	if err != nil || ins != 2 || upd != 0 {
		t.Fatalf("ins=%d upd=%d err=%v", ins, upd, err)
	}
	ins, upd, err = users.Upsert(ctx, []UserInput{{ID: "s1", Username: "samuel"}})
	if err != nil || ins != 0 || upd != 1 {
		t.Fatalf("ins=%d upd=%d err=%v", ins, upd, err)
	}
	if _, _, err := users.Upsert(ctx, []UserInput{{ID: "n1", Username: "nopw"}}); err == nil {
		t.Fatal("new user without password accepted")
	}
	if _, _, err := users.Upsert(ctx, []UserInput{{ID: "x1", Username: "x", Role: "janitor", Password: "p"}}); err == nil {
		t.Fatal("invalid role accepted")
	}

	list, err := users.List(ctx, RoleTeacher)
	if err != nil || len(list) != 1 || list[0].Username != "tess" {
		t.Fatalf("teachers = %+v, %v", list, err)
	}

	if err := users.ChangePassword(ctx, "s1", "wrong", "c"); err != ErrBadPassword {
		t.Fatalf("err = %v, want ErrBadPassword", err)
	}
	if err := users.ChangePassword(ctx, "s1", "b", "c"); err != nil {
		t.Fatal(err)
	}
	u, err := users.FindByUsername(ctx, "samuel")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("c")) != nil {
		t.Fatal("password not changed")
	}
	if err := users.ChangePassword(ctx, "ghost", "a", "b"); err != ErrUserNotFound {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
