package inboxes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
)

func TestInboxHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, nil, nil)
	a.R.POST("/inboxes", Create(a))
	a.R.GET("/inboxes", List(a))

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"list", http.MethodGet, "", http.StatusOK},
		{"create", http.MethodPost, `{"email_address":"support@acme.example"}`, http.StatusCreated},
		{"create_missing", http.MethodPost, `{}`, http.StatusBadRequest},
		{"create_invalid", http.MethodPost, `{"email_address":"not an address"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/inboxes", strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			a.R.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if tt.name == "create" {
				var ib Inbox
				if err := json.Unmarshal(rr.Body.Bytes(), &ib); err != nil || ib.EmailAddress != "support@acme.example" {
					t.Fatalf("unexpected inbox: %v %v", ib, err)
				}
			}
		})
	}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

// errRowDB returns the scripted row error from every QueryRow call.
type errRowDB struct{ err error }

func (db errRowDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, db.err
}

func (db errRowDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{err: db.err}
}

func (db errRowDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, db.err
}

func TestCreateDuplicateAddressConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, errRowDB{err: &pgconn.PgError{Code: "23505", ConstraintName: "inboxes_email_address_key"}}, nil, nil)
	a.R.POST("/inboxes", Create(a))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/inboxes", strings.NewReader(`{"email_address":"support@acme.example"}`))
	req.Header.Set("Content-Type", "application/json")
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Errors["email_address"] != "taken" {
		t.Fatalf("field errors = %v", body.Errors)
	}
}

func TestValidEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"support@acme.example", true},
		{"Jane <jane@example.com>", true},
		{"", false},
		{"not an address", false},
		{"@nouser.example", false},
	}
	for _, c := range cases {
		if got := ValidEmail(c.in); got != c.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
