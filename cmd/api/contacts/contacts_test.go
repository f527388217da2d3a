package contacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
)

type queryDB struct {
	lastSQL  string
	lastArgs []any
}

func (db *queryDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	db.lastSQL = sql
	db.lastArgs = args
	return emptyRows{}, nil
}
func (db *queryDB) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }
func (db *queryDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(...any) error                            { return nil }
func (emptyRows) Values() ([]any, error)                       { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }

func TestContactHandlersTestMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, nil, nil)
	a.R.GET("/contacts", List(a))
	a.R.GET("/contacts/:id", Get(a))

	for _, url := range []string{"/contacts", "/contacts/c-1"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		a.R.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", url, rr.Code)
		}
	}
}

func TestContactListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := &queryDB{}
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, db, nil, nil)
	a.R.GET("/contacts", List(a))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/contacts?organization=org-1&email=jane", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(db.lastSQL, "organization_id=$1") || !strings.Contains(db.lastSQL, "email ILIKE $2") {
		t.Fatalf("unexpected sql: %q", db.lastSQL)
	}
	if len(db.lastArgs) != 2 || db.lastArgs[0] != "org-1" || db.lastArgs[1] != "%jane%" {
		t.Fatalf("unexpected args: %v", db.lastArgs)
	}
}
