package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
)

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, nil, nil)
	registerRoutes(a, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouteSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, nil, nil)
	registerRoutes(a, nil)

	tests := []struct {
		method string
		url    string
		body   string
		want   int
	}{
		{http.MethodPost, "/webhooks/inbound/forwardemail", `{"recipients":["x@y.example"]}`, http.StatusOK},
		{http.MethodGet, "/tickets", "", http.StatusOK},
		{http.MethodGet, "/contacts", "", http.StatusOK},
		{http.MethodGet, "/inboxes", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
		if tt.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		a.R.ServeHTTP(rr, req)
		if rr.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.url, tt.want, rr.Code)
		}
	}
}
