package routes_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/vetrecords/pkg/routes"
)

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body+" "+r.PathValue("id"))
	}
}

func documentGroups() []routes.Group {
	return []routes.Group{
		{
			Prefix: "/documents",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "", Handler: reply("list")},
				{Method: "POST", Pattern: "/{id}/runs", Handler: reply("reprocess")},
			},
			Children: []routes.Group{{
				Prefix: "/archive",
				Routes: []routes.Route{{Method: "GET", Pattern: "/{id}", Handler: reply("archived")}},
			}},
		},
		{
			Prefix: "/runs",
			Routes: []routes.Route{{Method: "GET", Pattern: "/{id}/steps", Handler: reply("steps")}},
		},
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, documentGroups()...)

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{"GET", "/documents", http.StatusOK, "list "},
		{"POST", "/documents/d1/runs", http.StatusOK, "reprocess d1"},
		{"GET", "/documents/archive/d2", http.StatusOK, "archived d2"},
		{"GET", "/runs/r1/steps", http.StatusOK, "steps r1"},
		{"GET", "/documents/d1/runs", http.StatusMethodNotAllowed, ""},
		{"GET", "/runs", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body: got %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	got := routes.Flatten(documentGroups()...)

	want := []struct {
		pattern string
		group   string
	}{
		{"GET /documents", "/documents"},
		{"POST /documents/{id}/runs", "/documents"},
		{"GET /documents/archive/{id}", "/documents"},
		{"GET /runs/{id}/steps", "/runs"},
	}

	if len(got) != len(want) {
		t.Fatalf("Flatten() returned %d endpoints, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Pattern() != w.pattern || got[i].Group != w.group {
			t.Errorf("endpoint[%d] = %s (%s), want %s (%s)", i, got[i].Pattern(), got[i].Group, w.pattern, w.group)
		}
		if got[i].Handler == nil {
			t.Errorf("endpoint[%d] has no handler", i)
		}
	}
}
