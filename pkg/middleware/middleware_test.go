package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/JaimeStill/vetrecords/pkg/middleware"
)

func tag(name string, trail *[]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trail = append(*trail, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestApplyOrder(t *testing.T) {
	var trail []string
	mw := middleware.New()
	mw.Use(tag("logger", &trail))
	mw.Use(tag("recover", &trail))
	mw.Use(tag("cors", &trail))

	handler := mw.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trail = append(trail, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/documents", nil))

	want := []string{"logger", "recover", "cors", "handler"}
	if !slices.Equal(trail, want) {
		t.Errorf("order = %v, want %v", trail, want)
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel string
	}{
		{"implicit ok", 0, `{"id":"d1"}`, "level=INFO"},
		{"accepted", http.StatusAccepted, "", "level=INFO"},
		{"conflict", http.StatusConflict, "", "level=WARN"},
		{"failure", http.StatusInternalServerError, "", "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			handler := middleware.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				w.Write([]byte(tt.body))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/documents/d1/review?x=1", nil))

			line := buf.String()
			if !strings.Contains(line, tt.wantLevel) {
				t.Errorf("log = %q, want %s", line, tt.wantLevel)
			}
			if !strings.Contains(line, "uri=/documents/d1/review?x=1") {
				t.Errorf("log = %q, want request uri", line)
			}
			if tt.body != "" && !strings.Contains(line, "bytes=11") {
				t.Errorf("log = %q, want bytes=11", line)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := middleware.Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("mapping table corrupted")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/runs", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("error = %q, want generic message", body["error"])
	}
	if !strings.Contains(buf.String(), "mapping table corrupted") {
		t.Errorf("log = %q, want panic value", buf.String())
	}
}

func TestRecoverReraisesAbort(t *testing.T) {
	handler := middleware.Recover(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if p := recover(); p != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", p)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/runs", nil))
}

func corsConfig() *middleware.CORSConfig {
	cfg := &middleware.CORSConfig{
		Enabled:          true,
		Origins:          []string{"https://clinic.example"},
		AllowCredentials: true,
	}
	cfg.Finalize(nil)
	return cfg
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *middleware.CORSConfig
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantExposed string
		wantReached bool
	}{
		{
			name:        "allowed origin",
			cfg:         corsConfig(),
			method:      "GET",
			origin:      "https://clinic.example",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://clinic.example",
			wantExposed: "Location, Content-Disposition",
			wantReached: true,
		},
		{
			name:        "foreign origin",
			cfg:         corsConfig(),
			method:      "GET",
			origin:      "https://elsewhere.example",
			wantStatus:  http.StatusOK,
			wantReached: true,
		},
		{
			name:        "preflight",
			cfg:         corsConfig(),
			method:      "OPTIONS",
			origin:      "https://clinic.example",
			preflight:   true,
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://clinic.example",
			wantReached: false,
		},
		{
			name:        "disabled",
			cfg:         &middleware.CORSConfig{Origins: []string{"https://clinic.example"}},
			method:      "GET",
			origin:      "https://clinic.example",
			wantStatus:  http.StatusOK,
			wantReached: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			handler := middleware.CORS(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			}))

			req := httptest.NewRequest(tt.method, "/documents", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Expose-Headers"); got != tt.wantExposed {
				t.Errorf("expose headers = %q, want %q", got, tt.wantExposed)
			}
			if reached != tt.wantReached {
				t.Errorf("handler reached = %v, want %v", reached, tt.wantReached)
			}
			if tt.preflight && rec.Header().Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" {
				t.Errorf("allow methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestCORSConfigFinalizeEnv(t *testing.T) {
	t.Setenv("VR_CORS_ENABLED", "true")
	t.Setenv("VR_CORS_ORIGINS", " https://a.example, ,https://b.example")
	t.Setenv("VR_CORS_MAX_AGE", "600")

	cfg := middleware.CORSConfig{}
	err := cfg.Finalize(&middleware.CORSEnv{
		Enabled: "VR_CORS_ENABLED",
		Origins: "VR_CORS_ORIGINS",
		MaxAge:  "VR_CORS_MAX_AGE",
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if !cfg.Enabled {
		t.Error("Enabled = false, want true")
	}
	if !slices.Equal(cfg.Origins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("Origins = %v", cfg.Origins)
	}
	if cfg.MaxAge != 600 {
		t.Errorf("MaxAge = %d, want 600", cfg.MaxAge)
	}
}

func TestCORSConfigFinalizeInvalidEnv(t *testing.T) {
	t.Setenv("VR_CORS_ENABLED", "sometimes")

	cfg := middleware.CORSConfig{}
	if err := cfg.Finalize(&middleware.CORSEnv{Enabled: "VR_CORS_ENABLED"}); err == nil {
		t.Fatal("expected error for unparseable boolean")
	}
}

func TestCORSConfigMerge(t *testing.T) {
	base := corsConfig()
	base.Merge(&middleware.CORSConfig{
		Enabled: false,
		Origins: []string{"https://new.example"},
	})

	if base.Enabled {
		t.Error("Enabled should follow overlay")
	}
	if !slices.Equal(base.Origins, []string{"https://new.example"}) {
		t.Errorf("Origins = %v", base.Origins)
	}
	if base.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600 kept", base.MaxAge)
	}
}
