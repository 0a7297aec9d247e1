package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/onerpc/endpoint"
)

func runProcessor(t *testing.T, p endpoint.Processor, r *http.Request) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	w := httptest.NewRecorder()
	nextCalled := false
	err := p.Process(w, r, func(w http.ResponseWriter, r *http.Request) error {
		nextCalled = true
		return nil
	})
	return w, nextCalled, err
}

func TestHeadersProcessor_Defaults(t *testing.T) {
	w, nextCalled, err := runProcessor(t, NewHeadersProcessor(), httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !nextCalled {
		t.Fatal("next was not called")
	}

	want := map[string]string{
		"Cache-Control":           "no-store",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s: got %q, want %q", name, got, value)
		}
	}
	for _, name := range []string{"Strict-Transport-Security", "Access-Control-Allow-Origin", "Vary"} {
		if got := w.Header().Get(name); got != "" {
			t.Errorf("%s should not be set, got %q", name, got)
		}
	}
}

func TestHeadersProcessor_Options(t *testing.T) {
	p := NewHeadersProcessor(WithHSTS(600), WithCacheControl(""))
	w, _, err := runProcessor(t, p, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=600; includeSubDomains" {
		t.Errorf("HSTS: got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control should be disabled, got %q", got)
	}
}

func TestHeadersProcessor_CORS(t *testing.T) {
	tests := []struct {
		name        string
		config      CORSConfig
		origin      string
		wantOrigin  string
		wantCreds   string
		wantExposed string
	}{
		{"listed origin", CORSConfig{AllowedOrigins: []string{"https://a.example"}}, "https://a.example", "https://a.example", "", ""},
		{"unlisted origin", CORSConfig{AllowedOrigins: []string{"https://a.example"}}, "https://evil.example", "", "", ""},
		{"wildcard", CORSConfig{AllowedOrigins: []string{"*"}}, "https://b.example", "*", "", ""},
		{"wildcard with credentials", CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, "https://b.example", "", "", ""},
		{"listed with credentials", CORSConfig{AllowedOrigins: []string{"*", "https://c.example"}, AllowCredentials: true}, "https://c.example", "https://c.example", "true", ""},
		{"exposed headers", CORSConfig{AllowedOrigins: []string{"*"}, ExposedHeaders: []string{"X-Request-Id"}}, "https://d.example", "*", "", "X-Request-Id"},
		{"no origin", CORSConfig{AllowedOrigins: []string{"*"}}, "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			w, nextCalled, err := runProcessor(t, NewHeadersProcessor(WithCORS(tt.config)), r)
			if err != nil {
				t.Fatalf("Process returned error: %v", err)
			}
			if !nextCalled {
				t.Fatal("next was not called")
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin: got %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("Allow-Credentials: got %q, want %q", got, tt.wantCreds)
			}
			if got := w.Header().Get("Access-Control-Expose-Headers"); got != tt.wantExposed {
				t.Errorf("Expose-Headers: got %q, want %q", got, tt.wantExposed)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "" {
				t.Errorf("Allow-Methods should only be set on preflight, got %q", got)
			}
		})
	}
}

func TestHeadersProcessor_Preflight(t *testing.T) {
	p := NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"https://a.example"}, MaxAge: 3600}))

	r := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	r.Header.Set("Origin", "https://a.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w, nextCalled, err := runProcessor(t, p, r)
	if nextCalled {
		t.Error("next should not be called for preflight")
	}
	ee, ok := err.(*endpoint.EndpointError)
	if !ok || ee.Status != http.StatusNoContent {
		t.Fatalf("got error %v, want 204 EndpointError", err)
	}

	want := map[string]string{
		"Access-Control-Allow-Origin":  "https://a.example",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Max-Age":       "3600",
		"Vary":                         "Origin",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s: got %q, want %q", name, got, value)
		}
	}
}

func TestHeadersProcessor_PreflightThroughHandler(t *testing.T) {
	called := false
	h := endpoint.Handler(func(w http.ResponseWriter, r *http.Request, _ struct{}) (endpoint.Renderer, error) {
		called = true
		return &endpoint.NoContentRenderer{}, nil
	}, NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"*"}})))

	r := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	r.Header.Set("Origin", "https://a.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if called {
		t.Error("endpoint should not be called for preflight")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("got status %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("got body %q, want empty", w.Body.String())
	}
}
