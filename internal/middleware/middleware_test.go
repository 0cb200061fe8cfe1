package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/favorites/550":                                         "/api/v1/favorites/:id",
		"/api/v1/sessions/0b6f4c1e-8c8a-4a57-9a7f-3f1f2a9b6c11/advance": "/api/v1/sessions/:id/advance",
		"/api/v1/genres":                                                "/api/v1/genres",
		"/api/v1/sessions/not-a-uuid":                                   "/api/v1/sessions/not-a-uuid",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func newAuthRouter(key string) *gin.Engine {
	r := gin.New()
	r.Use(AdminAuth(key))
	r.GET("/admin", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAdminAuth(t *testing.T) {
	cases := []struct {
		name   string
		key    string
		header string
		query  string
		want   int
	}{
		{"disabled", "", "", "", http.StatusOK},
		{"missing", "secret", "", "", http.StatusUnauthorized},
		{"bearer", "secret", "Bearer secret", "", http.StatusOK},
		{"apikey prefix", "secret", "ApiKey secret", "", http.StatusOK},
		{"query param", "secret", "", "secret", http.StatusOK},
		{"wrong", "secret", "Bearer nope", "", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/admin"
			if tc.query != "" {
				target += "?api_key=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			newAuthRouter(tc.key).ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestMetrics_NilDisabled(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/api/v1/genres", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/genres", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	preflight := func(r *gin.Engine, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/favorites/events", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "Last-Event-ID")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	newRouter := func(origins []string) *gin.Engine {
		r := gin.New()
		r.Use(CORS(origins))
		r.GET("/api/v1/favorites/events", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	open := preflight(newRouter(nil), "http://anywhere.test")
	if got := open.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected any origin allowed, got %q", got)
	}

	restricted := newRouter([]string{"https://popcorn.test"})
	w := preflight(restricted, "https://popcorn.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://popcorn.test" {
		t.Fatalf("expected configured origin echoed, got %q", got)
	}
	w = preflight(restricted, "https://evil.test")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected unknown origin rejected, got %d", w.Code)
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Logging())
	r.GET("/api/v1/favorites/:id", func(c *gin.Context) { c.String(http.StatusTeapot, "short and stout") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/favorites/42?x=1", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "short and stout" {
		t.Fatalf("logging must not alter the response, got %d %q", w.Code, w.Body.String())
	}
}
