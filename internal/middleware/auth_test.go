package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_EmptyPasswordDisables(t *testing.T) {
	h := Auth("")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/violations", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	h := Auth("secret")(okHandler())

	tests := []struct {
		name   string
		path   string
		cookie string
		status int
	}{
		{"login page is public", "/login", "", http.StatusOK},
		{"login endpoint is public", "/auth/login", "", http.StatusOK},
		{"camera stream is public", "/ws/recognition", "", http.StatusOK},
		{"assets are public", "/css/site.css", "", http.StatusOK},
		{"api without cookie", "/api/violations", "", http.StatusUnauthorized},
		{"page without cookie", "/violations", "", http.StatusSeeOther},
		{"api with wrong cookie", "/api/settings", "false", http.StatusUnauthorized},
		{"api with cookie", "/api/settings", "true", http.StatusOK},
		{"page with cookie", "/", "true", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusSeeOther && rec.Header().Get("Location") != "/login" {
				t.Errorf("Expected redirect to /login, got %q", rec.Header().Get("Location"))
			}
		})
	}
}
