package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/stockpick/internal/api/response"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		headers map[string]string
		want    int
	}{
		{"valid header", "secret-key", map[string]string{"X-API-Key": "secret-key"}, http.StatusOK},
		{"valid bearer", "secret-key", map[string]string{"Authorization": "Bearer secret-key"}, http.StatusOK},
		{"lowercase bearer", "secret-key", map[string]string{"Authorization": "bearer secret-key"}, http.StatusOK},
		{"missing", "secret-key", nil, http.StatusUnauthorized},
		{"wrong", "secret-key", map[string]string{"X-API-Key": "wrong-key"}, http.StatusUnauthorized},
		{"basic scheme", "secret-key", map[string]string{"Authorization": "Basic secret-key"}, http.StatusUnauthorized},
		{"disabled", "", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/runs", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			APIKeyAuth(tt.key)(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAPIKeyAuth_ErrorBody(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	APIKeyAuth("secret-key")(okHandler()).ServeHTTP(w, req)

	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %s", resp.Error.Code)
	}
}
