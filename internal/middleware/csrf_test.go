package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskman/internal/model"
)

// serveCSRF はCSRFミドルウェア越しにリクエストを処理し、後続ハンドラーが呼ばれたかを返す。
func serveCSRF(config CSRFConfig, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := NewCSRFMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, called
}

func csrfCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == csrfCookieName {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethodsPassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			w, called := serveCSRF(CSRFConfig{}, httptest.NewRequest(method, "/api/v1/tasks/get", nil))

			if !called {
				t.Fatalf("handler should have been called for %s", method)
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCSRFMiddleware_StateChangingRequests(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		cookie     string
		header     string
		wantCalled bool
	}{
		{"POST Cookieなし", http.MethodPost, "", "", false},
		{"POST ヘッダーなし", http.MethodPost, "token-abc", "", false},
		{"POST 不一致", http.MethodPost, "token-abc", "wrong-token", false},
		{"POST 一致", http.MethodPost, "valid-token", "valid-token", true},
		{"PUT 一致", http.MethodPut, "valid-token", "valid-token", true},
		{"PATCH トークンなし", http.MethodPatch, "", "", false},
		{"PATCH 一致", http.MethodPatch, "valid-token", "valid-token", true},
		{"DELETE トークンなし", http.MethodDelete, "", "", false},
		{"DELETE 一致", http.MethodDelete, "valid-token", "valid-token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/tasks/task-1", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}

			w, called := serveCSRF(CSRFConfig{}, req)

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled {
				return
			}
			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != model.ErrCodeCSRF {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRF)
			}
		})
	}
}

func TestCSRFMiddleware_GETIssuesCookie(t *testing.T) {
	tests := []struct {
		name         string
		config       CSRFConfig
		wantSameSite http.SameSite
	}{
		{"開発環境", CSRFConfig{CookieDomain: "example.com"}, http.SameSiteLaxMode},
		{"本番環境", CSRFConfig{CookieSecure: true, CookieDomain: "example.com"}, http.SameSiteNoneMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := serveCSRF(tt.config, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

			c := csrfCookieFrom(w.Result())
			if c == nil {
				t.Fatal("expected CSRF cookie to be set on GET request")
			}
			if c.Value == "" {
				t.Error("CSRF cookie value should not be empty")
			}
			// フロントエンドがJavaScriptで読み取るためHttpOnlyではない
			if c.HttpOnly {
				t.Error("CSRF cookie should not be HttpOnly")
			}
			if c.Secure != tt.config.CookieSecure {
				t.Errorf("Secure = %v, want %v", c.Secure, tt.config.CookieSecure)
			}
			if c.SameSite != tt.wantSameSite {
				t.Errorf("SameSite = %v, want %v", c.SameSite, tt.wantSameSite)
			}
			if c.Path != "/" {
				t.Errorf("Path = %q, want /", c.Path)
			}
		})
	}
}

func TestCSRFMiddleware_GETKeepsExistingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})

	w, _ := serveCSRF(CSRFConfig{}, req)

	if c := csrfCookieFrom(w.Result()); c != nil {
		t.Errorf("CSRF cookie should not be re-set when already present, got %q", c.Value)
	}
}

type csrfTokenBody struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

func TestCSRFTokenHandler(t *testing.T) {
	tests := []struct {
		name       string
		existing   string
		wantCookie bool
	}{
		{"新規発行", "", true},
		{"既存トークンを返す", "existing-csrf-token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
			if tt.existing != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.existing})
			}
			w := httptest.NewRecorder()

			NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body csrfTokenBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Status != "success" || body.Data.Token == "" {
				t.Fatalf("unexpected body: %+v", body)
			}

			c := csrfCookieFrom(resp)
			if tt.wantCookie {
				if c == nil || c.Value != body.Data.Token {
					t.Errorf("cookie = %+v, should carry token %q", c, body.Data.Token)
				}
				return
			}
			if c != nil {
				t.Error("existing cookie should not be replaced")
			}
			if body.Data.Token != tt.existing {
				t.Errorf("token = %q, want %q", body.Data.Token, tt.existing)
			}
		})
	}
}
