package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn    func(ctx context.Context, in auth.RegisterInput) (*model.PublicUser, error)
	loginFn       func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	refreshFn     func(ctx context.Context, presented string) (*auth.RefreshResult, error)
	logoutFn      func(ctx context.Context, userID string) error
	currentUserFn func(ctx context.Context, userID string) (*model.PublicUser, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.PublicUser, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, presented string) (*auth.RefreshResult, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, presented)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, userID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*model.PublicUser, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, nil
}

// --- ヘルパー ---

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), &model.User{ID: userID}))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, resp *http.Response) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

var alicePublic = &model.PublicUser{ID: "user-alice", Name: "Alice", Email: "alice@example.com"}

// --- POST /auth/register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.PublicUser, error) {
			if in.Email != "alice@example.com" || in.Name != "Alice" || in.Password != "secret1" {
				t.Errorf("unexpected input: %+v", in)
			}
			return alicePublic, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		jsonBody(t, map[string]string{"name": "Alice", "email": "alice@example.com", "password": "secret1"}))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var body struct {
		Status string `json:"status"`
		Data   struct {
			User map[string]any `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Status != "success" || body.Data.User["id"] != "user-alice" {
		t.Errorf("unexpected body: %+v", body)
	}
	if _, leaked := body.Data.User["passwordHash"]; leaked {
		t.Error("password hash must not be returned")
	}
	if len(resp.Cookies()) != 0 {
		t.Error("register should not set session cookies")
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		svcErr   error
		status   int
		wantCode string
	}{
		{"不正なJSON", `{"name":`, nil, http.StatusBadRequest, model.ErrCodeValidation},
		{"バリデーションエラー", `{"name":"A","email":"bad","password":"secret1"}`, nil, http.StatusBadRequest, model.ErrCodeValidation},
		{"登録済み", `{"name":"A","email":"a@example.com","password":"secret1"}`, model.NewEmailConflictError(), http.StatusConflict, model.ErrCodeEmailConflict},
		{"内部エラー", `{"name":"A","email":"a@example.com","password":"secret1"}`, errors.New("db down"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.PublicUser, error) {
					return nil, tt.svcErr
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Register(w, req)

			if w.Result().StatusCode != tt.status {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.status)
			}
			if body := decodeError(t, w.Result()); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// --- POST /auth/login ---

func TestAuthHandler_Login_SetsCookies(t *testing.T) {
	tests := []struct {
		name         string
		secure       bool
		wantSameSite http.SameSite
	}{
		{"開発環境はLax", false, http.SameSiteLaxMode},
		{"本番環境はNoneかつSecure", true, http.SameSiteNoneMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
					return &auth.LoginResult{User: alicePublic, AccessToken: "access-1", RefreshToken: "refresh-1"}, nil
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{CookieSecure: tt.secure})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				jsonBody(t, map[string]string{"email": "alice@example.com", "password": "secret1"}))
			w := httptest.NewRecorder()
			h.Login(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}

			access := findCookie(resp, middleware.AccessTokenCookie)
			refresh := findCookie(resp, RefreshTokenCookie)
			if access == nil || refresh == nil {
				t.Fatal("both token cookies should be set")
			}
			if access.Value != "access-1" || refresh.Value != "refresh-1" {
				t.Errorf("cookie values = %q / %q", access.Value, refresh.Value)
			}
			if access.MaxAge != 900 {
				t.Errorf("access MaxAge = %d, want 900", access.MaxAge)
			}
			if refresh.MaxAge != 604800 {
				t.Errorf("refresh MaxAge = %d, want 604800", refresh.MaxAge)
			}
			for _, c := range []*http.Cookie{access, refresh} {
				if !c.HttpOnly {
					t.Errorf("%s should be HttpOnly", c.Name)
				}
				if c.Secure != tt.secure {
					t.Errorf("%s Secure = %v, want %v", c.Name, c.Secure, tt.secure)
				}
				if c.SameSite != tt.wantSameSite {
					t.Errorf("%s SameSite = %v, want %v", c.Name, c.SameSite, tt.wantSameSite)
				}
				if c.Path != "/" {
					t.Errorf("%s Path = %q, want /", c.Name, c.Path)
				}
			}
		})
	}
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name   string
		svcErr error
		status int
	}{
		{"ユーザーなし", model.NewUserNotFoundError(), http.StatusNotFound},
		{"パスワード不一致", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
					return nil, tt.svcErr
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				jsonBody(t, map[string]string{"email": "alice@example.com", "password": "secret1"}))
			w := httptest.NewRecorder()
			h.Login(w, req)

			if w.Result().StatusCode != tt.status {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.status)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("failed login should not set cookies")
			}
		})
	}
}

// --- POST /auth/refresh ---

func TestAuthHandler_Refresh(t *testing.T) {
	tests := []struct {
		name            string
		cookie          string
		rotated         string
		wantRefreshSent bool
	}{
		{"ローテーションなし", "refresh-1", "", false},
		{"ローテーションあり", "refresh-1", "refresh-2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				refreshFn: func(ctx context.Context, presented string) (*auth.RefreshResult, error) {
					if presented != tt.cookie {
						t.Errorf("presented = %q, want %q", presented, tt.cookie)
					}
					return &auth.RefreshResult{AccessToken: "access-2", RefreshToken: tt.rotated}, nil
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
			req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: tt.cookie})
			w := httptest.NewRecorder()
			h.Refresh(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			if c := findCookie(resp, middleware.AccessTokenCookie); c == nil || c.Value != "access-2" {
				t.Errorf("access cookie = %+v", c)
			}
			if got := findCookie(resp, RefreshTokenCookie) != nil; got != tt.wantRefreshSent {
				t.Errorf("refresh cookie set = %v, want %v", got, tt.wantRefreshSent)
			}
		})
	}
}

func TestAuthHandler_Refresh_MissingCookie(t *testing.T) {
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, presented string) (*auth.RefreshResult, error) {
			if presented != "" {
				t.Errorf("presented = %q, want empty", presented)
			}
			return nil, model.NewUnauthenticatedError()
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Refresh(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- POST /auth/logout ---

func TestAuthHandler_Logout_ClearsCookies(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID string) error {
			loggedOut = userID
			return nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), "user-alice")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if loggedOut != "user-alice" {
		t.Errorf("logout userID = %q", loggedOut)
	}
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := findCookie(resp, name)
		if c == nil || c.MaxAge >= 0 || c.Value != "" {
			t.Errorf("%s should be cleared, got %+v", name, c)
		}
	}
}

func TestAuthHandler_Logout_WithoutIdentity(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Logout_UserGone(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID string) error {
			return model.NewUserNotFoundError()
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Logout(w, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), "user-gone"))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// --- GET /auth/me ---

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, userID string) (*model.PublicUser, error) {
			if userID != "user-alice" {
				t.Errorf("userID = %q", userID)
			}
			return alicePublic, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Me(w, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), "user-alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	var body struct {
		Data struct {
			User model.PublicUser `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Data.User != *alicePublic {
		t.Errorf("user = %+v", body.Data.User)
	}
}
