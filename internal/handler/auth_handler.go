// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/token"
)

// RefreshTokenCookie はリフレッシュトークンを保持するCookieの名前。
const RefreshTokenCookie = "refreshToken"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.PublicUser, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, presented string) (*auth.RefreshResult, error)
	Logout(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (*model.PublicUser, error)
}

var _ AuthServiceInterface = (*auth.Service)(nil)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	// CookieSecure が有効な場合はSecure属性とSameSite=Noneを付与する（本番環境）。
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type userData struct {
	User *model.PublicUser `json:"user"`
}

// Register はユーザーを登録する。
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, errs := validateRegister(req)
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", userData{User: user})
}

// Login は認証し、アクセストークンとリフレッシュトークンをCookieに設定する。
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, errs := validateLogin(req)
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	result, err := h.service.Login(r.Context(), email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookie(w, middleware.AccessTokenCookie, result.AccessToken, int(token.AccessTokenTTL.Seconds()))
	h.setTokenCookie(w, RefreshTokenCookie, result.RefreshToken, int(token.RefreshTokenTTL.Seconds()))

	writeSuccess(w, http.StatusOK, "Login successful", userData{User: result.User})
}

// Refresh はリフレッシュトークンCookieから新しいアクセストークンを発行する。
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var presented string
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}

	result, err := h.service.Refresh(r.Context(), presented)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookie(w, middleware.AccessTokenCookie, result.AccessToken, int(token.AccessTokenTTL.Seconds()))
	// ローテーション有効時のみ
	if result.RefreshToken != "" {
		h.setTokenCookie(w, RefreshTokenCookie, result.RefreshToken, int(token.RefreshTokenTTL.Seconds()))
	}

	writeSuccess(w, http.StatusOK, "Token refreshed", nil)
}

// Logout はリフレッシュトークンを破棄し、両方のCookieをクリアする。
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	// ログアウト失敗してもCookieはクリアする
	h.clearTokenCookie(w, middleware.AccessTokenCookie)
	h.clearTokenCookie(w, RefreshTokenCookie)

	if err := h.service.Logout(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", userData{User: user})
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, h.tokenCookie(name, value, maxAge))
}

func (h *AuthHandler) clearTokenCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, h.tokenCookie(name, "", -1))
}

// tokenCookie はHttpOnlyのトークンCookieを生成する。
// 本番ではクロスサイトのフロントエンドから送信できるようSameSite=Noneにする。
func (h *AuthHandler) tokenCookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.config.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: sameSite,
	}
}
