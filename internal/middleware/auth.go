// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/token"
)

// AccessTokenCookie はアクセストークンを保持するCookieの名前。
const AccessTokenCookie = "accessToken"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// ErrNoUserInContext は認証ミドルウェアを通過していないコンテキストを表す。
var ErrNoUserInContext = errors.New("user not found in context")

// AccessTokenVerifier はアクセストークンの検証に必要なインターフェース。
type AccessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (*token.Claims, error)
}

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAuthMiddleware はCookieのアクセストークンを検証し、
// 解決したユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 検証に失敗したリクエストには401を返し、後続のハンドラーを呼ばない。
func NewAuthMiddleware(verifier AccessTokenVerifier, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからアクセストークンを取得
			cookie, err := r.Cookie(AccessTokenCookie)
			if err != nil || cookie.Value == "" {
				WriteAPIError(w, model.NewUnauthenticatedError())
				return
			}

			// 2. 署名と有効期限を検証
			claims, err := verifier.VerifyAccessToken(cookie.Value)
			if err != nil {
				WriteAPIError(w, model.NewInvalidTokenError())
				return
			}

			// 3. ユーザーが現存することを確認
			user, err := users.FindByID(r.Context(), claims.UserID())
			if err != nil {
				slog.Error("failed to find user",
					slog.String("user_id", claims.UserID()),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteAPIError(w, model.NewInvalidTokenError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成でも使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	// 外側のロギングミドルウェアにユーザーIDを伝える
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", ErrNoUserInContext
	}
	return user.ID, nil
}
