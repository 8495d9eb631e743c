package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// maxBodyBytes はリクエストボディの上限（1 MiB）。
const maxBodyBytes = 1 << 20

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIError以外は内部エラーとして扱い、詳細はログにのみ残す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == model.KindInternal {
			slog.Error("internal server error",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// writeValidationError はフィールド単位の詳細付きで400を返す。
func writeValidationError(w http.ResponseWriter, details []model.FieldError) {
	middleware.WriteAPIError(w, model.NewValidationError(details))
}

// requireUserID は認証済みユーザーIDを取得する。
// 認証ミドルウェアの外で呼ばれた場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}

// decodeJSON はボディをdstにデコードする。未知のフィールドは無視する。
// 失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "Invalid JSON body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "Request body too large"
		}
		writeValidationError(w, []model.FieldError{{Field: "body", Message: msg}})
		return false
	}
	return true
}
