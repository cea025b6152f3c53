package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/daycast/internal/model"
)

// ErrorCodeHeader はエラーコードを返すレスポンスヘッダー。
// ボディは {"error": "..."} の形式に固定し、機械判定用のコードはヘッダーで返す。
const ErrorCodeHeader = "X-Error-Code"

// ErrorResponseBody はAPIエラーレスポンスのボディ。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// WriteErrorResponse はエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(ErrorCodeHeader, apiErr.Code)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{Error: apiErr.Message})
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
