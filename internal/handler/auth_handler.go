// Package handler はアカウントサービスとイベントサービスのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/daycast/internal/auth"
	"github.com/hitoshi/daycast/internal/metrics"
	"github.com/hitoshi/daycast/internal/middleware"
	"github.com/hitoshi/daycast/internal/model"
)

// AccountServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Signup(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, password, newPassword string) error
}

// authRequest はPOST /auth のリクエストボディ。
type authRequest struct {
	Action      string `json:"action"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

// AuthHandler はアカウント操作のHTTPハンドラー。
type AuthHandler struct {
	service AccountServiceInterface
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。collectorがnilの場合は記録しない。
func NewAuthHandler(service AccountServiceInterface, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuthHandler{
		service: service,
		metrics: collector,
	}
}

// Handle はactionに応じてsignup・login・changePasswordを処理する。
// POST /auth
func (h *AuthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		methodNotAllowed(w, r)
		return
	}

	var req authRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.RecordAuthRequest("unknown", metrics.ResultRejected)
		handleServiceError(w, err)
		return
	}

	if req.Username != "" {
		middleware.SetUsername(r.Context(), req.Username)
	}

	var err error
	switch req.Action {
	case auth.ActionSignup:
		err = h.service.Signup(r.Context(), req.Username, req.Password)
	case auth.ActionLogin:
		err = h.service.Login(r.Context(), req.Username, req.Password)
	case auth.ActionChangePassword:
		err = h.service.ChangePassword(r.Context(), req.Username, req.Password, req.NewPassword)
	default:
		h.metrics.RecordAuthRequest("unknown", metrics.ResultRejected)
		handleServiceError(w, model.NewInvalidActionError(req.Action))
		return
	}

	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			h.metrics.RecordAuthRequest(req.Action, metrics.ResultRejected)
		} else {
			h.metrics.RecordAuthRequest(req.Action, metrics.ResultError)
		}
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthRequest(req.Action, metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
