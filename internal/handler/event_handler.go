package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/daycast/internal/metrics"
	"github.com/hitoshi/daycast/internal/middleware"
	"github.com/hitoshi/daycast/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	Load(ctx context.Context, username string) (model.EventMap, error)
	Save(ctx context.Context, username string, events model.EventMap) (int, error)
	ExportICS(ctx context.Context, username string, stamp time.Time) (string, error)
}

// eventsResponse はGET /events のレスポンス。
type eventsResponse struct {
	Events model.EventMap `json:"events"`
}

// saveEventsRequest はPOST /events のリクエストボディ。
type saveEventsRequest struct {
	User   string         `json:"user"`
	Events model.EventMap `json:"events"`
}

// EventHandler は予定の取得・保存のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewEventHandler はEventHandlerを生成する。collectorがnilの場合は記録しない。
func NewEventHandler(service EventServiceInterface, collector metrics.MetricsCollector) *EventHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &EventHandler{
		service: service,
		metrics: collector,
		now:     time.Now,
	}
}

// ListEvents はユーザーの全予定を返す。未登録ユーザーは空のマップを返す。
// GET /events?user=<username>
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("user"))
	middleware.SetUsername(r.Context(), username)

	events, err := h.service.Load(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// SaveEvents はユーザーの全予定をリクエストの内容で置き換える。
// POST /events
func (h *EventHandler) SaveEvents(w http.ResponseWriter, r *http.Request) {
	var req saveEventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.SetUsername(r.Context(), req.User)

	count, err := h.service.Save(r.Context(), req.User, req.Events)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordEventSave(count)
	writeJSON(w, http.StatusOK, statusResponse{Status: "saved"})
}

// ExportICS はユーザーの全予定をiCalendar形式で返す。
// GET /events/ics?user=<username>
func (h *EventHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("user"))
	middleware.SetUsername(r.Context(), username)

	body, err := h.service.ExportICS(r.Context(), username, h.now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", username+".ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
