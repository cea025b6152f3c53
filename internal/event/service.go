// Package event はユーザーごとの予定の読み込み・保存・iCalendar出力を提供する。
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/repository"
	"github.com/hitoshi/daycast/internal/security"
)

// EventService は予定の永続化を扱うサービス層。
// 保存は常にユーザーの全予定の置換であり、差分の統合は行わない。
type EventService struct {
	repo      repository.EventRepository
	sanitizer security.TitleSanitizer
}

// NewEventService はEventServiceの新しいインスタンスを生成する。
func NewEventService(repo repository.EventRepository, sanitizer security.TitleSanitizer) *EventService {
	return &EventService{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// Load はユーザーの全予定を返す。未登録のユーザーは空のマップとなる。
// 色が未指定の予定には既定のアクセントカラーを設定する。
func (s *EventService) Load(ctx context.Context, username string) (model.EventMap, error) {
	username, err := checkUsername(username)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	if events == nil {
		events = model.EventMap{}
	}

	for key, list := range events {
		for i := range list {
			list[i] = list[i].WithDefaults()
		}
		events[key] = list
	}
	return events, nil
}

// Save はユーザーの予定をeventsで置き換え、保存した件数を返す。
// 日付キーと時刻を検証し、タイトルはプレーンテキストに正規化する。
// IDのない予定と同一ユーザー内で重複したIDの予定には新しいIDを採番する。
func (s *EventService) Save(ctx context.Context, username string, events model.EventMap) (int, error) {
	username, err := checkUsername(username)
	if err != nil {
		return 0, err
	}

	cleaned, err := s.normalize(events)
	if err != nil {
		return 0, err
	}

	if err := s.repo.ReplaceForUser(ctx, username, cleaned); err != nil {
		return 0, fmt.Errorf("予定の保存に失敗しました: %w", err)
	}

	count := cleaned.Count()
	slog.Info("events saved",
		slog.String("username", username),
		slog.Int("event_count", count),
		slog.Int("date_count", len(cleaned)),
	)
	return count, nil
}

// checkUsername は前後の空白を除いたユーザー名を返す。空または列に収まらない長さはエラー。
func checkUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", model.NewMissingFieldsError("user")
	}
	if utf8.RuneCountInString(username) > model.MaxUsernameLength {
		return "", model.NewInvalidPayloadError(fmt.Sprintf("user must be at most %d characters", model.MaxUsernameLength))
	}
	return username, nil
}

// normalize は保存前の検証と正規化を行う。空の日付キーは取り除く。
func (s *EventService) normalize(events model.EventMap) (model.EventMap, error) {
	out := make(model.EventMap, len(events))
	seen := make(map[string]bool)

	for key, list := range events {
		if !calendar.IsValidDateKey(key) {
			return nil, model.NewInvalidDateKeyError(key)
		}
		if len(list) == 0 {
			continue
		}

		bucket := make([]model.Event, 0, len(list))
		for _, e := range list {
			e.Title = s.sanitizer.Sanitize(e.Title)
			if e.Title == "" {
				return nil, model.NewEmptyTitleError()
			}

			for _, t := range []*string{&e.Start, &e.End} {
				if *t == "" {
					continue
				}
				normalized, err := calendar.NormalizeTime(*t)
				if err != nil {
					return nil, err
				}
				*t = normalized
			}

			if utf8.RuneCountInString(e.ID) > model.MaxEventIDLength {
				return nil, model.NewInvalidPayloadError(fmt.Sprintf("event id must be at most %d characters", model.MaxEventIDLength))
			}
			if utf8.RuneCountInString(e.Color) > model.MaxEventColorLength {
				return nil, model.NewInvalidPayloadError(fmt.Sprintf("color must be at most %d characters", model.MaxEventColorLength))
			}

			if e.ID == "" || seen[e.ID] {
				e.ID = uuid.New().String()
			}
			seen[e.ID] = true
			bucket = append(bucket, e)
		}
		out[key] = bucket
	}
	return out, nil
}
