// Package auth はアカウントの登録・ログイン・パスワード変更とパスワードハッシュを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/repository"
)

// アカウントサービスが受け付けるaction。
const (
	ActionSignup         = "signup"
	ActionLogin          = "login"
	ActionChangePassword = "changePassword"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultCost
	}
	return &Service{
		userRepo: userRepo,
		config:   config,
		now:      time.Now,
	}
}

// Signup はユーザーを新規登録する。
// ユーザー名またはパスワードが空の場合、ユーザーが既に存在する場合はvalidationエラーを返す。
// 予定の保存だけで作られた資格情報なしのユーザーは既存扱いにせず、そのレコードと予定を引き継ぐ。
func (s *Service) Signup(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if missing := missingFields(map[string]string{"username": username, "password": password}); len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}
	if utf8.RuneCountInString(username) > model.MaxUsernameLength {
		return model.NewInvalidPayloadError(fmt.Sprintf("username must be at most %d characters", model.MaxUsernameLength))
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil && existing.HasCredential() {
		return model.NewUserExistsError(username)
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return err
	}

	now := s.now()
	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return model.NewUserExistsError(username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up", slog.String("username", username))
	return nil
}

// Login は資格情報を検証する。
// ユーザーが存在しない場合とパスワードが一致しない場合は区別せずauthエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if missing := missingFields(map[string]string{"username": username, "password": password}); len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}

	if _, err := s.verify(ctx, username, password); err != nil {
		return err
	}

	slog.Info("user logged in", slog.String("username", username))
	return nil
}

// ChangePassword は現在のパスワードを検証した上で新しいパスワードに変更する。
func (s *Service) ChangePassword(ctx context.Context, username, password, newPassword string) error {
	username = strings.TrimSpace(username)
	if missing := missingFields(map[string]string{
		"username":    username,
		"password":    password,
		"newPassword": newPassword,
	}); len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}

	user, err := s.verify(ctx, username, password)
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.Username, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.String("username", username))
	return nil
}

// verify はユーザーを取得してパスワードを照合する。
func (s *Service) verify(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}
	return user, nil
}

// missingFields は空の項目名を固定順で返す。
func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range []string{"username", "password", "newPassword"} {
		if v, ok := fields[name]; ok && v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
