// Package session はダッシュボードクライアントの認証状態を管理する。
// リモートのアカウントサービスを優先し、到達できない場合のみローカルの資格情報で認証する。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/daycast/internal/auth"
	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/storage"
)

// State は認証状態。
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Accounts はリモートのアカウントサービス。*storage.AccountClient が満たす。
type Accounts interface {
	Signup(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, password, newPassword string) error
}

// SessionStore はログイン状態の記録先。*storage.Preferences が満たす。
type SessionStore interface {
	Session(ctx context.Context) (*storage.SessionMarker, error)
	SetSession(ctx context.Context, username string) error
	ClearSession(ctx context.Context) error
}

// Options はControllerの依存関係。
type Options struct {
	Adapter storage.Adapter
	// Accounts がnilの場合はローカルの資格情報のみで認証する。
	Accounts   Accounts
	Sessions   SessionStore
	Store      *calendar.Store
	Logger     *slog.Logger
	BcryptCost int
	// OnAuthenticated は認証完了のたびに呼ばれる。
	// loadedは保存済みの予定を読み込めたかどうか。
	OnAuthenticated func(ctx context.Context, username string, loaded bool)
}

// Controller は認証の状態機械。
// 状態遷移はopMuで直列化し、状態の参照はmuで保護する。
type Controller struct {
	opts Options

	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	user        string
	users       map[string]model.UserRecord
	usersLoaded bool
}

// New はControllerを生成する。初期状態はAnonymous。
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = auth.DefaultCost
	}
	return &Controller{opts: opts, state: Anonymous}
}

// State は現在の状態を返す。
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CurrentUser はログイン中のユーザー名を返す。未ログインの場合は空文字列。
func (c *Controller) CurrentUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Login は資格情報を検証してログインする。
// リモートの401/400は確定とし、ErrUnavailableの場合のみローカルの資格情報と照合する。
func (c *Controller) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if missing := missing(map[string]string{"username": username, "password": password}); len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	restore := c.begin()
	err := c.remoteOrLocal(ctx, "login", username,
		func(a Accounts) error { return a.Login(ctx, username, password) },
		func() error { return c.localLogin(ctx, username, password) },
	)
	if err == nil {
		c.remember(username, password)
		err = c.complete(ctx, username)
	}
	if err != nil {
		restore()
		return err
	}
	return nil
}

// Signup はアカウントを登録してログインする。
func (c *Controller) Signup(ctx context.Context, username, password, confirm string) error {
	username = strings.TrimSpace(username)
	if missing := missing(map[string]string{"username": username, "password": password, "confirm": confirm}); len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}
	if password != confirm {
		return model.NewPasswordMismatchError()
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	restore := c.begin()
	err := c.remoteOrLocal(ctx, "signup", username,
		func(a Accounts) error { return a.Signup(ctx, username, password) },
		func() error { return c.localSignup(ctx, username, password) },
	)
	if err == nil {
		c.remember(username, password)
		err = c.complete(ctx, username)
	}
	if err != nil {
		restore()
		return err
	}
	return nil
}

// ResetPassword は現在のパスワードを検証して新しいパスワードに変更する。
// 認証状態は変更しない。
func (c *Controller) ResetPassword(ctx context.Context, username, current, newPassword, confirm string) error {
	username = strings.TrimSpace(username)
	if missing := missing(map[string]string{
		"username":    username,
		"password":    current,
		"newPassword": newPassword,
		"confirm":     confirm,
	}); len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}
	if newPassword != confirm {
		return model.NewPasswordMismatchError()
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.remoteOrLocal(ctx, "changePassword", username,
		func(a Accounts) error { return a.ChangePassword(ctx, username, current, newPassword) },
		func() error { return c.localChangePassword(ctx, username, current, newPassword) },
	)
	if err != nil {
		return err
	}
	c.remember(username, newPassword)
	c.opts.Logger.Info("password reset", slog.String("username", username))
	return nil
}

// Logout はセッションの記録とストアを破棄してAnonymousに戻る。
func (c *Controller) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	username := c.CurrentUser()
	c.opts.Store.Clear()

	c.mu.Lock()
	c.state = Anonymous
	c.user = ""
	c.mu.Unlock()

	if err := c.opts.Sessions.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	c.opts.Logger.Info("user logged out", slog.String("username", username))
	return nil
}

// Restore は保存済みのセッションがあればそのユーザーで認証済み状態に戻す。
// 復元した場合はtrueを返す。
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	marker, err := c.opts.Sessions.Session(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	if marker == nil {
		return false, nil
	}

	restore := c.begin()
	if err := c.complete(ctx, marker.Username); err != nil {
		restore()
		return false, err
	}
	return true, nil
}

// begin はAuthenticatingに遷移し、失敗時に元の状態へ戻す関数を返す。
func (c *Controller) begin() func() {
	c.mu.Lock()
	prevState, prevUser := c.state, c.user
	c.state = Authenticating
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.state, c.user = prevState, prevUser
		c.mu.Unlock()
	}
}

// remoteOrLocal はリモートの操作を試み、到達できない場合のみローカルの操作を行う。
func (c *Controller) remoteOrLocal(ctx context.Context, action, username string, remote func(Accounts) error, local func() error) error {
	if c.opts.Accounts == nil {
		return local()
	}

	err := remote(c.opts.Accounts)
	if err == nil || !errors.Is(err, storage.ErrUnavailable) {
		return err
	}

	c.opts.Logger.Warn("remote auth unavailable, falling back to local credentials",
		slog.String("error", err.Error()),
		slog.String("username", username),
		slog.String("resource", action),
	)
	return local()
}

// complete は認証成功後の共通処理を行う。
// ストアを空にしてユーザーの予定を読み込み、基準として保存し直してからセッションを記録する。
// 読み込みに失敗した場合は保存先を空のストアで上書きしないよう、基準の保存を行わない。
func (c *Controller) complete(ctx context.Context, username string) error {
	store := c.opts.Store
	store.Clear()

	loaded := true
	if err := c.opts.Adapter.LoadEvents(ctx, username, store); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		loaded = false
		c.opts.Logger.Warn("failed to load events, skipping baseline save",
			slog.String("error", err.Error()),
			slog.String("username", username),
			slog.String("resource", "events"),
		)
	}
	if loaded {
		if err := c.opts.Adapter.SaveEvents(ctx, username, store.Snapshot()); err != nil {
			c.opts.Logger.Warn("failed to save baseline events",
				slog.String("error", err.Error()),
				slog.String("username", username),
				slog.String("resource", "events"),
			)
		}
	}
	if err := c.opts.Sessions.SetSession(ctx, username); err != nil {
		c.opts.Logger.Warn("failed to persist session",
			slog.String("error", err.Error()),
			slog.String("username", username),
			slog.String("resource", "session"),
		)
	}

	c.mu.Lock()
	c.state = Authenticated
	c.user = username
	c.mu.Unlock()

	c.opts.Logger.Info("user authenticated",
		slog.String("username", username),
		slog.String("mode", string(c.opts.Adapter.Mode())),
	)
	if c.opts.OnAuthenticated != nil {
		c.opts.OnAuthenticated(ctx, username, loaded)
	}
	return nil
}
