package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/daycast/internal/auth"
	"github.com/hitoshi/daycast/internal/model"
)

// loadUsers はローカルの資格情報マップを初回のみアダプターから読み込む。
// 呼び出し側はopMuを保持していること。
func (c *Controller) loadUsers(ctx context.Context) (map[string]model.UserRecord, error) {
	if c.usersLoaded {
		return c.users, nil
	}
	users, err := c.opts.Adapter.LoadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	if c.users == nil {
		c.users = make(map[string]model.UserRecord, len(users))
	}
	for name, rec := range users {
		c.users[name] = rec
	}
	c.usersLoaded = true
	return c.users, nil
}

func (c *Controller) saveUsers(ctx context.Context) error {
	if err := c.opts.Adapter.SaveUsers(ctx, c.users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

func (c *Controller) localLogin(ctx context.Context, username, password string) error {
	users, err := c.loadUsers(ctx)
	if err != nil {
		return err
	}
	rec, ok := users[username]
	if !ok || !auth.CheckPassword(rec.Password, password) {
		return model.NewInvalidCredentialsError()
	}
	return nil
}

func (c *Controller) localSignup(ctx context.Context, username, password string) error {
	users, err := c.loadUsers(ctx)
	if err != nil {
		return err
	}
	if _, exists := users[username]; exists {
		return model.NewUserExistsError(username)
	}

	hash, err := auth.HashPassword(password, c.opts.BcryptCost)
	if err != nil {
		return err
	}
	users[username] = model.UserRecord{Username: username, Password: hash}
	if err := c.saveUsers(ctx); err != nil {
		delete(users, username)
		return err
	}
	c.opts.Logger.Info("local user created", slog.String("username", username))
	return nil
}

func (c *Controller) localChangePassword(ctx context.Context, username, current, newPassword string) error {
	if err := c.localLogin(ctx, username, current); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, c.opts.BcryptCost)
	if err != nil {
		return err
	}
	prev := c.users[username]
	c.users[username] = model.UserRecord{Username: username, Password: hash}
	if err := c.saveUsers(ctx); err != nil {
		c.users[username] = prev
		return err
	}
	return nil
}

// remember はリモートで検証済みの資格情報をプロセス内のマップに保持する。
// リモートモードではSaveUsersが何もしないため、永続化はされない。
func (c *Controller) remember(username, password string) {
	if c.opts.Accounts == nil {
		return
	}
	if _, err := c.loadUsers(context.Background()); err != nil {
		return
	}
	if rec, ok := c.users[username]; ok && auth.CheckPassword(rec.Password, password) {
		return
	}
	hash, err := auth.HashPassword(password, c.opts.BcryptCost)
	if err != nil {
		return
	}
	c.users[username] = model.UserRecord{Username: username, Password: hash}
}

// missing は空の項目名を固定順で返す。
func missing(fields map[string]string) []string {
	var out []string
	for _, name := range []string{"username", "password", "newPassword", "confirm"} {
		if v, ok := fields[name]; ok && v == "" {
			out = append(out, name)
		}
	}
	return out
}
