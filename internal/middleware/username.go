// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"sync"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// requestUserContextKey はリクエストコンテキストにユーザー名の格納先を置くためのキー。
var requestUserContextKey = contextKey("request_user")

// requestUser はハンドラーがリクエストボディから判明したユーザー名を書き戻す格納先。
// アクセスログはハンドラー完了後に読み出す。
type requestUser struct {
	mu       sync.Mutex
	username string
}

// withRequestUser はユーザー名の格納先をコンテキストに注入する。
func withRequestUser(ctx context.Context) (context.Context, *requestUser) {
	holder := &requestUser{}
	return context.WithValue(ctx, requestUserContextKey, holder), holder
}

// SetUsername は処理中のリクエストのユーザー名を記録する。
// ロギングミドルウェアの外側で呼ばれた場合は何もしない。
func SetUsername(ctx context.Context, username string) {
	holder, ok := ctx.Value(requestUserContextKey).(*requestUser)
	if !ok || holder == nil {
		return
	}
	holder.mu.Lock()
	holder.username = username
	holder.mu.Unlock()
}

// UsernameFromContext はSetUsernameで記録されたユーザー名を取得する。
func UsernameFromContext(ctx context.Context) (string, error) {
	holder, ok := ctx.Value(requestUserContextKey).(*requestUser)
	if !ok || holder == nil {
		return "", fmt.Errorf("username not found in context")
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	if holder.username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return holder.username, nil
}
