package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/daycast/internal/model"
)

// errorCodeHeader はサーバーがエラーコードを返すヘッダー。
const errorCodeHeader = "X-Error-Code"

// maxResponseBytes はレスポンスボディの読み取り上限。
const maxResponseBytes = 4 << 20

// AccountClient はアカウントサービス（/auth）と予定サービス（/events）のHTTPクライアント。
// 400/401/405/429の応答はAPIErrorとして返し、それ以外の失敗はErrUnavailableでラップする。
type AccountClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAccountClient はAccountClientを生成する。
func NewAccountClient(baseURL string, httpClient *http.Client) *AccountClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AccountClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type authPayload struct {
	Action      string `json:"action"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
}

type statusBody struct {
	Status string `json:"status"`
}

type errorBody struct {
	Error string `json:"error"`
}

type eventsBody struct {
	Events model.EventMap `json:"events"`
}

type saveEventsBody struct {
	User   string         `json:"user"`
	Events model.EventMap `json:"events"`
}

// Signup はアカウントを登録する。
func (c *AccountClient) Signup(ctx context.Context, username, password string) error {
	return c.auth(ctx, authPayload{Action: "signup", Username: username, Password: password})
}

// Login は資格情報を検証する。
func (c *AccountClient) Login(ctx context.Context, username, password string) error {
	return c.auth(ctx, authPayload{Action: "login", Username: username, Password: password})
}

// ChangePassword は現在のパスワードを検証してから新しいパスワードに変更する。
func (c *AccountClient) ChangePassword(ctx context.Context, username, password, newPassword string) error {
	return c.auth(ctx, authPayload{
		Action:      "changePassword",
		Username:    username,
		Password:    password,
		NewPassword: newPassword,
	})
}

func (c *AccountClient) auth(ctx context.Context, payload authPayload) error {
	var body statusBody
	if err := c.do(ctx, http.MethodPost, "/auth", payload, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("%w: unexpected auth status %q", ErrUnavailable, body.Status)
	}
	return nil
}

// FetchEvents はユーザーの全予定を取得する。
func (c *AccountClient) FetchEvents(ctx context.Context, username string) (model.EventMap, error) {
	var body eventsBody
	if err := c.do(ctx, http.MethodGet, "/events?user="+url.QueryEscape(username), nil, &body); err != nil {
		return nil, err
	}
	if body.Events == nil {
		body.Events = model.EventMap{}
	}
	return body.Events, nil
}

// PushEvents はユーザーの全予定をサーバー側で置き換える。
func (c *AccountClient) PushEvents(ctx context.Context, username string, events model.EventMap) error {
	var body statusBody
	if err := c.do(ctx, http.MethodPost, "/events", saveEventsBody{User: username, Events: events}, &body); err != nil {
		return err
	}
	if body.Status != "saved" {
		return fmt.Errorf("%w: unexpected save status %q", ErrUnavailable, body.Status)
	}
	return nil
}

// do はJSONリクエストを送信し、応答を分類する。
func (c *AccountClient) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
		}
		return nil
	case isAuthoritative(resp.StatusCode):
		return decodeAPIError(resp, data)
	default:
		return fmt.Errorf("%w: %s %s returned status %d", ErrUnavailable, method, path, resp.StatusCode)
	}
}

// isAuthoritative はサーバーの判断として確定する応答かどうかを返す。
func isAuthoritative(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusMethodNotAllowed, http.StatusTooManyRequests:
		return true
	}
	return false
}

// decodeAPIError はエラー応答をAPIErrorに変換する。
// コードはヘッダーから取り、ない場合はステータスから推定する。
func decodeAPIError(resp *http.Response, data []byte) *model.APIError {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	code := resp.Header.Get(errorCodeHeader)
	if code == "" {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			code = model.ErrCodeInvalidCredentials
		case http.StatusTooManyRequests:
			code = model.ErrCodeRateLimited
		case http.StatusMethodNotAllowed:
			code = model.ErrCodeMethodNotAllowed
		default:
			code = model.ErrCodeInvalidPayload
		}
	}

	category := "validation"
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		category = "auth"
	case resp.StatusCode == http.StatusTooManyRequests:
		category = "system"
	}

	message := body.Error
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &model.APIError{Code: code, Message: message, Category: category}
}
