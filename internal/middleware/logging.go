package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はステータスコードと書き込んだバイト数を記録するResponseWriter。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はWriteHeader前の書き込みを200として扱う。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// requestLogLevel は5xxをERROR、4xxをWARN、それ以外をINFOにする。
func requestLogLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLoggingMiddleware は1リクエストにつき1行の http_request ログを出すミドルウェアを返す。
// method、path、status、bytes、remote_ip、duration_ms を出力し、
// ハンドラーが SetUsername でユーザー名を記録した場合は username も付ける。
// remote_ip は chimw.RealIP の後に置いた場合はプロキシ越しのクライアントIPになる。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			ctx, _ := withRequestUser(r.Context())
			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Int("bytes", rec.bytes),
				slog.String("remote_ip", ClientIP(r)),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if username, err := UsernameFromContext(ctx); err == nil {
				attrs = append(attrs, slog.String("username", username))
			}

			logger.LogAttrs(r.Context(), requestLogLevel(rec.statusCode), "http_request", attrs...)
		})
	}
}
