package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/config"
	"github.com/hitoshi/daycast/internal/dashboard"
	"github.com/hitoshi/daycast/internal/logger"
	"github.com/hitoshi/daycast/internal/security"
	"github.com/hitoshi/daycast/internal/session"
	"github.com/hitoshi/daycast/internal/storage"
	"github.com/hitoshi/daycast/internal/ui"
	"github.com/hitoshi/daycast/internal/weather"
)

// Client はTUIクライアントの組み立て結果。
type Client struct {
	Backend   *storage.Backend
	Session   *session.Controller
	Dashboard *dashboard.Dashboard
	UI        *ui.App
}

// Close はローカルデータベースを閉じる。
func (c *Client) Close() error {
	return c.Backend.Close()
}

// NewClient は設定からストレージ、認証、ダッシュボード、TUIを組み立てる。
// 端末には触れないため、TUIを起動せずに構成を検証できる。
func NewClient(cfg *config.ClientConfig, log *slog.Logger, now time.Time) (*Client, error) {
	backend, err := storage.New(storage.Options{
		Mode:           storage.Mode(cfg.Mode),
		DataPath:       cfg.DataPath,
		ServerURL:      cfg.ServerURL,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	// ログイン前のプレビューはデモデータで埋める
	store := calendar.NewDemoStore(now)

	httpClient := security.NewOutboundGuard().NewSafeClient(cfg.RequestTimeout)
	forecasts := weather.NewClient(httpClient, log, weather.Options{
		ForecastURL: cfg.ForecastURL,
		GeocodeURL:  cfg.GeocodeURL,
		CountryCode: cfg.CountryCode,
	})

	dash := dashboard.New(dashboard.Options{
		Adapter:  backend.Adapter,
		Store:    store,
		Weather:  forecasts,
		Themes:   backend.Preferences,
		Logger:   log,
		Location: dashboardLocation(cfg.Location),
		Units:    weather.Units(cfg.Units),
		Theme:    cfg.Theme,
	})

	// nilの*AccountClientをそのまま渡すとnilでないインターフェースになる
	var accounts session.Accounts
	if backend.Accounts != nil {
		accounts = backend.Accounts
	}

	ctrl := session.New(session.Options{
		Adapter:  backend.Adapter,
		Accounts: accounts,
		Sessions: backend.Preferences,
		Store:    store,
		Logger:   log,
		OnAuthenticated: func(_ context.Context, username string, loaded bool) {
			dash.Activate(username)
			if !loaded {
				dash.MarkUnsynced()
			}
		},
	})

	return &Client{
		Backend:   backend,
		Session:   ctrl,
		Dashboard: dash,
		UI: ui.NewApp(ui.Options{
			Session:   ctrl,
			Dashboard: dash,
			Logger:    log,
			Timeout:   2 * cfg.RequestTimeout,
		}),
	}, nil
}

func dashboardLocation(l config.Location) dashboard.Location {
	loc := dashboard.Location{Name: l.Name}
	if l.HasCoordinates() {
		loc.Lat = *l.Latitude
		loc.Lon = *l.Longitude
		loc.Resolved = true
	}
	return loc
}

// runClient はTUIクライアントを起動する。
// ログは端末を汚さないよう設定ファイルのlog_fileへ出力する。
func runClient(args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	defaultPath := os.Getenv("DAYCAST_CONFIG")
	if defaultPath == "" {
		defaultPath = config.DefaultClientConfigPath()
	}
	configPath := fs.String("config", defaultPath, "path to the client YAML config")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load client config: %w", err)
	}

	logFile, err := logger.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log := logger.SetupWithLevel(logFile, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)

	client, err := NewClient(cfg, log, time.Now())
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info("client starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	p := tea.NewProgram(client.UI, tea.WithAltScreen())

	scheduler, err := ui.StartWeatherSchedule(p, cfg.WeatherRefresh, log)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("client exited with error: %w", err)
	}
	log.Info("client stopped")
	return nil
}
