package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// クライアントの永続化モード。
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// 既定値。
const (
	DefaultServerURL      = "http://localhost:8080"
	DefaultCountryCode    = "JP"
	DefaultUnits          = "celsius"
	DefaultTheme          = "dark"
	DefaultWeatherRefresh = "*/30 * * * *"
	DefaultRequestTimeout = 10 * time.Second
)

// Location はダッシュボードの天気表示地点。
// Latitude/Longitudeが未設定の地点は名前のみのラベルとして扱う。
type Location struct {
	Name      string   `yaml:"name"`
	Latitude  *float64 `yaml:"lat,omitempty"`
	Longitude *float64 `yaml:"lon,omitempty"`
}

// HasCoordinates は座標を持つかどうかを返す。
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ClientConfig はダッシュボードクライアントの設定。
// ForecastURLとGeocodeURLが空の場合は天気クライアントの既定の接続先を使う。
type ClientConfig struct {
	Mode           string        `yaml:"mode"`
	ServerURL      string        `yaml:"server_url"`
	DataPath       string        `yaml:"data_path"`
	LogFile        string        `yaml:"log_file"`
	LogLevel       string        `yaml:"log_level"`
	Location       Location      `yaml:"location"`
	CountryCode    string        `yaml:"country_code"`
	Units          string        `yaml:"units"`
	Theme          string        `yaml:"theme"`
	WeatherRefresh string        `yaml:"weather_refresh"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ForecastURL    string        `yaml:"forecast_url"`
	GeocodeURL     string        `yaml:"geocode_url"`
}

// DefaultClientConfig は既定のクライアント設定を返す。地点は東京。
func DefaultClientConfig() *ClientConfig {
	lat, lon := 35.6895, 139.6917
	cfg := &ClientConfig{
		Mode:      ModeLocal,
		ServerURL: DefaultServerURL,
		Location: Location{
			Name:      "Tokyo",
			Latitude:  &lat,
			Longitude: &lon,
		},
	}
	cfg.Normalize()
	return cfg
}

// DefaultClientConfigPath は $XDG_CONFIG_HOME/daycast/config.yaml を返す。
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "daycast", "config.yaml")
}

// stateDir は $XDG_STATE_HOME/daycast を返す。未設定の場合は ~/.local/state/daycast。
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "daycast")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".daycast")
	}
	return filepath.Join(home, ".local", "state", "daycast")
}

// Normalize はゼロ値を既定値で埋め、未知の列挙値を既定値に戻す。
func (c *ClientConfig) Normalize() {
	switch c.Mode {
	case ModeLocal, ModeRemote:
	default:
		c.Mode = ModeLocal
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.DataPath == "" {
		c.DataPath = filepath.Join(stateDir(), "daycast.db")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(stateDir(), "client.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CountryCode == "" {
		c.CountryCode = DefaultCountryCode
	}
	c.CountryCode = strings.ToUpper(c.CountryCode)

	switch c.Units {
	case "celsius", "fahrenheit":
	default:
		c.Units = DefaultUnits
	}
	switch c.Theme {
	case "dark", "light":
	default:
		c.Theme = DefaultTheme
	}

	if _, err := cron.ParseStandard(c.WeatherRefresh); c.WeatherRefresh == "" || err != nil {
		c.WeatherRefresh = DefaultWeatherRefresh
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// applyEnv は DAYCAST_* 環境変数で設定を上書きする。
func (c *ClientConfig) applyEnv() {
	c.Mode = getEnvString("DAYCAST_MODE", c.Mode)
	c.ServerURL = getEnvString("DAYCAST_SERVER_URL", c.ServerURL)
	c.DataPath = getEnvString("DAYCAST_DATA_PATH", c.DataPath)
	c.LogFile = getEnvString("DAYCAST_LOG_FILE", c.LogFile)
	c.LogLevel = getEnvString("DAYCAST_LOG_LEVEL", c.LogLevel)
	c.Units = getEnvString("DAYCAST_UNITS", c.Units)
	c.Theme = getEnvString("DAYCAST_THEME", c.Theme)
	c.CountryCode = getEnvString("DAYCAST_COUNTRY_CODE", c.CountryCode)

	if name := os.Getenv("DAYCAST_LOCATION"); name != "" {
		c.Location = Location{Name: name}
	}
	if os.Getenv("DAYCAST_LAT") != "" && os.Getenv("DAYCAST_LON") != "" {
		lat := getEnvFloat("DAYCAST_LAT", 0)
		lon := getEnvFloat("DAYCAST_LON", 0)
		c.Location.Latitude = &lat
		c.Location.Longitude = &lon
	}
}

// LoadClient はYAMLファイルからクライアント設定を読み込む。
// ファイルが存在しない場合は既定値を0600で書き出してから返す。
// 読み込み後に DAYCAST_* 環境変数を適用し、Normalizeする。
func LoadClient(path string) (*ClientConfig, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *ClientConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultClientConfig()
		if err := SaveClient(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		cfg = &ClientConfig{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

// SaveClient は設定をYAMLとして書き込む。
// 同じディレクトリの一時ファイルに書いてからrenameし、権限は0600とする。
func SaveClient(path string, cfg *ClientConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".daycast-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
