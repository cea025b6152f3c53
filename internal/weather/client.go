package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultForecastURL は天気予報APIのエンドポイント。
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	// DefaultGeocodeURL はジオコーディングAPIのエンドポイント。
	DefaultGeocodeURL = "https://geocoding-api.open-meteo.com/v1/search"
	// DefaultCountryCode はジオコーディング結果を優先する国。
	DefaultCountryCode = "JP"

	// maxBodySize はレスポンスボディの読み取り上限。
	maxBodySize = 1 << 20
	userAgent   = "daycast/1.0"
)

// Options はClientの接続先設定。ゼロ値の項目は既定値を使う。
type Options struct {
	ForecastURL string
	GeocodeURL  string
	CountryCode string
}

// Place はジオコーディング結果。
type Place struct {
	Lat         float64
	Lon         float64
	DisplayName string
}

// Client は天気予報・ジオコーディングプロバイダーのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	forecastURL string
	geocodeURL  string
	countryCode string
	now         func() time.Time // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, opts Options) *Client {
	if opts.ForecastURL == "" {
		opts.ForecastURL = DefaultForecastURL
	}
	if opts.GeocodeURL == "" {
		opts.GeocodeURL = DefaultGeocodeURL
	}
	if opts.CountryCode == "" {
		opts.CountryCode = DefaultCountryCode
	}
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		forecastURL: opts.ForecastURL,
		geocodeURL:  opts.GeocodeURL,
		countryCode: strings.ToUpper(opts.CountryCode),
		now:         time.Now,
	}
}

// forecastResponse はプロバイダーのレスポンス形式。
type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
	Daily *struct {
		Time        []string  `json:"time"`
		WeatherCode []int     `json:"weathercode"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// FetchWeather は現在の天気と日別予報を取得する。
// 通信エラー、2xx以外のステータス、不正なレスポンスのいずれでもエラーは返さず、
// ログに記録した上でFallbackの代替予報を返す。
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64, units Units) Forecast {
	f, err := c.fetchForecast(ctx, lat, lon, units)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("weather provider unavailable, using fallback forecast",
				slog.String("error", err.Error()),
				slog.Float64("lat", lat),
				slog.Float64("lon", lon),
			)
		}
		return Fallback(c.now(), units)
	}
	return f
}

func (c *Client) fetchForecast(ctx context.Context, lat, lon float64, units Units) (Forecast, error) {
	reqURL, err := url.Parse(c.forecastURL)
	if err != nil {
		return Forecast{}, fmt.Errorf("invalid forecast endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")
	q.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min")
	q.Set("timezone", "auto")
	if units == Fahrenheit {
		q.Set("temperature_unit", "fahrenheit")
	}
	reqURL.RawQuery = q.Encode()

	var body forecastResponse
	if err := c.getJSON(ctx, reqURL.String(), &body); err != nil {
		return Forecast{}, err
	}

	if body.CurrentWeather == nil || body.Daily == nil {
		return Forecast{}, fmt.Errorf("malformed forecast response: missing current_weather or daily")
	}
	d := body.Daily
	n := len(d.Time)
	if n == 0 || len(d.WeatherCode) != n || len(d.TempMax) != n || len(d.TempMin) != n {
		return Forecast{}, fmt.Errorf("malformed forecast response: daily series length mismatch")
	}

	daily := make([]Day, n)
	for i := range daily {
		daily[i] = Day{
			Date: d.Time[i],
			Max:  d.TempMax[i],
			Min:  d.TempMin[i],
			Code: d.WeatherCode[i],
		}
	}

	return Forecast{
		Current: Current{
			Temperature: body.CurrentWeather.Temperature,
			Code:        body.CurrentWeather.WeatherCode,
		},
		Daily:     daily,
		UpdatedAt: c.now(),
		Units:     units,
		Source:    SourceProvider,
	}, nil
}

// geocodeResponse はジオコーディングAPIのレスポンス形式。
type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

// Geocode は地名から座標を検索する。先頭の1件のみを使い、設定された国を優先する。
// 該当なしの場合はエラーではなくnilを返し、呼び出し元が縮退表示を選べるようにする。
func (c *Client) Geocode(ctx context.Context, name string) (*Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	reqURL, err := url.Parse(c.geocodeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocode endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("name", name)
	q.Set("count", "1")
	q.Set("format", "json")
	q.Set("countryCode", c.countryCode)
	reqURL.RawQuery = q.Encode()

	var body geocodeResponse
	if err := c.getJSON(ctx, reqURL.String(), &body); err != nil {
		c.logger.Warn("geocoding failed",
			slog.String("error", err.Error()),
			slog.String("place", name),
		)
		return nil, err
	}

	if len(body.Results) == 0 {
		return nil, nil
	}
	r := body.Results[0]

	display := r.Name
	if r.Admin1 != "" && r.Admin1 != r.Name {
		display += ", " + r.Admin1
	}
	if r.Country != "" {
		display += ", " + r.Country
	}

	return &Place{Lat: r.Latitude, Lon: r.Longitude, DisplayName: display}, nil
}

// getJSON はGETリクエストを送信し、2xxのJSONレスポンスをdstにデコードする。
func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}
