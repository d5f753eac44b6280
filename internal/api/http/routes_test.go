package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/mapping"
	"github.com/i474232898/openweather-collector/internal/store"
	"github.com/i474232898/openweather-collector/internal/weather"
	"github.com/i474232898/openweather-collector/internal/weather/providers"
)

type stubConnection struct {
	body string
	err  error
}

func (s *stubConnection) GetAsString(context.Context, *url.URL, string) (string, error) {
	return s.body, s.err
}

func (s *stubConnection) Test(context.Context, *url.URL, string) error {
	return s.err
}

func newTestApp(t *testing.T, conn weather.Connection) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	p := providers.NewOpenWeather()
	setting := p.DefaultSetting()
	setting.Values = map[string]string{
		providers.KeyAppID:    "0123456789abcdef0123456789ABCDEF",
		providers.KeyLocation: "2643743",
	}
	props := []mapping.CommandProperty{{
		Command: providers.OpenWeatherURL,
		Fields: []mapping.Field{
			{Name: "temperature", Source: "main.temp"},
			{Name: "wind.speed_kmh", Source: "wind.speed", Calculation: "value * 3.6"},
		},
	}}

	st := store.NewMemoryStore(10, 0)
	svc := weather.NewService(conn, st, p, setting, props, zaptest.NewLogger(t))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc)
	return app, st
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestLatestNotFound(t *testing.T) {
	app, _ := newTestApp(t, &stubConnection{})

	code, body := do(t, app, http.MethodGet, "/api/v1/variables/latest", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, true, body["error"])
}

func TestRunActivityThenLatest(t *testing.T) {
	app, _ := newTestApp(t, &stubConnection{body: `{"main":{"temp":12.3},"wind":{"speed":5}}`})

	code, body := do(t, app, http.MethodPost, "/api/v1/activity/run", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "openweather", body["provider"])

	code, body = do(t, app, http.MethodGet, "/api/v1/variables/latest", "")
	require.Equal(t, http.StatusOK, code)
	vars := body["variables"].(map[string]any)
	assert.Equal(t, 12.3, vars["temperature"])
	assert.Equal(t, 18.0, vars["wind.speed_kmh"])

	code, body = do(t, app, http.MethodGet, "/api/v1/variables/latest?view=nested", "")
	require.Equal(t, http.StatusOK, code)
	nested := body["variables"].(map[string]any)
	assert.Equal(t, map[string]any{"speed_kmh": 18.0}, nested["wind"])
}

func TestRunActivityTransportFailure(t *testing.T) {
	app, _ := newTestApp(t, &stubConnection{err: &common.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}})

	code, body := do(t, app, http.MethodPost, "/api/v1/activity/run", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["message"], "503")
}

func TestRunActivityMalformedResponse(t *testing.T) {
	app, _ := newTestApp(t, &stubConnection{body: "not json"})

	code, _ := do(t, app, http.MethodPost, "/api/v1/activity/run", "")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHistory(t *testing.T) {
	app, st := newTestApp(t, &stubConnection{})
	base := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.SaveSnapshot(context.Background(), weather.Snapshot{
			ID:        string(rune('a' + i)),
			Provider:  "openweather",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Variables: mapping.Variables{"temperature": float64(i)},
		}))
	}

	code, body := do(t, app, http.MethodGet, "/api/v1/variables/history?from=2025-02-01T08:30:00Z&to=2025-02-01T10:00:00Z", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["snapshots"], 2)

	from := strconv.FormatInt(base.Unix(), 10)
	code, body = do(t, app, http.MethodGet, "/api/v1/variables/history?from="+from+"&to="+from, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["snapshots"], 1)

	code, _ = do(t, app, http.MethodGet, "/api/v1/variables/history?from=2025-02-01T10:00:00Z&to=2025-02-01T08:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/variables/history?from=yesterday&to=today", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/variables/history?from=2030-01-01T00:00:00Z&to=2030-01-02T00:00:00Z", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProperties(t *testing.T) {
	app, _ := newTestApp(t, &stubConnection{})

	code, body := do(t, app, http.MethodGet, "/api/v1/properties", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "openweather", body["provider"])
	assert.Len(t, body["properties"], 1)
}

func TestConnectionTest(t *testing.T) {
	conn := &stubConnection{}
	app, _ := newTestApp(t, conn)

	code, body := do(t, app, http.MethodPost, "/api/v1/connection/test", `{}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])

	code, body = do(t, app, http.MethodPost, "/api/v1/connection/test", `{"values":{"appid":"nope"}}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["detail"], "appid")

	code, _ = do(t, app, http.MethodPost, "/api/v1/connection/test", `{"providerPort":-1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	conn.err = &common.StatusError{StatusCode: 401, Status: "401 Unauthorized"}
	code, body = do(t, app, http.MethodPost, "/api/v1/connection/test", `{}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["detail"], "401")
}

func TestConnectionTestKeepsCredentialsOnConfiguredHost(t *testing.T) {
	var hits atomic.Int32
	var query atomic.Value
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		query.Store(r.URL.RawQuery)
	}))
	defer other.Close()

	app, _ := newTestApp(t, providers.NewHTTPConnection("test", other.Client(), zaptest.NewLogger(t)))
	host := strings.TrimPrefix(other.URL, "http://")

	code, body := do(t, app, http.MethodPost, "/api/v1/connection/test", `{"providerHost":"`+host+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["detail"], "appid")
	assert.Equal(t, int32(0), hits.Load())

	code, body = do(t, app, http.MethodPost, "/api/v1/connection/test",
		`{"providerHost":"`+host+`","values":{"appid":"fedcba9876543210fedcba9876543210","location":"2643743"}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	require.Equal(t, int32(1), hits.Load())
	assert.Contains(t, query.Load(), "APPID=fedcba9876543210fedcba9876543210")
	assert.NotContains(t, query.Load(), "0123456789abcdef0123456789ABCDEF")
}

func TestRunActivityErrorHidesCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	conn := providers.NewHTTPConnection("test", nil, zaptest.NewLogger(t))
	p := providers.NewOpenWeather()
	setting := p.DefaultSetting()
	setting.ProviderHost = host
	setting.Values = map[string]string{
		providers.KeyAppID:    "0123456789abcdef0123456789ABCDEF",
		providers.KeyLocation: "2643743",
	}
	props := []mapping.CommandProperty{{
		Command: providers.OpenWeatherURL,
		Fields:  []mapping.Field{{Name: "temperature", Source: "main.temp"}},
	}}
	svc := weather.NewService(conn, store.NewMemoryStore(10, 0), p, setting, props, zaptest.NewLogger(t))
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc)

	code, body := do(t, app, http.MethodPost, "/api/v1/activity/run", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.NotContains(t, body["message"], "0123456789abcdef0123456789ABCDEF")
}
