package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingConfigurationValues(t *testing.T) {
	s := Setting{ProviderHost: "localhost", Values: map[string]string{"appid": "k"}}
	assert.Equal(t, map[string]string{"appid": "k", "provider_host": "localhost"}, s.ConfigurationValues())

	s.ProviderPort = 8080
	assert.Equal(t, "8080", s.ConfigurationValues()["provider_port"])
	assert.Equal(t, DefaultReadTimeout, s.ReadTimeout())

	s.ReadTimeoutMillis = 250
	assert.Equal(t, 250*time.Millisecond, s.ReadTimeout())
}

func TestSettingWithDefaults(t *testing.T) {
	def := Setting{ProviderHost: "api.openweathermap.org", ReadTimeoutMillis: 5000, Values: map[string]string{"lang": "de"}}
	got := Setting{Values: map[string]string{"appid": "k", "lang": ""}}.WithDefaults(def)

	assert.Equal(t, "api.openweathermap.org", got.ProviderHost)
	assert.Equal(t, 5000, got.ReadTimeoutMillis)
	assert.Equal(t, map[string]string{"appid": "k", "lang": "de"}, got.Values)
}

func TestActivityWindow(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC) }

	a := Activity{Start: time.Hour, End: 18 * time.Hour, Interval: time.Hour}
	assert.False(t, a.Active(day(0, 59)))
	assert.True(t, a.Active(day(1, 0)))
	assert.True(t, a.Active(day(18, 0)))
	assert.False(t, a.Active(day(18, 1)))
	assert.Equal(t, "01:00-18:00 every 1h0m0s", a.String())

	night := Activity{Start: 22 * time.Hour, End: 2 * time.Hour}
	assert.True(t, night.Active(day(23, 0)))
	assert.True(t, night.Active(day(1, 30)))
	assert.False(t, night.Active(day(12, 0)))
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("18:30")
	require.NoError(t, err)
	assert.Equal(t, 18*time.Hour+30*time.Minute, d)
	assert.Equal(t, "18:30", FormatClock(d))

	d, err = ParseClock("06:00:15")
	require.NoError(t, err)
	assert.Equal(t, "06:00:15", FormatClock(d))

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}
