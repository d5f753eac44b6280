package providers

import (
	"time"

	"github.com/i474232898/openweather-collector/internal/weather"
)

// Configuration keys of the OpenWeather provider.
const (
	KeyAppID    = "appid"
	KeyLocation = "location"
)

// OpenWeatherURL is the current weather endpoint of the OpenWeather 2.5 API.
const OpenWeatherURL = "http://{provider_host}/data/2.5/weather?id={location}&APPID={appid}&lang=de&units=metric"

// NewOpenWeather describes OpenWeatherMap. A location is a 7 digit city id
// and the API key is 32 alphanumerics.
func NewOpenWeather() *Descriptor {
	return &Descriptor{
		name:       "openweather",
		urlPattern: OpenWeatherURL,
		setting: weather.Setting{
			ProviderHost:      "api.openweathermap.org",
			ReadTimeoutMillis: 5000,
		},
		activity: weather.Activity{
			Start:    1 * time.Hour,
			End:      18 * time.Hour,
			Interval: 1 * time.Hour,
		},
		fieldsFile: "openweather.json",
		rules: map[string]string{
			KeyAppID:    "required,appid",
			KeyLocation: "required,locationid",
		},
	}
}
