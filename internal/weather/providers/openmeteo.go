package providers

import (
	"time"

	"github.com/i474232898/openweather-collector/internal/weather"
)

const (
	KeyLatitude  = "latitude"
	KeyLongitude = "longitude"
)

const OpenMeteoURL = "https://{provider_host}/v1/forecast?latitude={latitude}&longitude={longitude}" +
	"&current=temperature_2m,relative_humidity_2m,wind_speed_10m,surface_pressure,precipitation,weather_code"

// NewOpenMeteo describes Open-Meteo, which needs no API key.
func NewOpenMeteo() *Descriptor {
	return &Descriptor{
		name:       "openmeteo",
		urlPattern: OpenMeteoURL,
		setting: weather.Setting{
			ProviderHost:      "api.open-meteo.com",
			ReadTimeoutMillis: 5000,
		},
		activity: weather.Activity{
			Start:    0,
			End:      23*time.Hour + 59*time.Minute,
			Interval: 15 * time.Minute,
		},
		fieldsFile: "openmeteo.json",
		rules: map[string]string{
			KeyLatitude:  "required,latitude",
			KeyLongitude: "required,longitude",
		},
	}
}
