package providers

import (
	"time"

	"github.com/i474232898/openweather-collector/internal/weather"
)

const WeatherAPIURL = "https://{provider_host}/v1/current.json?key={appid}&q={location}&aqi=no"

// NewWeatherAPI describes weatherapi.com. The location is free text
// ("London", "48.8567,2.3508", a postcode).
func NewWeatherAPI() *Descriptor {
	return &Descriptor{
		name:       "weatherapi",
		urlPattern: WeatherAPIURL,
		setting: weather.Setting{
			ProviderHost:      "api.weatherapi.com",
			ReadTimeoutMillis: 5000,
		},
		activity: weather.Activity{
			Start:    0,
			End:      23*time.Hour + 59*time.Minute,
			Interval: 30 * time.Minute,
		},
		fieldsFile: "weatherapi.json",
		rules: map[string]string{
			KeyAppID:    "required,alphanum,min=16",
			KeyLocation: "required,max=128",
		},
	}
}
