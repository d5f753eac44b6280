package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/i474232898/openweather-collector/internal/common"
)

var registry = map[string]func() *Descriptor{
	"openweather": NewOpenWeather,
	"weatherapi":  NewWeatherAPI,
	"openmeteo":   NewOpenMeteo,
}

// Lookup returns the provider registered under name (case-insensitive).
func Lookup(name string) (*Descriptor, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q (known: %s)", common.ErrConfiguration, name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists the registered providers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
