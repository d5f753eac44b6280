package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/i474232898/openweather-collector/internal/mapping"
)

// LoadProperties reads property definitions from a JSON or YAML file and
// validates them against the property definitions schema.
func LoadProperties(path string) ([]mapping.CommandProperty, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read properties file: %w", err)
	}

	if err := mapping.ValidateDocument(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var doc mapping.Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}
	return doc.Properties, nil
}
