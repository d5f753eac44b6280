package mapping

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed properties.schema.json
var propertiesSchema []byte

var ErrInvalidProperties = errors.New("invalid property definitions")

var schemaLoader = gojsonschema.NewBytesLoader(propertiesSchema)

// Document is the on-disk shape of a property definitions file.
type Document struct {
	Properties []CommandProperty `json:"properties" mapstructure:"properties"`
}

// ParseProperties decodes and validates a property definitions document.
func ParseProperties(data []byte) ([]CommandProperty, error) {
	if err := validate(gojsonschema.NewBytesLoader(data)); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProperties, err)
	}
	return doc.Properties, nil
}

// ValidateDocument validates an already decoded document, e.g. one read by viper.
func ValidateDocument(doc any) error {
	return validate(gojsonschema.NewGoLoader(doc))
}

func validate(document gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, document)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProperties, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidProperties, strings.Join(errs, "; "))
	}
	return nil
}

// Fields returns every field of props in processing order.
func Fields(props []CommandProperty) []Field {
	var out []Field
	for _, p := range props {
		out = append(out, p.Fields...)
	}
	return out
}
