package providers

import (
	"embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/mapping"
	"github.com/i474232898/openweather-collector/internal/weather"
)

//go:embed fields/*.json
var fieldFiles embed.FS

var (
	appIDPattern      = regexp.MustCompile(`^[A-Za-z0-9]{32}$`)
	locationIDPattern = regexp.MustCompile(`^\d{7}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("appid", func(fl validator.FieldLevel) bool {
		return appIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("locationid", func(fl validator.FieldLevel) bool {
		return locationIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// settingRules is the validator form of the provider independent part of a Setting.
type settingRules struct {
	ProviderHost      string `validate:"required,hostname_port|hostname_rfc1123|ip"`
	ProviderPort      int    `validate:"omitempty,min=1,max=65535"`
	ReadTimeoutMillis int    `validate:"gte=0,lte=600000"`
}

// Descriptor is a weather.Provider whose requests are URL templates and whose
// supported properties ship as an embedded fields file.
type Descriptor struct {
	name       string
	urlPattern string
	setting    weather.Setting
	activity   weather.Activity
	fieldsFile string
	// value key -> validator tag
	rules map[string]string
}

var _ weather.Provider = (*Descriptor)(nil)

func (d *Descriptor) Name() string { return d.name }

func (d *Descriptor) URLPattern() string { return d.urlPattern }

func (d *Descriptor) DefaultActivity() weather.Activity { return d.activity }

// DefaultSetting returns a copy of the provider defaults.
func (d *Descriptor) DefaultSetting() weather.Setting {
	return weather.Setting{}.WithDefaults(d.setting)
}

// SupportedProperties loads the provider's embedded property definitions.
func (d *Descriptor) SupportedProperties() ([]mapping.CommandProperty, error) {
	data, err := fieldFiles.ReadFile("fields/" + d.fieldsFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.fieldsFile, err)
	}
	return mapping.ParseProperties(data)
}

// ValidateSetting checks s against the provider's rules. All violations are
// reported together, wrapped in common.ErrConfiguration.
func (d *Descriptor) ValidateSetting(s weather.Setting) error {
	var problems []string

	rules := settingRules{
		ProviderHost:      s.ProviderHost,
		ProviderPort:      s.ProviderPort,
		ReadTimeoutMillis: s.ReadTimeoutMillis,
	}
	if err := validate.Struct(rules); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
	}

	keys := make([]string, 0, len(d.rules))
	for k := range d.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := validate.Var(strings.TrimSpace(s.Values[key]), d.rules[key]); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				problems = append(problems, fmt.Sprintf("%s failed %q", key, verrs[0].Tag()))
				continue
			}
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s setting invalid: %s", common.ErrConfiguration, d.name, strings.Join(problems, "; "))
	}
	return nil
}
