package weather

import (
	"fmt"
	"strconv"
	"time"

	"github.com/i474232898/openweather-collector/internal/mapping"
)

// Placeholder names every Setting contributes to a URL template.
const (
	KeyProviderHost = "provider_host"
	KeyProviderPort = "provider_port"
)

// DefaultReadTimeout applies when a Setting leaves ReadTimeoutMillis unset.
const DefaultReadTimeout = 5 * time.Second

// Setting is the host-supplied configuration of one provider.
type Setting struct {
	ProviderHost      string            `json:"providerHost"`
	ProviderPort      int               `json:"providerPort,omitempty"`
	ReadTimeoutMillis int               `json:"readTimeoutMs,omitempty"`
	Values            map[string]string `json:"values,omitempty"`
}

// ReadTimeout returns the per-request timeout.
func (s Setting) ReadTimeout() time.Duration {
	if s.ReadTimeoutMillis <= 0 {
		return DefaultReadTimeout
	}
	return time.Duration(s.ReadTimeoutMillis) * time.Millisecond
}

// ConfigurationValues returns the placeholder values for URL templates:
// the provider specific values plus provider_host and provider_port.
// The port is only present when one is configured.
func (s Setting) ConfigurationValues() map[string]string {
	out := make(map[string]string, len(s.Values)+2)
	for k, v := range s.Values {
		out[k] = v
	}
	out[KeyProviderHost] = s.ProviderHost
	if s.ProviderPort > 0 {
		out[KeyProviderPort] = strconv.Itoa(s.ProviderPort)
	}
	return out
}

// WithDefaults fills the unset parts of s from def.
func (s Setting) WithDefaults(def Setting) Setting {
	if s.ProviderHost == "" {
		s.ProviderHost = def.ProviderHost
	}
	if s.ProviderPort == 0 {
		s.ProviderPort = def.ProviderPort
	}
	if s.ReadTimeoutMillis == 0 {
		s.ReadTimeoutMillis = def.ReadTimeoutMillis
	}
	if len(def.Values) > 0 {
		values := make(map[string]string, len(def.Values)+len(s.Values))
		for k, v := range def.Values {
			values[k] = v
		}
		for k, v := range s.Values {
			if v != "" {
				values[k] = v
			}
		}
		s.Values = values
	}
	return s
}

// Snapshot is the variable set produced by one activity run.
type Snapshot struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider"`
	Timestamp time.Time         `json:"timestamp"` // always UTC
	Variables mapping.Variables `json:"variables"`
	Skipped   []string          `json:"skipped,omitempty"`
}

// Activity is the daily window in which scheduled runs happen.
// Start and End are offsets from midnight; a window with End before Start
// wraps past midnight.
type Activity struct {
	Start    time.Duration
	End      time.Duration
	Interval time.Duration
}

// Active reports whether now falls inside the window (bounds inclusive).
func (a Activity) Active(now time.Time) bool {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tod := now.Sub(midnight)
	if a.Start <= a.End {
		return tod >= a.Start && tod <= a.End
	}
	return tod >= a.Start || tod <= a.End
}

func (a Activity) String() string {
	return fmt.Sprintf("%s-%s every %s", FormatClock(a.Start), FormatClock(a.End), a.Interval)
}

// ParseClock parses a time of day such as "01:00" or "18:30:15" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// FormatClock is the inverse of ParseClock.
func FormatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	if sec := int(d % time.Minute / time.Second); sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// TestResult is the outcome of a connectivity check.
type TestResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`

	// Err is the failure behind a negative result.
	Err error `json:"-"`
}
