package weather

import (
	"context"
	"net/url"
	"time"

	"github.com/i474232898/openweather-collector/internal/mapping"
)

// ContentTypeJSON is the content type requested from JSON APIs.
const ContentTypeJSON = "application/json"

// Connection is the HTTP fetch capability.
type Connection interface {
	// GetAsString performs a GET and returns the body of a successful response.
	GetAsString(ctx context.Context, u *url.URL, contentType string) (string, error)
	// Test performs a lightweight reachability check against u.
	Test(ctx context.Context, u *url.URL, contentType string) error
}

// Provider describes a weather API: how requests are built, what its
// settings look like and which properties it supports.
type Provider interface {
	Name() string
	// URLPattern is the template used for connection tests.
	URLPattern() string
	DefaultSetting() Setting
	DefaultActivity() Activity
	SupportedProperties() ([]mapping.CommandProperty, error)
	ValidateSetting(Setting) error
}

// Store keeps the snapshots produced by activity runs.
type Store interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
	Latest(ctx context.Context, provider string) (Snapshot, error)
	Range(ctx context.Context, provider string, from, to time.Time) ([]Snapshot, error)
}
