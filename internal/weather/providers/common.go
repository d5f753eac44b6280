package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/common/logger"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 4 << 20

var (
	errCircuitOpen  = errors.New("circuit breaker open")
	errBodyTooLarge = errors.New("response body too large")
)

// HTTPConnection performs GET requests through a circuit breaker. It does not
// retry; deciding whether to try again is left to the caller.
type HTTPConnection struct {
	client       *http.Client
	circuit      *gobreaker.CircuitBreaker
	maxBodyBytes int64
	log          *zap.Logger
}

// NewHTTPConnection creates a connection for the named provider. A nil client
// uses http.DefaultClient; per-request timeouts come from the context.
func NewHTTPConnection(name string, client *http.Client, log *zap.Logger) *HTTPConnection {
	if client == nil {
		client = http.DefaultClient
	}
	log = logger.OrNop(log)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPConnection{
		client:       client,
		circuit:      cb,
		maxBodyBytes: DefaultMaxBodyBytes,
		log:          log,
	}
}

// GetAsString returns the body of a successful GET.
func (c *HTTPConnection) GetAsString(ctx context.Context, u *url.URL, contentType string) (string, error) {
	body, err := c.do(ctx, u, contentType, true)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Test performs a GET and only checks the status code.
func (c *HTTPConnection) Test(ctx context.Context, u *url.URL, contentType string) error {
	_, err := c.do(ctx, u, contentType, false)
	return err
}

func (c *HTTPConnection) do(ctx context.Context, u *url.URL, contentType string, read bool) ([]byte, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Accept", contentType)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, common.RedactURLError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &common.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		if !read {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return []byte(nil), nil
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(body)) > c.maxBodyBytes {
			return nil, fmt.Errorf("%w: more than %d bytes", errBodyTooLarge, c.maxBodyBytes)
		}
		return body, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", common.ErrTransport, errCircuitOpen, err)
		}
		if errors.Is(err, common.ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}

	body, _ := result.([]byte)
	return body, nil
}
