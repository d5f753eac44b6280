package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/common/logger"
	"github.com/i474232898/openweather-collector/internal/jsonflat"
	"github.com/i474232898/openweather-collector/internal/mapping"
	"github.com/i474232898/openweather-collector/internal/metrics"
	"github.com/i474232898/openweather-collector/internal/urltemplate"
)

// Service runs the fetch-and-map pipeline for one provider and persists
// the resulting snapshots. It keeps no state between invocations.
type Service struct {
	conn     Connection
	testConn Connection
	store    Store
	provider Provider
	setting  Setting
	props    []mapping.CommandProperty
	calc     *mapping.Calculator
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(conn Connection, store Store, provider Provider, setting Setting, props []mapping.CommandProperty, log *zap.Logger) *Service {
	log = logger.OrNop(log).With(zap.String("provider", provider.Name()))
	return &Service{
		conn:     conn,
		testConn: conn,
		store:    store,
		provider: provider,
		setting:  setting,
		props:    props,
		calc:     mapping.NewCalculator(log),
		log:      log,
		now:      time.Now,
	}
}

// FetchAndMap resolves template against values, fetches the document,
// flattens it and applies fields to out.
//
// Configuration and request errors are returned before any I/O. A failed
// fetch is ErrTransport, or ErrInterrupted when ctx was cancelled.
func (s *Service) FetchAndMap(ctx context.Context, template string, values map[string]string, fields []mapping.Field, out mapping.Variables) (mapping.Report, error) {
	u, err := urltemplate.ResolveURL(template, values)
	if err != nil {
		return mapping.Report{}, err
	}

	s.log.Debug("fetching", zap.String("url", common.RedactURL(u)))
	body, err := s.get(ctx, u)
	if err != nil {
		return mapping.Report{}, err
	}

	flat, err := jsonflat.Flatten([]byte(body))
	if err != nil {
		return mapping.Report{}, err
	}

	rep := s.calc.Apply(flat, fields, out)
	for _, skip := range rep.Skipped {
		metrics.PropertiesSkipped.WithLabelValues(s.provider.Name(), mapping.Reason(skip.Reason)).Inc()
	}
	return rep, nil
}

func (s *Service) get(ctx context.Context, u *url.URL) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.setting.ReadTimeout())
	defer cancel()

	body, err := s.conn.GetAsString(reqCtx, u, ContentTypeJSON)
	if err != nil {
		return "", classify(ctx, err)
	}
	return body, nil
}

// classify maps a connection failure onto the error taxonomy. Cancellation
// of the caller's context wins over whatever the connection reported.
// Credentials in a request URL never reach the returned message.
func classify(ctx context.Context, err error) error {
	err = common.RedactURLError(err)
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", common.ErrInterrupted, ctx.Err())
	}
	if errors.Is(err, common.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrTransport, err)
}

// WorkProperties runs every configured command property in order against out.
// The first fatal error stops the run; values already written stay in out.
func (s *Service) WorkProperties(ctx context.Context, out mapping.Variables) (mapping.Report, error) {
	var total mapping.Report
	values := s.setting.ConfigurationValues()
	for i, p := range s.props {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("%w: %v", common.ErrInterrupted, err)
		}
		rep, err := s.FetchAndMap(ctx, p.Command, values, p.Fields, out)
		total.Merge(rep)
		if err != nil {
			return total, fmt.Errorf("property %d: %w", i, err)
		}
	}
	return total, nil
}

// RunActivity performs one activity run and stores the snapshot. When the run
// fails nothing is stored, so the last good snapshot stays current.
func (s *Service) RunActivity(ctx context.Context) (Snapshot, error) {
	start := s.now()
	out := mapping.Variables{}
	rep, err := s.WorkProperties(ctx, out)
	metrics.FetchDuration.WithLabelValues(s.provider.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(s.provider.Name(), outcome(err)).Inc()
		s.log.Warn("activity run failed", zap.Error(err), zap.Int("written", len(rep.Written)))
		return Snapshot{}, err
	}
	metrics.FetchesTotal.WithLabelValues(s.provider.Name(), "success").Inc()

	snap := Snapshot{
		ID:        uuid.NewString(),
		Provider:  s.provider.Name(),
		Timestamp: start.UTC(),
		Variables: out,
		Skipped:   rep.SkippedNames(),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.log.Info("activity run completed",
		zap.String("snapshot", snap.ID),
		zap.Int("written", len(rep.Written)),
		zap.Strings("skipped", snap.Skipped),
	)
	return snap, nil
}

// UseTestConnection makes TestConnection go through conn, so failing checks
// against arbitrary settings do not affect scheduled fetches.
func (s *Service) UseTestConnection(conn Connection) {
	s.testConn = conn
}

// TestConnection validates setting, resolves the provider's URL and checks
// that it is reachable. No response is flattened or mapped.
func (s *Service) TestConnection(ctx context.Context, setting Setting) TestResult {
	fail := func(err error) TestResult {
		s.log.Info("connection test failed", zap.Error(err))
		return TestResult{OK: false, Detail: err.Error(), Err: err}
	}

	if err := s.provider.ValidateSetting(setting); err != nil {
		return fail(err)
	}
	u, err := urltemplate.ResolveURL(s.provider.URLPattern(), setting.ConfigurationValues())
	if err != nil {
		return fail(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, setting.ReadTimeout())
	defer cancel()
	if err := s.testConn.Test(reqCtx, u, ContentTypeJSON); err != nil {
		return fail(classify(ctx, err))
	}
	return TestResult{OK: true, Detail: fmt.Sprintf("connection to %s successful", u.Host)}
}

// Latest delegates to the underlying store.
func (s *Service) Latest(ctx context.Context) (Snapshot, error) {
	return s.store.Latest(ctx, s.provider.Name())
}

// Range delegates to the underlying store.
func (s *Service) Range(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	return s.store.Range(ctx, s.provider.Name(), from, to)
}

// Properties returns the property definitions in use.
func (s *Service) Properties() []mapping.CommandProperty {
	return s.props
}

// Provider returns the provider descriptor.
func (s *Service) Provider() Provider {
	return s.provider
}

// Setting returns the active setting.
func (s *Service) Setting() Setting {
	return s.setting
}

func outcome(err error) string {
	switch {
	case errors.Is(err, common.ErrInterrupted):
		return "interrupted"
	case errors.Is(err, common.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, common.ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, common.ErrTransport):
		return "transport_error"
	case errors.Is(err, common.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "error"
	}
}
