package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/weather"
)

type fakeRunner struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (f *fakeRunner) RunActivity(ctx context.Context) (weather.Snapshot, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return weather.Snapshot{}, f.err
	}
	return weather.Snapshot{ID: "snap"}, nil
}

func allDay() weather.Activity {
	return weather.Activity{Start: 0, End: 24 * time.Hour, Interval: time.Hour}
}

func testOptions() Options {
	return Options{
		Provider: "test",
		Activity: allDay(),
		Backoff:  BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		Location: time.UTC,
	}
}

func TestBackoffDelay(t *testing.T) {
	b := BackoffConfig{InitialInterval: 500 * time.Millisecond, MaxInterval: 3 * time.Second}
	assert.Equal(t, 500*time.Millisecond, b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 3*time.Second, b.Delay(3))
}

func TestRunRetriesTransportErrors(t *testing.T) {
	r := &fakeRunner{failures: 2, err: &common.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}}
	s := New(r, testOptions(), zaptest.NewLogger(t))

	snap, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap", snap.ID)
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	r := &fakeRunner{failures: 100, err: common.ErrTransport}
	s := New(r, testOptions(), zaptest.NewLogger(t))

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, int32(4), r.calls.Load())
}

func TestRunDoesNotRetryOtherErrors(t *testing.T) {
	for _, e := range []error{common.ErrConfiguration, common.ErrMalformedResponse, common.ErrMalformedRequest, common.ErrInterrupted} {
		r := &fakeRunner{failures: 100, err: e}
		s := New(r, testOptions(), zaptest.NewLogger(t))

		_, err := s.Run(context.Background())
		assert.ErrorIs(t, err, e)
		assert.Equal(t, int32(1), r.calls.Load(), e.Error())
	}
}

func TestRunStopsRetryingWhenCancelled(t *testing.T) {
	r := &fakeRunner{failures: 100, err: common.ErrTransport}
	opts := testOptions()
	opts.Backoff = BackoffConfig{MaxRetries: 10, InitialInterval: time.Hour}
	s := New(r, opts, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, common.ErrInterrupted)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestTickSkipsOutsideActivityWindow(t *testing.T) {
	r := &fakeRunner{}
	opts := testOptions()
	opts.Activity = weather.Activity{Start: time.Hour, End: 18 * time.Hour, Interval: time.Hour}
	s := New(r, opts, zaptest.NewLogger(t))

	s.now = func() time.Time { return time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC) }
	s.tick()
	assert.Equal(t, int32(0), r.calls.Load())

	s.now = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }
	s.tick()
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestStartRejectsZeroInterval(t *testing.T) {
	opts := testOptions()
	opts.Activity.Interval = 0
	s := New(&fakeRunner{}, opts, zaptest.NewLogger(t))
	assert.ErrorIs(t, s.Start(), errInvalidInterval)
	s.Stop()
}
