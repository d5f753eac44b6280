package mapping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/i474232898/openweather-collector/internal/calc"
	"github.com/i474232898/openweather-collector/internal/common/logger"
	"github.com/i474232898/openweather-collector/internal/jsonflat"
)

// Calculator applies field definitions. Compiled calculations are cached, so a
// Calculator should be reused across runs. It is safe for concurrent use as
// long as each call gets its own output set.
type Calculator struct {
	log   *zap.Logger
	exprs sync.Map // string -> *calc.Expr
}

func NewCalculator(log *zap.Logger) *Calculator {
	return &Calculator{log: logger.OrNop(log)}
}

var defaultCalculator = NewCalculator(nil)

// Apply runs fields against flat with a calculator that does not log.
func Apply(flat jsonflat.Map, fields []Field, out Variables) Report {
	return defaultCalculator.Apply(flat, fields, out)
}

// Apply processes fields in order and writes each computed value to out.
// A field that cannot be produced is skipped and reported; the remaining
// fields are still processed.
func (c *Calculator) Apply(flat jsonflat.Map, fields []Field, out Variables) Report {
	var rep Report
	for _, f := range fields {
		v, err := c.value(flat, f, out)
		if err != nil {
			rep.Skipped = append(rep.Skipped, Skip{Field: f.Name, Reason: err})
			c.log.Debug("property skipped",
				zap.String("field", f.Name),
				zap.String("source", f.Source),
				zap.String("reason", Reason(err)),
				zap.Error(err),
			)
			continue
		}
		out[f.Name] = v
		rep.Written = append(rep.Written, f.Name)
	}
	return rep
}

func (c *Calculator) value(flat jsonflat.Map, f Field, out Variables) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	var raw any
	if f.Source != "" {
		v, ok := flat.Lookup(f.Source)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFieldMissing, f.Source)
		}
		if jsonflat.IsNull(v) {
			return nil, fmt.Errorf("%w: %s", ErrFieldNull, f.Source)
		}
		raw = v
	}

	if f.Calculation != "" {
		expr, err := c.compile(f.Calculation)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.Name, err)
		}
		env := calc.Env{Variables: out, Flat: flat}
		if raw != nil {
			n, err := toNumber(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%v to number: %v", ErrNotConvertible, f.Source, raw, err)
			}
			env.Value = n
		}
		res, err := expr.Eval(env)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCalculation, f.Name, err)
		}
		raw = res
	}

	return convert(raw, f)
}

func (c *Calculator) compile(src string) (*calc.Expr, error) {
	if e, ok := c.exprs.Load(src); ok {
		return e.(*calc.Expr), nil
	}
	e, err := calc.Compile(src)
	if err != nil {
		return nil, err
	}
	c.exprs.Store(src, e)
	return e, nil
}

func convert(v any, f Field) (any, error) {
	fail := func(err error) error {
		return fmt.Errorf("%w: %v to %s: %v", ErrNotConvertible, v, typeOf(f), err)
	}

	switch f.Type {
	case TypeString:
		if n, ok := v.(float64); ok && f.Decimals != nil {
			return strconv.FormatFloat(n, 'f', *f.Decimals, 64), nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fail(err)
		}
		return s, nil
	case TypeBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fail(err)
		}
		return b, nil
	case TypeInteger:
		n, err := toNumber(v)
		if err != nil {
			return nil, fail(err)
		}
		n = math.Round(n)
		if !inInt64Range(n) {
			return nil, fail(errOutOfRange)
		}
		return int64(n), nil
	case TypeTimestamp:
		if n, err := cast.ToFloat64E(v); err == nil {
			if math.IsNaN(n) || math.IsInf(n, 0) || !inInt64Range(n) {
				return nil, fail(errOutOfRange)
			}
			sec, frac := math.Modf(n)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
		}
		t, err := cast.ToTimeE(v)
		if err != nil {
			return nil, fail(err)
		}
		return t.UTC(), nil
	default:
		n, err := toNumber(v)
		if err != nil {
			return nil, fail(err)
		}
		if f.Decimals != nil {
			n = calc.Round(n, *f.Decimals)
		}
		return n, nil
	}
}

var (
	errNotFinite  = errors.New("not a finite number")
	errOutOfRange = errors.New("out of range")
)

// toNumber coerces v to a float64. NaN and infinities are rejected since
// they have no JSON representation.
func toNumber(v any) (float64, error) {
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errNotFinite
	}
	return n, nil
}

// inInt64Range reports whether n converts to int64 without overflow.
// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
func inInt64Range(n float64) bool {
	return n >= math.MinInt64 && n < math.MaxInt64
}

func typeOf(f Field) Type {
	if f.Type == "" {
		return TypeNumber
	}
	return f.Type
}
