package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/jsonflat"
	"github.com/i474232898/openweather-collector/internal/store"
	"github.com/i474232898/openweather-collector/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/variables/latest", func(c *fiber.Ctx) error {
		snapshot, err := service.Latest(c.UserContext())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no variables collected yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read variables")
		}

		if c.Query("view") == "nested" {
			return c.JSON(fiber.Map{
				"id":        snapshot.ID,
				"provider":  snapshot.Provider,
				"timestamp": snapshot.Timestamp,
				"variables": jsonflat.Expand(jsonflat.Map(snapshot.Variables)),
			})
		}
		return c.JSON(snapshot)
	})

	v1.Get("/variables/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := service.Range(c.UserContext(), req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no variables for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read variable history")
		}

		return c.JSON(fiber.Map{
			"provider":  service.Provider().Name(),
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Get("/properties", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"provider":   service.Provider().Name(),
			"properties": service.Properties(),
		})
	})

	v1.Post("/connection/test", func(c *fiber.Ctx) error {
		var req connectionTestRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		active := service.Setting()
		if req.changesEndpoint(active) {
			// configured credentials only go to the configured endpoint
			active.Values = nil
		}
		setting := req.toSetting().WithDefaults(active)
		result := service.TestConnection(c.UserContext(), setting)
		if errors.Is(result.Err, common.ErrConfiguration) || errors.Is(result.Err, common.ErrMalformedRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(result)
		}
		return c.JSON(result)
	})

	v1.Post("/activity/run", func(c *fiber.Ctx) error {
		snapshot, err := service.RunActivity(c.UserContext())
		if err != nil {
			if errors.Is(err, common.ErrTransport) {
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(snapshot)
	})
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

type connectionTestRequest struct {
	ProviderHost  string            `json:"providerHost"`
	ProviderPort  int               `json:"providerPort" validate:"gte=0,lte=65535"`
	ReadTimeoutMs int               `json:"readTimeoutMs" validate:"gte=0,lte=600000"`
	Values        map[string]string `json:"values"`
}

func (r connectionTestRequest) changesEndpoint(active weather.Setting) bool {
	if r.ProviderHost != "" && !strings.EqualFold(r.ProviderHost, active.ProviderHost) {
		return true
	}
	return r.ProviderPort != 0 && r.ProviderPort != active.ProviderPort
}

func (r connectionTestRequest) toSetting() weather.Setting {
	return weather.Setting{
		ProviderHost:      r.ProviderHost,
		ProviderPort:      r.ProviderPort,
		ReadTimeoutMillis: r.ReadTimeoutMs,
		Values:            r.Values,
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
