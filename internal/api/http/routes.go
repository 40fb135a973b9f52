package httpapi

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/solar-yield-forecast/internal/report"
	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

var validate = validator.New()

// requestTimeout bounds the upstream fetch a request may trigger.
const requestTimeout = 60 * time.Second

// RegisterRoutes wires the HTTP handlers into the Fiber app. defaultDays is
// used when a request does not specify days.
func RegisterRoutes(app *fiber.App, service *solar.Service, defaultDays int) {
	v1 := app.Group("/api/v1")
	h := &handlers{service: service, defaultDays: defaultDays}

	v1.Get("/yield", func(c *fiber.Ctx) error {
		res, err := h.yield(c)
		if err != nil {
			return err
		}
		return c.JSON(newYieldResponse(res, service.Today()))
	})

	v1.Get("/yield/report", func(c *fiber.Ctx) error {
		res, err := h.yield(c)
		if err != nil {
			return err
		}
		return c.SendString(report.Text(res, report.TextOptions{Today: service.Today()}))
	})

	v1.Get("/yield/chart", func(c *fiber.Ctx) error {
		res, err := h.yield(c)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := report.Chart(&buf, res, report.ChartOptions{Today: service.Today()}); err != nil {
			return mapError(err)
		}
		c.Type("html")
		return c.Send(buf.Bytes())
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		var q refreshQuery
		q.Reload = c.Query("reload", string(solar.ReloadForce))
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		res, err := service.Refresh(ctx, solar.ReloadMode(q.Reload))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(res)
	})
}

type handlers struct {
	service     *solar.Service
	defaultDays int
}

// yieldQuery holds query parameters for the yield endpoints.
type yieldQuery struct {
	Days   int    `validate:"gte=1,lte=7"`
	Reload string `validate:"omitempty,oneof=never force if-stale"`
}

// refreshQuery holds query parameters for the refresh endpoint.
type refreshQuery struct {
	Reload string `validate:"required,oneof=never force if-stale"`
}

func (h *handlers) yield(c *fiber.Ctx) (solar.AggregateResult, error) {
	q := yieldQuery{
		Days:   c.QueryInt("days", h.defaultDays),
		Reload: c.Query("reload"),
	}
	if err := validate.Struct(q); err != nil {
		return solar.AggregateResult{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := h.service.Yield(ctx, q.Days, solar.ReloadMode(q.Reload))
	if errors.Is(err, solar.ErrTransport) {
		// Serve the last good snapshot if this process has one.
		if snap, ok := h.service.Last(); ok {
			c.Set("X-Data-Stale", "true")
			res, err = h.service.AggregateSnapshot(snap, q.Days)
		}
	}
	if err != nil {
		return solar.AggregateResult{}, mapError(err)
	}
	return res, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, solar.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, "no daily yield data available")
	case errors.Is(err, solar.ErrTransport):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

type dayResponse struct {
	Date    string         `json:"date"`
	Weekday string         `json:"weekday"`
	Tag     string         `json:"tag"`
	Today   bool           `json:"today"`
	KWh     float64        `json:"kwh"`
	RawKWh  float64        `json:"raw_kwh"`
	Slots   map[string]int `json:"slots"`
}

type yieldResponse struct {
	Today       string            `json:"today"`
	Days        []dayResponse     `json:"days"`
	TotalKWh    float64           `json:"total_kwh"`
	AverageKWh  *float64          `json:"average_kwh"`
	Calibration float64           `json:"calibration"`
	Sites       []string          `json:"sites"`
	Diagnostics solar.Diagnostics `json:"diagnostics"`
}

func newYieldResponse(res solar.AggregateResult, today string) yieldResponse {
	out := yieldResponse{
		Today:       today,
		Days:        make([]dayResponse, 0, res.Count()),
		TotalKWh:    res.CalibratedTotal(),
		Calibration: res.Calibration,
		Sites:       res.Sites,
		Diagnostics: res.Diagnostics,
	}
	if avg, ok := res.CalibratedAverage(); ok {
		out.AverageKWh = &avg
	}
	for i, d := range res.Days {
		out.Days = append(out.Days, dayResponse{
			Date:    d.Date,
			Weekday: d.Weekday,
			Tag:     d.Tag(),
			Today:   d.Date == today,
			KWh:     res.CalibratedKWh(i),
			RawKWh:  d.KWh,
			Slots:   d.Slots,
		})
	}
	return out
}
