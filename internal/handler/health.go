package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything readiness depends on: the database and the broker.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health answers liveness and readiness checks.
type Health struct {
	deps map[string]Pinger
}

// NewHealth builds the health handlers; nil dependencies are ignored so the
// in-memory mode reports ready without a database.
func NewHealth(deps map[string]Pinger) *Health {
	h := &Health{deps: map[string]Pinger{}}
	for name, p := range deps {
		if p != nil {
			h.deps[name] = p
		}
	}
	return h
}

// Live reports that the process is serving requests.
func (h *Health) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings every dependency and returns 503 if any of them fails.
func (h *Health) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if err := p.PingContext(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	return c.JSON(status, echo.Map{"status": http.StatusText(status), "checks": checks})
}
