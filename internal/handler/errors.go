package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/service"
)

// errorResp is the body of every non-2xx response written by this package.
type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// statusFor maps a business error kind to its HTTP status.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindGameNotFound:
		return http.StatusNotFound
	case service.KindGameAlreadyOwned, service.KindOrderAlreadyPending:
		return http.StatusConflict
	case service.KindInvalidGame:
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

// writeError renders err.  Business errors carry their kind; a failed
// publish is a 502 that still names the stored order; anything else is a
// 500 whose cause is logged, not returned.
func writeError(c echo.Context, log *logrus.Entry, err error) error {
	if be, ok := service.AsBusiness(err); ok {
		return c.JSON(statusFor(be.Kind), errorResp{Error: string(be.Kind), Message: be.Message})
	}
	var pe *service.PublishError
	if errors.As(err, &pe) {
		return c.JSON(http.StatusBadGateway, errorResp{
			Error:   "publish_failed",
			Message: "order recorded but payment was not requested; it will be retried",
			OrderID: pe.OrderID,
		})
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, errorResp{Error: "internal_error"})
}
