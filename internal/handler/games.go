package handler // handler holds the echo handlers for the catalog API

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/middleware"
	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/service"
)

const requestTimeout = 5 * time.Second

// GameHandler serves the catalog, ordering and library endpoints.
type GameHandler struct {
	Catalog *service.CatalogService
	Orders  *service.OrderService
	// Invalidate runs after every successful catalog write; nil skips it.
	Invalidate func(ctx context.Context) error
	log        *logrus.Entry
}

// NewGameHandler constructs a GameHandler and panics if a service is nil.
func NewGameHandler(catalog *service.CatalogService, orders *service.OrderService, invalidate func(context.Context) error, logger *logrus.Logger) *GameHandler {
	if catalog == nil || orders == nil {
		panic("nil service passed to NewGameHandler")
	}
	return &GameHandler{
		Catalog:    catalog,
		Orders:     orders,
		Invalidate: invalidate,
		log:        logger.WithField("component", "http"),
	}
}

// ----- DTOs -----

type gameReq struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

type orderResp struct {
	OrderID string `json:"order_id"`
}

type libraryResp struct {
	UserID  string   `json:"user_id"`
	GameIDs []string `json:"game_ids"`
}

// List returns every game in the catalog.
func (h *GameHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	games, err := h.Catalog.List(ctx)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if games == nil {
		games = []model.Game{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": games})
}

// Get returns one game by id.
func (h *GameHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	g, err := h.Catalog.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Create adds a game to the catalog.
func (h *GameHandler) Create(c echo.Context) error {
	var req gameReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	g, err := h.Catalog.Create(ctx, model.Game{Title: req.Title, Description: req.Description, Price: req.Price})
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusCreated, g)
}

// Update replaces the title, description and price of an existing game.
func (h *GameHandler) Update(c echo.Context) error {
	var req gameReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	g, err := h.Catalog.Update(ctx, model.Game{ID: c.Param("id"), Title: req.Title, Description: req.Description, Price: req.Price})
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusOK, g)
}

// Delete removes a game; unknown ids still answer 204.
func (h *GameHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Catalog.Delete(ctx, c.Param("id")); err != nil {
		return writeError(c, h.log, err)
	}
	h.invalidate(ctx)
	return c.NoContent(http.StatusNoContent)
}

// PlaceOrder starts a purchase of the game for the authenticated user.
// Payment happens asynchronously, so success is 202 with the order id.
func (h *GameHandler) PlaceOrder(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, errorResp{Error: "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	order, err := h.Orders.PlaceOrder(ctx, uid, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusAccepted, orderResp{OrderID: order.ID})
}

// Library lists the games the authenticated user owns.
func (h *GameHandler) Library(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, errorResp{Error: "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ids, err := h.Orders.Library(ctx, uid)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, libraryResp{UserID: uid, GameIDs: ids})
}

func (h *GameHandler) invalidate(ctx context.Context) {
	if h.Invalidate == nil {
		return
	}
	if err := h.Invalidate(ctx); err != nil {
		h.log.WithError(err).Warn("catalog cache not purged")
	}
}
