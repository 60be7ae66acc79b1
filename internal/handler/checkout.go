package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/dto"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/service"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	session, err := h.checkoutService.CreateSession(ctx, &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, session)
}

func (h *CheckoutHandler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := h.checkoutService.GetSession(ctx, c.Param("sessionID"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

func (h *CheckoutHandler) ListGiftCards(c echo.Context) error {
	ctx := c.Request().Context()

	cards, err := h.checkoutService.ListGiftCards(ctx, c.QueryParam("store"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, cards)
}
