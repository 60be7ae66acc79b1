package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/dto"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/service"
)

type PaymentHandler struct {
	fulfillmentService service.FulfillmentService
}

func NewPaymentHandler(fulfillmentService service.FulfillmentService) *PaymentHandler {
	return &PaymentHandler{
		fulfillmentService: fulfillmentService,
	}
}

func (h *PaymentHandler) RecordPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	result, err := h.fulfillmentService.RecordPayment(ctx, &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()

	payment, err := h.fulfillmentService.GetPayment(ctx, c.Param("paymentID"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, payment)
}

// writeError maps the fulfillment error taxonomy onto HTTP responses. Every
// response carries a stable `error` string; verification failures also
// report the confirmations observed so clients can render progress.
func writeError(c echo.Context, err error) error {
	var verErr *errs.VerificationError
	if errors.As(err, &verErr) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:         verErr.Error(),
			Confirmations: &verErr.Confirmations,
		})
	}

	var valErr *errs.ValidationError
	if errors.As(err, &valErr) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: valErr.Msg})
	}

	var stateErr *errs.SessionStateError
	if errors.As(err, &stateErr) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: stateErr.Error()})
	}

	var emailErr *errs.EmailDeliveryError
	if errors.As(err, &emailErr) {
		return c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "Email failed",
			Message: emailErr.Msg,
		})
	}

	var decErr *errs.DecryptionError
	if errors.As(err, &decErr) {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: decErr.Error()})
	}

	switch {
	case errors.Is(err, errs.ErrSessionNotFound),
		errors.Is(err, errs.ErrGiftCardNotFound),
		errors.Is(err, errs.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrDuplicatePayment),
		errors.Is(err, errs.ErrGiftCardUnavailable):
		return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "unexpected error"})
}
