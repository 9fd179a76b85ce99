package handler

import (
	"errors"
	"gym-billing-reconciler/internal/service"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// maxWebhookBody caps the payload read from the provider.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}

	outcome, err := h.webhookService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		var intakeErr *service.IntakeError
		if errors.As(err, &intakeErr) {
			return c.String(intakeErr.Status, http.StatusText(intakeErr.Status))
		}
		return c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}

	status := outcome.HTTPStatus()
	if status != http.StatusOK {
		return c.String(status, "Webhook processing failed")
	}

	return c.String(http.StatusOK, "Success")
}
