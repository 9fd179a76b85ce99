package handler

import (
	"gym-billing-reconciler/internal/dto"
	"gym-billing-reconciler/internal/service"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

func (h *AdminHandler) ListFailedEvents(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	events, err := h.adminService.ListFailedEvents(ctx, limit)
	if err != nil {
		return err
	}

	resp := dto.FailedEventsResponse{Events: make([]dto.FailedEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, dto.FailedEvent{
			EventID:   e.EventID,
			EventType: e.EventType,
			Error:     e.Error,
			Attempts:  e.Attempts,
			UpdatedAt: e.UpdatedAt,
		})
	}
	resp.Count = len(resp.Events)

	return c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) FixDuplicateMemberships(c echo.Context) error {
	ctx := c.Request().Context()

	flagged, err := h.adminService.FixDuplicateMemberships(ctx)
	if err != nil {
		return err
	}

	resp := dto.FixDuplicatesResponse{Flagged: make([]dto.DuplicateMembership, 0, len(flagged))}
	for _, m := range flagged {
		resp.Flagged = append(resp.Flagged, dto.DuplicateMembership{
			MembershipID:   m.ID,
			UserID:         m.UserID,
			SubscriptionID: m.StripeSubscriptionID,
		})
	}
	resp.Count = len(resp.Flagged)

	return c.JSON(http.StatusOK, resp)
}
