package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Eursukkul/token-bidding/internal/dto"
)

func (h *BiddingHandler) RunSelection(c echo.Context) error {
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req dto.RunSelectionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	ctx := c.Request().Context()
	capacity := 0
	if req.Capacity != nil {
		capacity = *req.Capacity
	} else {
		opp, err := h.svc.Opportunities.GetOpportunity(ctx, oppID)
		if err != nil {
			return toHTTPError(err)
		}
		capacity = opp.Capacity
	}

	result, err := h.svc.Selection.RunSelection(ctx, oppID, capacity)
	if err != nil {
		return toHTTPError(err)
	}
	h.notify(c, EventSelectionCompleted, result)
	return c.JSON(http.StatusOK, dto.OK(result))
}

func (h *BiddingHandler) ResetSelection(c echo.Context) error {
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.svc.Selection.ResetSelection(c.Request().Context(), oppID)
	if err != nil {
		return toHTTPError(err)
	}
	h.notify(c, EventSelectionReset, result)
	return c.JSON(http.StatusOK, dto.OK(result))
}
