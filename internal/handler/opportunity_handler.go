package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Eursukkul/token-bidding/internal/dto"
	"github.com/Eursukkul/token-bidding/internal/service"
)

func (h *BiddingHandler) CreateOpportunity(c echo.Context) error {
	var req dto.CreateOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.GroupID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "group_id is required")
	}

	opp, err := h.svc.Opportunities.CreateOpportunity(c.Request().Context(), service.CreateOpportunityInput{
		GroupID:   req.GroupID,
		Title:     req.Title,
		OpensAt:   req.OpensAt,
		ClosesAt:  req.ClosesAt,
		EventDate: req.EventDate,
		Capacity:  req.Capacity,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.OK(dto.ToOpportunityResponse(opp)))
}

func (h *BiddingHandler) GetOpportunity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	opp, err := h.svc.Opportunities.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.OK(dto.ToOpportunityResponse(opp)))
}

func (h *BiddingHandler) ListOpportunities(c echo.Context) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	opps, err := h.svc.Opportunities.ListOpportunities(c.Request().Context(), groupID)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]dto.OpportunityResponse, len(opps))
	for i := range opps {
		resp[i] = dto.ToOpportunityResponse(&opps[i])
	}
	return c.JSON(http.StatusOK, dto.OK(resp))
}

func (h *BiddingHandler) DeleteOpportunity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Cascade.DeleteOpportunity(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	h.notify(c, EventOpportunityDeleted, map[string]any{"opportunity_id": id})
	return c.JSON(http.StatusOK, dto.OK(map[string]any{"opportunity_id": id}))
}

func (h *BiddingHandler) DeleteGroup(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	counts, err := h.svc.Cascade.DeleteGroup(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	h.notify(c, EventGroupDeleted, map[string]any{"group_id": id, "counts": counts})
	return c.JSON(http.StatusOK, dto.OK(counts))
}
