package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Eursukkul/token-bidding/internal/dto"
	"github.com/Eursukkul/token-bidding/internal/models"
)

func (h *BiddingHandler) SubmitBid(c echo.Context) error {
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req dto.SubmitBidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ParticipantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "participant_id is required")
	}
	if req.Amount == 0 {
		req.Amount = models.BidAmount
	}

	bid, err := h.svc.Bids.SubmitBid(c.Request().Context(), req.ParticipantID, oppID, req.Amount)
	if err != nil {
		return toHTTPError(err)
	}

	resp := dto.ToBidResponse(bid)
	h.notify(c, EventBidSubmitted, resp)
	return c.JSON(http.StatusCreated, dto.OK(resp))
}

func (h *BiddingHandler) WithdrawBid(c echo.Context) error {
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	participantID, err := participantParam(c)
	if err != nil {
		return err
	}

	if err := h.svc.Bids.WithdrawBid(c.Request().Context(), participantID, oppID); err != nil {
		return toHTTPError(err)
	}

	payload := map[string]any{"opportunity_id": oppID, "participant_id": participantID}
	h.notify(c, EventBidWithdrawn, payload)
	return c.JSON(http.StatusOK, dto.OK(payload))
}

func (h *BiddingHandler) ListBids(c echo.Context) error {
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var status *models.BidStatus
	if s := c.QueryParam("status"); s != "" {
		bs := models.BidStatus(s)
		status = &bs
	}

	bids, err := h.svc.Bids.ListBids(c.Request().Context(), oppID, status)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]dto.BidResponse, len(bids))
	for i := range bids {
		resp[i] = dto.ToBidResponse(&bids[i])
	}
	return c.JSON(http.StatusOK, dto.OK(resp))
}
