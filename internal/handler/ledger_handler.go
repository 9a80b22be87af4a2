package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Eursukkul/token-bidding/internal/dto"
)

func (h *BiddingHandler) GetBalance(c echo.Context) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	participantID, err := participantParam(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Ledger.GetBalance(c.Request().Context(), participantID, groupID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.OK(b))
}

func (h *BiddingHandler) History(c echo.Context) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	participantID, err := participantParam(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.Ledger.History(c.Request().Context(), participantID, groupID)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]dto.LedgerEntryResponse, len(entries))
	for i := range entries {
		resp[i] = dto.ToLedgerEntryResponse(&entries[i])
	}
	return c.JSON(http.StatusOK, dto.OK(resp))
}

func (h *BiddingHandler) TopUp(c echo.Context) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	participantID, err := participantParam(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Ledger.TopUp(c.Request().Context(), participantID, groupID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.OK(b))
}

func (h *BiddingHandler) ResetGroupTokens(c echo.Context) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.svc.Ledger.ResetGroupTokens(c.Request().Context(), groupID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.OK(dto.ResetTokensResponse{GroupID: groupID, Reset: n}))
}

func (h *BiddingHandler) Reconcile(c echo.Context) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	drift, err := h.svc.Ledger.Reconcile(c.Request().Context(), groupID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.OK(map[string]any{
		"group_id":      groupID,
		"consistent":    len(drift) == 0,
		"discrepancies": drift,
	}))
}
