package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Eursukkul/token-bidding/internal/service"
)

// Routing keys for post-commit notifications.
const (
	EventBidSubmitted       = "bid.submitted"
	EventBidWithdrawn       = "bid.withdrawn"
	EventSelectionCompleted = "selection.completed"
	EventSelectionReset     = "selection.reset"
	EventOpportunityDeleted = "opportunity.deleted"
	EventGroupDeleted       = "group.deleted"
)

// Notifier publishes an event after a mutation has committed.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Services struct {
	Bids          service.BidService
	Selection     service.SelectionService
	Cascade       service.CascadeService
	Ledger        service.LedgerService
	Opportunities service.OpportunityService
}

type BiddingHandler struct {
	svc      Services
	notifier Notifier
	logger   *slog.Logger
}

// NewBiddingHandler wires the HTTP surface. notifier may be nil.
func NewBiddingHandler(svc Services, notifier Notifier, logger *slog.Logger) *BiddingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BiddingHandler{svc: svc, notifier: notifier, logger: logger.With("component", "http")}
}

func (h *BiddingHandler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	opps := api.Group("/opportunities")
	opps.POST("", h.CreateOpportunity)
	opps.GET("/:id", h.GetOpportunity)
	opps.DELETE("/:id", h.DeleteOpportunity)
	opps.POST("/:id/bids", h.SubmitBid)
	opps.GET("/:id/bids", h.ListBids)
	opps.DELETE("/:id/bids/:participantId", h.WithdrawBid)
	opps.POST("/:id/selection", h.RunSelection)
	opps.DELETE("/:id/selection", h.ResetSelection)

	groups := api.Group("/groups")
	groups.DELETE("/:id", h.DeleteGroup)
	groups.GET("/:id/opportunities", h.ListOpportunities)
	groups.GET("/:id/participants/:participantId/balance", h.GetBalance)
	groups.GET("/:id/participants/:participantId/ledger", h.History)
	groups.POST("/:id/participants/:participantId/topup", h.TopUp)
	groups.POST("/:id/tokens/reset", h.ResetGroupTokens)
	groups.GET("/:id/reconciliation", h.Reconcile)
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func participantParam(c echo.Context) (string, error) {
	p := c.Param("participantId")
	if p == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "participant id is required")
	}
	return p, nil
}

// statusFor maps an error kind onto an HTTP status. Only store faults are 5xx.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindCapacityInvalid, service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindWindowClosed, service.KindInsufficientToken, service.KindDuplicateBid,
		service.KindInvalidState, service.KindIntegrityViolation:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func toHTTPError(err error) error {
	kind := service.KindOf(err)
	code := statusFor(kind)
	msg := err.Error()
	if code == http.StatusServiceUnavailable {
		msg = "store unavailable, retry later"
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

// notify publishes after commit. A failed publish is logged, never returned:
// the mutation has already happened.
func (h *BiddingHandler) notify(c echo.Context, key string, payload any) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Publish(c.Request().Context(), key, payload); err != nil {
		h.logger.Error("publish notification", "routing_key", key, "error", err)
	}
}
