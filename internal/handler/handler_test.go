package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eursukkul/token-bidding/internal/dto"
	"github.com/Eursukkul/token-bidding/internal/middleware"
	"github.com/Eursukkul/token-bidding/internal/models"
	"github.com/Eursukkul/token-bidding/internal/service"
)

func newHandler(svc Services, n Notifier) *BiddingHandler {
	return NewBiddingHandler(svc, n, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) (dto.Envelope, map[string]any) {
	t.Helper()
	var env dto.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	data, _ := env.Data.(map[string]any)
	return env, data
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	return he.Code
}

func TestSubmitBid_Success(t *testing.T) {
	mock := &mockBidService{
		submitFn: func(ctx context.Context, p string, oppID uint, amount int) (*models.Bid, error) {
			assert.Equal(t, "stu-1", p)
			assert.Equal(t, uint(4), oppID)
			assert.Equal(t, 1, amount, "amount defaults to one token")
			return &models.Bid{ID: 10, ParticipantID: p, OpportunityID: oppID, Amount: amount, Status: models.BidPlaced, SubmittedAt: time.Now()}, nil
		},
	}
	n := &recordingNotifier{}
	h := newHandler(Services{Bids: mock}, n)

	c, rec := newContext(http.MethodPost, "/", `{"participant_id":"stu-1"}`)
	c.SetParamNames("id")
	c.SetParamValues("4")

	require.NoError(t, h.SubmitBid(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	env, data := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "placed", data["status"])

	require.Len(t, n.sent, 1)
	assert.Equal(t, EventBidSubmitted, n.sent[0].key)
}

func TestSubmitBid_ErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrOpportunityNotFound, http.StatusNotFound},
		{service.ErrWindowClosed, http.StatusConflict},
		{service.ErrNotEnrolled, http.StatusNotFound},
		{service.ErrInsufficientToken, http.StatusConflict},
		{service.ErrDuplicateBid, http.StatusConflict},
		{service.ErrInvalidArgument, http.StatusBadRequest},
		{service.ErrStoreUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			mock := &mockBidService{
				submitFn: func(ctx context.Context, p string, oppID uint, amount int) (*models.Bid, error) {
					return nil, tt.err
				},
			}
			n := &recordingNotifier{}
			h := newHandler(Services{Bids: mock}, n)
			c, _ := newContext(http.MethodPost, "/", `{"participant_id":"stu-1"}`)
			c.SetParamNames("id")
			c.SetParamValues("1")

			err := h.SubmitBid(c)
			assert.Equal(t, tt.code, httpCode(t, err))
			assert.Empty(t, n.sent, "nothing is published for a failed mutation")
		})
	}
}

func TestSubmitBid_BadInput(t *testing.T) {
	h := newHandler(Services{Bids: &mockBidService{}}, nil)

	c, _ := newContext(http.MethodPost, "/", `{"participant_id":"stu-1"}`)
	c.SetParamNames("id")
	c.SetParamValues("abc")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.SubmitBid(c)))

	c, _ = newContext(http.MethodPost, "/", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("1")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.SubmitBid(c)))
}

func TestWithdrawBid_PublishFailureIsNotReturned(t *testing.T) {
	mock := &mockBidService{
		withdrawFn: func(ctx context.Context, p string, oppID uint) error { return nil },
	}
	n := &recordingNotifier{err: errors.New("broker down")}
	h := newHandler(Services{Bids: mock}, n)

	c, rec := newContext(http.MethodDelete, "/", "")
	c.SetParamNames("id", "participantId")
	c.SetParamValues("2", "stu-9")

	require.NoError(t, h.WithdrawBid(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, n.sent, 1)
	assert.Equal(t, EventBidWithdrawn, n.sent[0].key)
}

func TestRunSelection_DefaultsToOpportunityCapacity(t *testing.T) {
	opps := &mockOpportunityService{
		getFn: func(ctx context.Context, id uint) (*models.Opportunity, error) {
			return &models.Opportunity{ID: id, Capacity: 7}, nil
		},
	}
	sel := &mockSelectionService{
		runFn: func(ctx context.Context, oppID uint, capacity int) (*service.SelectionResult, error) {
			assert.Equal(t, 7, capacity)
			return &service.SelectionResult{OpportunityID: oppID, Mode: service.ModeAutoAdmit, Capacity: capacity}, nil
		},
	}
	h := newHandler(Services{Opportunities: opps, Selection: sel}, nil)

	c, rec := newContext(http.MethodPost, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("3")

	require.NoError(t, h.RunSelection(c))
	_, data := decode(t, rec)
	assert.Equal(t, "auto_admit", data["mode"])
}

func TestRunSelection_ExplicitCapacity(t *testing.T) {
	sel := &mockSelectionService{
		runFn: func(ctx context.Context, oppID uint, capacity int) (*service.SelectionResult, error) {
			return nil, service.ErrCapacityInvalid
		},
	}
	h := newHandler(Services{Selection: sel}, nil)

	c, _ := newContext(http.MethodPost, "/", `{"capacity":0}`)
	c.SetParamNames("id")
	c.SetParamValues("3")

	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.RunSelection(c)))
}

func TestDeleteGroup_ReturnsCounts(t *testing.T) {
	cascade := &mockCascadeService{
		deleteGroupFn: func(ctx context.Context, id uint) (service.DeletionCounts, error) {
			return service.DeletionCounts{Enrollments: 3, Opportunities: 1, Bids: 2, LedgerEntries: 2}, nil
		},
	}
	h := newHandler(Services{Cascade: cascade}, nil)

	c, rec := newContext(http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("8")

	require.NoError(t, h.DeleteGroup(c))
	_, data := decode(t, rec)
	assert.Equal(t, float64(3), data["enrollments"])
	assert.Equal(t, float64(2), data["ledger_entries"])
}

func TestGetBalance(t *testing.T) {
	ledger := &mockLedgerService{
		balanceFn: func(ctx context.Context, p string, g uint) (*models.Balance, error) {
			return &models.Balance{ParticipantID: p, GroupID: g, TokensRemaining: 1, TokenStatus: models.TokenUnused}, nil
		},
	}
	h := newHandler(Services{Ledger: ledger}, nil)

	c, rec := newContext(http.MethodGet, "/", "")
	c.SetParamNames("id", "participantId")
	c.SetParamValues("5", "stu-2")

	require.NoError(t, h.GetBalance(c))
	_, data := decode(t, rec)
	assert.Equal(t, float64(1), data["tokens_remaining"])
	assert.Equal(t, "stu-2", data["participant_id"])
}

// Routes, error handler and envelope end to end.
func TestRoutes_ErrorEnvelope(t *testing.T) {
	ledger := &mockLedgerService{
		topUpFn: func(ctx context.Context, p string, g uint) (*models.Balance, error) {
			return nil, service.ErrInvalidState
		},
	}
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	newHandler(Services{Ledger: ledger}, nil).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/1/participants/stu-1/topup", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env, _ := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "InvalidState", env.ErrorKind)
}

func TestRoutes_StoreUnavailableHidesDetail(t *testing.T) {
	ledger := &mockLedgerService{
		reconcileFn: func(ctx context.Context, g uint) ([]service.Discrepancy, error) {
			return nil, &service.Error{Kind: service.KindStoreUnavailable, Message: "store error", Err: errors.New("dial tcp 10.0.0.5:5432")}
		},
	}
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	newHandler(Services{Ledger: ledger}, nil).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/1/reconciliation", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	env, _ := decode(t, rec)
	assert.Equal(t, "StoreUnavailable", env.ErrorKind)
}
