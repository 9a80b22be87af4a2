package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Eursukkul/token-bidding/internal/dto"
	"github.com/Eursukkul/token-bidding/internal/service"
)

// ErrorHandler renders every error as a failed envelope. Handlers attach the
// service error as the HTTPError's internal error so its kind can be reported.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	kind := ""

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
		if he.Internal != nil {
			kind = string(service.KindOf(he.Internal))
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, dto.Fail(kind, msg))
}
