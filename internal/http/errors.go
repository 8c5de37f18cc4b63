package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/logging"
	"github.com/Buooy/ergon-pm/internal/source"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to its HTTP status and client-facing message.
// Storage failures are reported without their details.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, source.ErrUnsupported):
		return http.StatusNotImplemented, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", append(logging.ContextFields(c.Request().Context()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)...)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newValidator() *requestValidator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate reports the first failing field as ErrInvalidInput.
func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", storage.ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", storage.ErrInvalidInput)
	}
	return c.Validate(req)
}
