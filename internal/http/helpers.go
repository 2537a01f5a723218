package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/catalog"
	"github.com/mrlokans/biblioteca/internal/circulation"
	"github.com/mrlokans/biblioteca/internal/database/books"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/database/readers"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
	"github.com/mrlokans/biblioteca/internal/tasks"
	"github.com/mrlokans/biblioteca/internal/validation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrorResponse is the standard error body for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// PaginatedResponse wraps one page of results.
type PaginatedResponse struct {
	Data    any   `json:"data"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondPage(c *gin.Context, data any, total int64, limit, offset int) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+limit) < total,
	})
}

// errorStatus maps domain errors to a status and a machine-readable code.
// Unknown errors are storage failures and map to 500.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, books.ErrBookNotFound),
		errors.Is(err, readers.ErrReaderNotFound),
		errors.Is(err, loans.ErrLoanNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, books.ErrDuplicateISBN),
		errors.Is(err, readers.ErrDuplicateReader):
		return http.StatusConflict, "duplicate"

	case errors.Is(err, readers.ErrInvalidStatus),
		errors.Is(err, catalog.ErrStatusNotAssignable),
		errors.Is(err, circulation.ErrInvalidDueDate),
		errors.Is(err, loans.ErrInvalidReference),
		errors.Is(err, tasks.ErrUnknownTaskType):
		return http.StatusBadRequest, "invalid_request"

	case errors.Is(err, circulation.ErrBookUnavailable):
		return http.StatusConflict, "book_unavailable"
	case errors.Is(err, circulation.ErrReaderNotActive):
		return http.StatusConflict, "reader_not_active"
	case errors.Is(err, circulation.ErrMembershipExpired),
		errors.Is(err, catalog.ErrMembershipExpired):
		return http.StatusConflict, "membership_expired"
	case errors.Is(err, circulation.ErrReaderHasActiveLoan):
		return http.StatusConflict, "loan_limit_reached"
	case errors.Is(err, circulation.ErrLoanNotReturnable),
		errors.Is(err, circulation.ErrLoanNotOpen):
		return http.StatusConflict, "loan_not_open"
	case errors.Is(err, circulation.ErrActiveLoanDelete):
		return http.StatusConflict, "loan_open"
	case errors.Is(err, circulation.ErrFineNotFinal),
		errors.Is(err, circulation.ErrNoFineDue):
		return http.StatusConflict, "fine_not_payable"
	case errors.Is(err, books.ErrAvailabilityConstraint):
		return http.StatusConflict, "availability_conflict"
	case errors.Is(err, catalog.ErrCopiesOnLoan):
		return http.StatusConflict, "copies_on_loan"
	case errors.Is(err, catalog.ErrReaderHasOpenLoans):
		return http.StatusConflict, "reader_has_loans"
	}
	return http.StatusInternalServerError, ""
}

// respondServiceError writes the mapped error. 500s are logged and the
// cause is not exposed.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var verr *validation.Error
	var serr *sysconfig.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Details = verr.Fields
	case errors.As(err, &serr):
		resp.Details = serr.Fields
	}
	c.JSON(status, resp)
}

// principal returns the authenticated caller. The auth middleware runs
// before every handler that calls it.
func principal(c *gin.Context) auth.Principal {
	if p, ok := auth.GetPrincipal(c); ok {
		return *p
	}
	return auth.Principal{}
}

// parseIDParam extracts a positive integer ID from the URL path or responds 400.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// pagination reads limit/offset query parameters with defaults and bounds.
func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// bindJSON decodes the body into v or responds 400.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
