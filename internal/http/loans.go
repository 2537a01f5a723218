package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/circulation"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/entities"
)

type LoansController struct {
	circulation *circulation.Service
	logger      *zap.Logger
}

func NewLoansController(svc *circulation.Service, logger *zap.Logger) *LoansController {
	return &LoansController{circulation: svc, logger: logger}
}

// List handles GET /api/loans?status=&reader_id=&book_id=
func (lc *LoansController) List(c *gin.Context) {
	limit, offset := pagination(c)
	filter := loans.Filter{Limit: limit, Offset: offset}
	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, entities.LoanStatus(s))
	}
	if v, err := strconv.ParseUint(c.Query("reader_id"), 10, 64); err == nil {
		filter.ReaderID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("book_id"), 10, 64); err == nil {
		filter.BookID = uint(v)
	}

	page, err := lc.circulation.ListLoans(c.Request.Context(), principal(c), filter)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	respondPage(c, page.Items, page.Total, limit, offset)
}

func (lc *LoansController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	loan, err := lc.circulation.GetLoan(c.Request.Context(), principal(c), id)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (lc *LoansController) Create(c *gin.Context) {
	var req circulation.IssueRequest
	if !bindJSON(c, &req) {
		return
	}
	loan, err := lc.circulation.CreateLoan(c.Request.Context(), principal(c), req)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// Return handles POST /api/loans/:id/return. The body is optional.
func (lc *LoansController) Return(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req circulation.ReturnRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	loan, err := lc.circulation.ReturnLoan(c.Request.Context(), principal(c), id, req)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

type lostRequest struct {
	Observations string `json:"observations"`
}

func (lc *LoansController) MarkLost(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req lostRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	loan, err := lc.circulation.MarkLost(c.Request.Context(), principal(c), id, req.Observations)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (lc *LoansController) PayFine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	loan, err := lc.circulation.PayFine(c.Request.Context(), principal(c), id)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (lc *LoansController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := lc.circulation.DeleteLoan(c.Request.Context(), principal(c), id); err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (lc *LoansController) Overdue(c *gin.Context) {
	page, err := lc.circulation.ListOverdue(c.Request.Context(), principal(c))
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": page.Items, "total": page.Total})
}

// DueSoon handles GET /api/loans/due-soon?days=N.
func (lc *LoansController) DueSoon(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	page, err := lc.circulation.ListDueSoon(c.Request.Context(), principal(c), days)
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": page.Items, "total": page.Total})
}

// Fines handles GET /api/loans/fines: open loans with a positive fine as of today.
func (lc *LoansController) Fines(c *gin.Context) {
	list, err := lc.circulation.ListWithFines(c.Request.Context(), principal(c))
	if err != nil {
		respondServiceError(c, lc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}
