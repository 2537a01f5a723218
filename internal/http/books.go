package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/catalog"
	"github.com/mrlokans/biblioteca/internal/database/books"
)

type BooksController struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewBooksController(svc *catalog.Service, logger *zap.Logger) *BooksController {
	return &BooksController{catalog: svc, logger: logger}
}

// List handles GET /api/books?q=&category=&available=&include_inactive=
func (bc *BooksController) List(c *gin.Context) {
	limit, offset := pagination(c)
	available, _ := strconv.ParseBool(c.Query("available"))
	inactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	page, err := bc.catalog.SearchBooks(c.Request.Context(), principal(c), books.SearchFilter{
		Query:           c.Query("q"),
		Category:        c.Query("category"),
		AvailableOnly:   available,
		IncludeInactive: inactive,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		respondServiceError(c, bc.logger, err)
		return
	}
	respondPage(c, page.Items, page.Total, limit, offset)
}

func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.GetBook(c.Request.Context(), principal(c), id)
	if err != nil {
		respondServiceError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (bc *BooksController) GetByISBN(c *gin.Context) {
	book, err := bc.catalog.GetBookByISBN(c.Request.Context(), principal(c), c.Param("isbn"))
	if err != nil {
		respondServiceError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (bc *BooksController) Create(c *gin.Context) {
	var in catalog.BookInput
	if !bindJSON(c, &in) {
		return
	}
	book, err := bc.catalog.CreateBook(c.Request.Context(), principal(c), in)
	if err != nil {
		respondServiceError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in catalog.BookInput
	if !bindJSON(c, &in) {
		return
	}
	book, err := bc.catalog.UpdateBook(c.Request.Context(), principal(c), id, in)
	if err != nil {
		respondServiceError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// Delete handles DELETE /api/books/:id. Books are deactivated, not removed.
func (bc *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.catalog.DeactivateBook(c.Request.Context(), principal(c), id); err != nil {
		respondServiceError(c, bc.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
