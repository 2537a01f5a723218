package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/catalog"
	"github.com/mrlokans/biblioteca/internal/database/readers"
	"github.com/mrlokans/biblioteca/internal/entities"
)

type ReadersController struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewReadersController(svc *catalog.Service, logger *zap.Logger) *ReadersController {
	return &ReadersController{catalog: svc, logger: logger}
}

// List handles GET /api/readers?q=&status=
func (rc *ReadersController) List(c *gin.Context) {
	limit, offset := pagination(c)
	page, err := rc.catalog.SearchReaders(c.Request.Context(), principal(c), readers.SearchFilter{
		Query:  c.Query("q"),
		Status: entities.ReaderStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	respondPage(c, page.Items, page.Total, limit, offset)
}

func (rc *ReadersController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	reader, err := rc.catalog.GetReader(c.Request.Context(), principal(c), id)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, reader)
}

func (rc *ReadersController) GetByCode(c *gin.Context) {
	reader, err := rc.catalog.GetReaderByCode(c.Request.Context(), principal(c), c.Param("code"))
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, reader)
}

func (rc *ReadersController) Create(c *gin.Context) {
	var in catalog.ReaderInput
	if !bindJSON(c, &in) {
		return
	}
	reader, err := rc.catalog.CreateReader(c.Request.Context(), principal(c), in)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, reader)
}

func (rc *ReadersController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in catalog.ReaderInput
	if !bindJSON(c, &in) {
		return
	}
	reader, err := rc.catalog.UpdateReader(c.Request.Context(), principal(c), id, in)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, reader)
}

type statusRequest struct {
	Status entities.ReaderStatus `json:"status" binding:"required"`
}

// SetStatus handles POST /api/readers/:id/status.
func (rc *ReadersController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	reader, err := rc.catalog.SetReaderStatus(c.Request.Context(), principal(c), id, req.Status)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, reader)
}

// Delete handles DELETE /api/readers/:id by deactivating the reader.
func (rc *ReadersController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rc.catalog.DeactivateReader(c.Request.Context(), principal(c), id); err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
