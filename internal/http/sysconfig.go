package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

const maxConfigDocument = 1 << 20

// SystemConfigController exposes the system configuration document.
type SystemConfigController struct {
	manager *sysconfig.Manager
	audit   *audit.Service
	logger  *zap.Logger
}

func NewSystemConfigController(m *sysconfig.Manager, auditSvc *audit.Service, logger *zap.Logger) *SystemConfigController {
	return &SystemConfigController{manager: m, audit: auditSvc, logger: logger}
}

// Get handles GET /api/config.
func (sc *SystemConfigController) Get(c *gin.Context) {
	c.JSON(http.StatusOK, sc.manager.Current())
}

// Export handles GET /api/config/export as a YAML download.
func (sc *SystemConfigController) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := sc.manager.Export(&buf); err != nil {
		respondServiceError(c, sc.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="system.yaml"`)
	c.Data(http.StatusOK, "application/yaml", buf.Bytes())
}

// Import handles POST /api/config/import. The body is the document itself;
// its format comes from ?format= or the Content-Type (yaml by default).
// A rejected document leaves the current configuration in place.
func (sc *SystemConfigController) Import(c *gin.Context) {
	actor := principal(c)

	format := importFormat(c)
	if format == "" {
		respondBadRequest(c, "unsupported format: use yaml, json or toml")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigDocument+1))
	if err != nil {
		respondBadRequest(c, "failed to read request body")
		return
	}
	if len(body) == 0 || len(body) > maxConfigDocument {
		respondBadRequest(c, "configuration document must be between 1 byte and 1 MiB")
		return
	}

	path, cleanup, err := writeTemp(body, format)
	if err != nil {
		respondServiceError(c, sc.logger, err)
		return
	}
	defer cleanup()

	cfg, err := sc.manager.Import(path)
	sc.audit.LogConfig(actor.UserID, "config_import", "System configuration import", err)
	if err != nil {
		var verr *sysconfig.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   err.Error(),
				Code:    "invalid_configuration",
				Details: verr.Fields,
			})
			return
		}
		if errors.Is(err, sysconfig.ErrMalformed) || errors.Is(err, sysconfig.ErrUnsupportedFormat) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_configuration"})
			return
		}
		respondServiceError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func importFormat(c *gin.Context) string {
	format := strings.ToLower(c.Query("format"))
	if format == "" {
		switch ct := c.ContentType(); {
		case strings.Contains(ct, "json"):
			format = "json"
		case strings.Contains(ct, "toml"):
			format = "toml"
		default:
			format = "yaml"
		}
	}
	switch format {
	case "yaml", "yml", "json", "toml":
		return format
	}
	return ""
}

func writeTemp(body []byte, format string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "biblioteca-config-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to stage configuration: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "import."+format)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to stage configuration: %w", err)
	}
	return path, cleanup, nil
}
