package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for principal data
const (
	ContextKeyPrincipal = "auth_principal"
	ContextKeyAuthType  = "auth_type" // "session" or "bearer"
)

// AuthType indicates how the principal was authenticated
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Middleware resolves the acting principal for HTTP requests.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	publicPaths    map[string]bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		publicPaths: map[string]bool{
			"/health":         true,
			"/ping":           true,
			"/api/auth/login": true,
			"/api/auth/csrf":  true,
		},
	}
}

// Handler authenticates every non-public request by Bearer token first and
// session cookie second. Unauthenticated requests get 401.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.publicPaths[c.Request.URL.Path] {
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
			return
		}

		if p := m.tryBearerAuth(c); p != nil {
			setPrincipal(c, p, AuthTypeBearer)
			c.Next()
			return
		}

		if p := m.trySessionAuth(c); p != nil {
			setPrincipal(c, p, AuthTypeSession)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (m *Middleware) tryBearerAuth(c *gin.Context) *Principal {
	token := bearerToken(c)
	if token == "" {
		return nil
	}
	p, err := m.service.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return p
}

func (m *Middleware) trySessionAuth(c *gin.Context) *Principal {
	if m.sessionManager == nil {
		return nil
	}
	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}
	p, err := m.service.PrincipalByID(c.Request.Context(), userID)
	if err != nil {
		// Deactivated or deleted since login.
		_ = m.sessionManager.DestroySession(c.Request)
		return nil
	}
	return p
}

func setPrincipal(c *gin.Context, p *Principal, authType AuthType) {
	c.Set(ContextKeyPrincipal, p)
	c.Set(ContextKeyAuthType, authType)
}

// RequirePermission aborts with 403 unless the principal holds perm.
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !p.Can(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      "insufficient permissions",
				"permission": perm,
			})
			return
		}
		c.Next()
	}
}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	if v, exists := c.Get(ContextKeyPrincipal); exists {
		if p, ok := v.(*Principal); ok && p != nil {
			return p, true
		}
	}
	return nil, false
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}
