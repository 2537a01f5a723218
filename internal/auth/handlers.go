package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/database/users"
)

// AuthController serves login, logout and credential endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	logger         *zap.Logger
}

// NewAuthController creates a new authentication controller.
func NewAuthController(service *Service, sessionManager *SessionManager, cfg config.Auth, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
		logger: logger,
	}
}

// RegisterRoutes registers authentication and user administration routes
// under the given /api group.
func (ac *AuthController) RegisterRoutes(api *gin.RouterGroup) {
	authGroup := api.Group("/auth")
	authGroup.POST("/login", ac.Login)
	authGroup.POST("/logout", ac.Logout)
	authGroup.GET("/me", ac.Me)
	authGroup.GET("/csrf", ac.CSRFToken)
	authGroup.POST("/token", ac.GenerateToken)
	authGroup.DELETE("/token", ac.RevokeToken)
	authGroup.POST("/password", ac.ChangePassword)

	usersGroup := api.Group("/users", RequirePermission(PermUsersManage))
	usersGroup.GET("", ac.ListUsers)
	usersGroup.POST("", ac.CreateUser)
	usersGroup.POST("/:id/deactivate", ac.DeactivateUser)
	usersGroup.DELETE("/:id", ac.DeleteUser)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates with a username and password and starts a cookie session.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	clientIP := c.ClientIP()

	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, req.Username); !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.String(),
		})
		return
	}

	session := ac.service.NewSession()
	if !session.Login(WithClientIP(c.Request.Context(), clientIP), req.Username, req.Password) {
		ac.rateLimiter.RecordFailure(clientIP, req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
		return
	}
	ac.rateLimiter.RecordSuccess(clientIP, req.Username)

	principal := session.Current()
	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, principal); err != nil {
			ac.logger.Error("failed to create session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": principal})
}

// Logout destroys the cookie session.
func (ac *AuthController) Logout(c *gin.Context) {
	if p, ok := GetPrincipal(c); ok {
		ac.service.LogLogout(WithClientIP(c.Request.Context(), c.ClientIP()), *p)
	}
	if ac.sessionManager != nil {
		if err := ac.sessionManager.DestroySession(c.Request); err != nil {
			ac.logger.Warn("failed to destroy session", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the current principal.
func (ac *AuthController) Me(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        p,
		"auth_type":   GetAuthType(c),
		"permissions": permissionsOf(*p),
	})
}

// CSRFToken hands the CSRF token to clients that cannot read the cookie.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.Header(CSRFTokenHeader, GetCSRFToken(c))
	c.JSON(http.StatusOK, gin.H{"csrf_token": GetCSRFToken(c)})
}

// GenerateToken creates a new API token for the authenticated user.
func (ac *AuthController) GenerateToken(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, err := ac.service.GenerateToken(c.Request.Context(), p.UserID)
	if err != nil {
		ac.logger.Error("failed to generate token", zap.Uint("user_id", p.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

// RevokeToken revokes the API token for the authenticated user.
func (ac *AuthController) RevokeToken(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := ac.service.RevokeToken(c.Request.Context(), p.UserID); err != nil {
		ac.logger.Error("failed to revoke token", zap.Uint("user_id", p.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the caller's own password.
func (ac *AuthController) ChangePassword(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old_password and new_password are required"})
		return
	}

	if err := ac.service.ChangePassword(c.Request.Context(), *p, req.OldPassword, req.NewPassword); err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// ListUsers returns every staff account.
func (ac *AuthController) ListUsers(c *gin.Context) {
	p, _ := GetPrincipal(c)
	list, err := ac.service.ListUsers(c.Request.Context(), *p)
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "total": len(list)})
}

// CreateUser creates a staff account below the caller's role.
func (ac *AuthController) CreateUser(c *gin.Context) {
	p, _ := GetPrincipal(c)
	var req NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email, password and role are required"})
		return
	}

	user, err := ac.service.CreateUser(c.Request.Context(), *p, req)
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// DeactivateUser soft-deletes an account.
func (ac *AuthController) DeactivateUser(c *gin.Context) {
	p, _ := GetPrincipal(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := ac.service.DeactivateUser(c.Request.Context(), *p, id); err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deactivated"})
}

// DeleteUser removes an account that no loan references.
func (ac *AuthController) DeleteUser(c *gin.Context) {
	p, _ := GetPrincipal(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := ac.service.DeleteUser(c.Request.Context(), *p, id); err != nil {
		ac.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (ac *AuthController) respondError(c *gin.Context, err error) {
	var policyErr *PasswordPolicyError
	switch {
	case errors.As(err, &policyErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "violations": policyErr.Violations})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrDuplicateUser), errors.Is(err, users.ErrUserReferenced):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrUsernameInvalid),
		errors.Is(err, ErrEmailInvalid), errors.Is(err, ErrSelfAction), errors.Is(err, ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		ac.logger.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func permissionsOf(p Principal) []Permission {
	var perms []Permission
	for _, perm := range superAdminPermissions {
		if p.Can(perm) {
			perms = append(perms, perm)
		}
	}
	return perms
}
