package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/database/users"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
	"github.com/mrlokans/biblioteca/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is locked due to too many failed login attempts")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUsersExist         = errors.New("users already exist")
	ErrSelfAction         = errors.New("cannot perform this action on your own account")
	ErrUsernameInvalid    = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid       = errors.New("invalid email format")
)

// NewUser carries the fields needed to create a staff account.
type NewUser struct {
	Username string            `json:"username" binding:"required" validate:"min=3,max=64,handle"`
	Email    string            `json:"email" binding:"required" validate:"max=254,email"`
	FullName string            `json:"full_name"`
	Password string            `json:"password" binding:"required"`
	Role     entities.UserRole `json:"role" binding:"required"`
}

// Service handles authentication and staff administration.
type Service struct {
	users   *users.Repository
	loans   *loans.Repository
	config  config.Auth
	sys     *sysconfig.Manager
	audit   *audit.Service
	archive *audit.Archive
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new authentication service.
// loanRepo is consulted before a staff account is deleted.
func NewService(repo *users.Repository, loanRepo *loans.Repository, cfg config.Auth, sys *sysconfig.Manager, auditSvc *audit.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:  repo,
		loans:  loanRepo,
		config: cfg,
		sys:    sys,
		audit:  auditSvc,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithArchive makes DeleteUser keep a JSON snapshot of removed accounts.
func (s *Service) WithArchive(a *audit.Archive) *Service {
	s.archive = a
	return s
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for the audit trail.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// Authenticate validates credentials and returns the principal.
// Unknown users, wrong passwords and inactive accounts all yield
// ErrInvalidCredentials. A locked account yields ErrAccountLocked without
// checking the password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	repo := s.users.WithContext(ctx)
	policy := s.sys.Current().Password

	user, err := repo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			// Keep timing close to the real path.
			_ = CheckPassword(password, dummyHash)
			s.audit.LogAuth(0, "login", username, clientIP(ctx), false)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		s.audit.LogAuth(user.ID, "login_locked", username, clientIP(ctx), false)
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			return nil, err
		}
		lockedUntil := now.Add(time.Duration(policy.LockoutMinutes) * time.Minute)
		if err := repo.RecordLoginFailure(user.ID, policy.LockoutThreshold, lockedUntil); err != nil {
			s.logger.Error("failed to record login failure", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		s.audit.LogAuth(user.ID, "login", username, clientIP(ctx), false)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		s.audit.LogAuth(user.ID, "login_inactive", username, clientIP(ctx), false)
		return nil, ErrInvalidCredentials
	}

	if err := repo.RecordLoginSuccess(user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	s.audit.LogAuth(user.ID, "login", username, clientIP(ctx), true)

	return principalFromUser(user, PasswordExpired(policy, user.PasswordChangedAt, now)), nil
}

// dummyHash is a bcrypt hash compared against when the user does not exist.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZsQ7VzVqg0xVJ1r6a1bC2e"

// PrincipalByID loads an active user's principal, e.g. from a session cookie.
func (s *Service) PrincipalByID(ctx context.Context, id uint) (*Principal, error) {
	user, err := s.users.WithContext(ctx).GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	return principalFromUser(user, PasswordExpired(s.sys.Current().Password, user.PasswordChangedAt, s.now())), nil
}

// ValidateToken checks a plaintext API token and returns its owner.
// Returns ErrTokenExpired if the token is past its expiry time.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.WithContext(ctx).GetUserByTokenHash(HashToken(token))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidToken
	}

	if s.config.TokenExpiry > 0 && user.TokenCreatedAt != nil {
		if s.now().Sub(*user.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}

	return principalFromUser(user, PasswordExpired(s.sys.Current().Password, user.PasswordChangedAt, s.now())), nil
}

// CreateUser creates a staff account. The actor needs users:manage and may
// only create roles strictly below its own.
func (s *Service) CreateUser(ctx context.Context, actor Principal, input NewUser) (*entities.User, error) {
	if err := actor.Require(PermUsersManage); err != nil {
		return nil, err
	}
	if !ValidRole(input.Role) {
		return nil, ErrInvalidRole
	}
	if !CanCreate(actor.Role, input.Role) {
		return nil, fmt.Errorf("%w: %s cannot create %s", ErrForbidden, actor.Role, input.Role)
	}

	user, err := s.createUser(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.LogUsers(actor.UserID, "user_create", user.ID,
		fmt.Sprintf("Created %s %s", user.Role, user.Username))
	return user, nil
}

// Bootstrap creates the first SUPERADMIN. It fails once any user exists.
func (s *Service) Bootstrap(ctx context.Context, input NewUser) (*entities.User, error) {
	hasUsers, err := s.HasUsers(ctx)
	if err != nil {
		return nil, err
	}
	if hasUsers {
		return nil, ErrUsersExist
	}

	input.Role = entities.UserRoleSuperAdmin
	user, err := s.createUser(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.LogUsers(0, "user_bootstrap", user.ID, "Created initial superadmin "+user.Username)
	s.logger.Info("created initial superadmin", zap.String("username", user.Username))
	return user, nil
}

// validateNewUser maps tag failures on the identity fields to the
// service's sentinel errors.
func validateNewUser(input NewUser) error {
	err := validation.Struct(input)
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return err
	}
	for _, f := range verr.Fields {
		switch f.Field {
		case "username":
			return fmt.Errorf("%w: %w", ErrUsernameInvalid, err)
		case "email":
			return fmt.Errorf("%w: %w", ErrEmailInvalid, err)
		}
	}
	return err
}

func (s *Service) createUser(ctx context.Context, input NewUser) (*entities.User, error) {
	if err := validateNewUser(input); err != nil {
		return nil, err
	}
	hash, err := NewPasswordHash(s.sys.Current().Password, input.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entities.User{
		Username:          input.Username,
		Email:             input.Email,
		FullName:          input.FullName,
		PasswordHash:      hash,
		Role:              input.Role,
		Active:            true,
		PasswordChangedAt: &now,
	}
	if err := s.users.WithContext(ctx).CreateUser(user); err != nil {
		if errors.Is(err, users.ErrDuplicateUser) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// ListUsers returns every staff account.
func (s *Service) ListUsers(ctx context.Context, actor Principal) ([]entities.User, error) {
	if err := actor.Require(PermUsersManage); err != nil {
		return nil, err
	}
	return s.users.WithContext(ctx).ListUsers()
}

// targetFor loads the user an administrative action applies to and checks
// that actor outranks it.
func (s *Service) targetFor(ctx context.Context, actor Principal, id uint) (*entities.User, error) {
	if err := actor.Require(PermUsersManage); err != nil {
		return nil, err
	}
	if actor.UserID == id {
		return nil, ErrSelfAction
	}
	target, err := s.users.WithContext(ctx).GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if !CanCreate(actor.Role, target.Role) {
		return nil, fmt.Errorf("%w: %s cannot administer %s", ErrForbidden, actor.Role, target.Role)
	}
	return target, nil
}

// DeactivateUser soft-deletes an account and revokes its API token.
func (s *Service) DeactivateUser(ctx context.Context, actor Principal, id uint) error {
	target, err := s.targetFor(ctx, actor, id)
	if err != nil {
		return err
	}
	repo := s.users.WithContext(ctx)
	if err := repo.SetActive(id, false); err != nil {
		return err
	}
	if err := repo.SetTokenHash(id, "", nil); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.audit.LogUsers(actor.UserID, "user_deactivate", id, "Deactivated "+target.Username)
	return nil
}

// DeleteUser removes an account permanently. Accounts referenced by loans
// fail with users.ErrUserReferenced and must be deactivated instead.
func (s *Service) DeleteUser(ctx context.Context, actor Principal, id uint) error {
	target, err := s.targetFor(ctx, actor, id)
	if err != nil {
		return err
	}
	refs, err := s.loans.WithContext(ctx).CountByUser(id)
	if err != nil {
		return fmt.Errorf("failed to count loans: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: %d loans", users.ErrUserReferenced, refs)
	}
	if err := s.users.WithContext(ctx).DeleteUser(id); err != nil {
		return err
	}
	if _, err := s.archive.Save("user", actor.UserID, target); err != nil {
		s.logger.Warn("failed to archive deleted user", zap.Uint("user_id", id), zap.Error(err))
	}
	s.audit.LogUsers(actor.UserID, "user_delete", id, "Deleted "+target.Username)
	return nil
}

// ChangePassword replaces the actor's own password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, actor Principal, oldPassword, newPassword string) error {
	repo := s.users.WithContext(ctx)
	user, err := repo.GetUserByID(actor.UserID)
	if err != nil {
		return err
	}

	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}
	newHash, err := NewPasswordHash(s.sys.Current().Password, newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	if err := repo.UpdatePassword(user.ID, newHash, s.now()); err != nil {
		return err
	}
	s.audit.LogUsers(actor.UserID, "password_change", user.ID, "Password changed")
	return nil
}

// GenerateToken creates a new API token for a user.
// Returns the plaintext token (show to user once) - only the hash is stored in DB.
func (s *Service) GenerateToken(ctx context.Context, userID uint) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	if err := s.users.WithContext(ctx).SetTokenHash(userID, hash, &now); err != nil {
		return "", err
	}
	s.audit.LogUsers(userID, "token_generate", userID, "API token issued")
	return plaintext, nil
}

// RevokeToken removes a user's API token.
func (s *Service) RevokeToken(ctx context.Context, userID uint) error {
	if err := s.users.WithContext(ctx).SetTokenHash(userID, "", nil); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.audit.LogUsers(userID, "token_revoke", userID, "API token revoked")
	return nil
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	count, err := s.users.WithContext(ctx).CountUsers()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LogLogout records the end of an interactive session.
func (s *Service) LogLogout(ctx context.Context, p Principal) {
	s.audit.LogAuth(p.UserID, "logout", p.Username, clientIP(ctx), true)
}
