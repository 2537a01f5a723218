package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/entities"
)

// Session is one client's login state. Each client (HTTP login, CLI run,
// test) owns its own Session; nothing is shared between them.
type Session struct {
	svc       *Service
	mu        sync.RWMutex
	principal *Principal
}

// NewSession returns a logged-out session bound to the service.
func (s *Service) NewSession() *Session {
	return &Session{svc: s}
}

// Login authenticates and, on success, makes the user current. Every
// failure (unknown user, wrong password, inactive, locked) returns false.
func (s *Session) Login(ctx context.Context, username, password string) bool {
	p, err := s.svc.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrAccountLocked) {
			s.svc.logger.Error("login failed", zap.String("username", username), zap.Error(err))
		}
		return false
	}

	s.mu.Lock()
	s.principal = p
	s.mu.Unlock()
	return true
}

// Logout clears the current principal.
func (s *Session) Logout() {
	s.mu.Lock()
	s.principal = nil
	s.mu.Unlock()
}

// Current returns a copy of the logged-in principal, or nil.
func (s *Session) Current() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

func (s *Session) HasPermission(p Permission) bool {
	cur := s.Current()
	return cur != nil && cur.Can(p)
}

// CanCreate reports whether the logged-in user may create accounts of role.
func (s *Session) CanCreate(role entities.UserRole) bool {
	cur := s.Current()
	return cur != nil && cur.Can(PermUsersManage) && CanCreate(cur.Role, role)
}
