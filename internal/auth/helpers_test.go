package auth

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/database/dbtest"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/database/users"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

const testPassword = "Circulation1"

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  24 * time.Hour,
		TokenExpiry:      720 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 5,
		RateLimitWindow:  15 * time.Minute,
		LockoutDuration:  30 * time.Minute,
	}
}

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t).DB
	svc := NewService(users.NewRepository(db), loans.NewRepository(db), testAuthConfig(), sysconfig.NewStatic(sysconfig.Defaults()), nil, nil)
	return svc, db
}

// createUser inserts an active user whose password is testPassword.
func createUser(t *testing.T, db *gorm.DB, username string, role entities.UserRole) *entities.User {
	t.Helper()
	hash, err := HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	user := &entities.User{
		Username:          username,
		Email:             username + "@example.com",
		PasswordHash:      hash,
		Role:              role,
		Active:            true,
		PasswordChangedAt: &now,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func principalOf(u *entities.User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}
