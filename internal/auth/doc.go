// Package auth authenticates staff and authorizes what they may do.
//
// Staff log in with a username and password (bcrypt hashes in the usuarios
// table). Repeated failures lock the account for the period set in the
// system configuration's password policy; a separate in-memory limiter
// throttles attempts per client IP.
//
// Every domain operation takes the acting Principal and calls
// Principal.Require with the Permission it needs. Roles are ordered
// SUPERADMIN > ADMIN > LIBRARIAN and a role may only create or administer
// roles strictly below itself.
//
// # HTTP
//
// Browsers use scs cookie sessions stored in the sessions table, protected
// by gorilla/csrf. API clients send a Bearer token issued by
// POST /api/auth/token; only its SHA-256 hash is stored.
//
//	mw := auth.NewMiddleware(authService, sessionManager)
//	api.Use(mw.Handler())
//	api.POST("/loans", auth.RequirePermission(auth.PermLoansIssue), handler)
package auth
