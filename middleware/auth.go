package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/store"
	"github.com/ringsight/ringsight/utils"
)

const (
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "session"
	// ContextUserKey is the key used to store the resolved user in Gin context.
	ContextUserKey = "current_user"
)

// SessionRequired resolves the session cookie (or a Bearer token fallback) to
// an existing user row and stores it in the request context. Every failure
// path fails closed with 401; there is no anonymous fallback.
func SessionRequired(users store.Users) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := sessionToken(ctx)
		if token == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(token) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "session revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseSessionToken(token)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid session")
			ctx.Abort()
			return
		}

		user, err := users.GetByID(ctx.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.Error(ctx, http.StatusUnauthorized, 40106, "unknown user")
			} else {
				utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to resolve session")
			}
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// CurrentUser returns the user resolved by SessionRequired.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func sessionToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
