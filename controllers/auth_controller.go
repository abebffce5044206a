package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ringsight/ringsight/config"
	"github.com/ringsight/ringsight/middleware"
	"github.com/ringsight/ringsight/oura"
	"github.com/ringsight/ringsight/store"
	"github.com/ringsight/ringsight/utils"
)

const stateCookieName = "oauth_state"

// OAuthProvider is the slice of the vendor client the auth flow needs.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (oura.Token, error)
	PersonalInfo(ctx context.Context, accessToken string) (oura.PersonalInfo, error)
}

// AuthController handles the Oura OAuth flow and session endpoints.
type AuthController struct {
	users    store.Users
	provider OAuthProvider
}

// NewAuthController creates an AuthController.
func NewAuthController(users store.Users, provider OAuthProvider) *AuthController {
	return &AuthController{users: users, provider: provider}
}

// StartOAuth redirects the browser to the vendor authorization URL and plants
// the single-use CSRF state, both server-side and as a short-lived cookie.
func (a *AuthController) StartOAuth(ctx *gin.Context) {
	cfg := config.Get()
	state := uuid.NewString()

	stateTTL := time.Duration(cfg.StateTTLMinutes) * time.Minute
	utils.SaveState(state, stateTTL)
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(stateCookieName, state, int(stateTTL.Seconds()), "/", "", secureCookies(cfg), true)

	ctx.Redirect(http.StatusFound, a.provider.AuthCodeURL(state))
}

// Callback finishes the OAuth flow: validates state, exchanges the code,
// upserts the identity, and issues the session cookie. Every failure redirects
// back to the landing page with an error reason.
func (a *AuthController) Callback(ctx *gin.Context) {
	cfg := config.Get()

	if vendorErr := ctx.Query("error"); vendorErr != "" {
		a.redirectWithError(ctx, vendorErr)
		return
	}

	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		a.redirectWithError(ctx, "missing_parameters")
		return
	}

	// The state must match the cookie planted at initiation AND still be
	// present in the single-use store.
	savedState, err := ctx.Cookie(stateCookieName)
	if err != nil || savedState != state || !utils.ConsumeState(state) {
		a.redirectWithError(ctx, "invalid_state")
		return
	}

	tok, err := a.provider.Exchange(ctx.Request.Context(), code)
	if err != nil {
		utils.Sugar.Errorf("oauth code exchange failed: %v", err)
		a.redirectWithError(ctx, "oauth_failed")
		return
	}

	info, err := a.provider.PersonalInfo(ctx.Request.Context(), tok.AccessToken)
	if err != nil {
		utils.Sugar.Errorf("oura personal info fetch failed: %v", err)
		a.redirectWithError(ctx, "oauth_failed")
		return
	}

	user, err := a.users.UpsertIdentity(ctx.Request.Context(), info.ID, info.Email, store.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	})
	if err != nil {
		utils.Sugar.Errorf("identity upsert failed: %v", err)
		a.redirectWithError(ctx, "oauth_failed")
		return
	}

	sessionTTL := time.Duration(cfg.SessionTTLDays) * 24 * time.Hour
	sessionToken, err := utils.GenerateSessionToken(user.ID, sessionTTL)
	if err != nil {
		utils.Sugar.Errorf("session token generation failed: %v", err)
		a.redirectWithError(ctx, "oauth_failed")
		return
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookieName, sessionToken, int(sessionTTL.Seconds()), "/", "", secureCookies(cfg), true)
	ctx.SetCookie(stateCookieName, "", -1, "/", "", secureCookies(cfg), true)

	ctx.Redirect(http.StatusFound, cfg.FrontendBaseURL+"/")
}

// Me returns the current authenticated user's information, tokens excluded.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	utils.Success(ctx, gin.H{
		"id":               user.ID,
		"oura_user_id":     user.OuraUserID,
		"email":            user.Email,
		"token_expires_at": user.TokenExpiresAt,
		"created_at":       user.CreatedAt,
	})
}

// Logout revokes the current session token and clears the cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	cfg := config.Get()

	token, err := ctx.Cookie(middleware.SessionCookieName)
	if err != nil || token == "" {
		authHeader := ctx.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 {
			token = strings.TrimSpace(parts[1])
		}
	}

	if token != "" {
		expiresAt := time.Now().Add(time.Duration(cfg.SessionTTLDays) * 24 * time.Hour)
		if claims, err := utils.ParseSessionToken(token); err == nil && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		utils.BlacklistToken(token, expiresAt)
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookieName, "", -1, "/", "", secureCookies(cfg), true)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func (a *AuthController) redirectWithError(ctx *gin.Context, reason string) {
	cfg := config.Get()
	ctx.Redirect(http.StatusFound, cfg.FrontendBaseURL+"/?error="+url.QueryEscape(reason))
}

func secureCookies(cfg config.AppConfig) bool {
	return strings.HasPrefix(cfg.FrontendBaseURL, "https://")
}
