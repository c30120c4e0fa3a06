package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the context key for storing username.
	ContextKeyUsername = "username"

	// CookieAccessToken carries the session credential for browsers.
	CookieAccessToken = "access_token"
)

// credentialFromRequest extracts the raw credential from handshake metadata.
// Lookup order: access_token cookie, Authorization bearer header, token query parameter.
func credentialFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieAccessToken); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return r.URL.Query().Get("token")
}

// AuthMiddleware rejects requests whose credential does not resolve to a live user.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authService.Authenticate(c.Request.Context(), credentialFromRequest(c.Request))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				logger.Debug().Err(err).Msg("rejected credential")
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
				return
			}
			logger.Error().Err(err).Msg("authenticate request")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyUsername, identity.Username)

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

func currentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return 0, false
	}
	uid, ok := v.(int64)
	return uid, ok
}
