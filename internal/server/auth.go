package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName is the cookie holding a browser session token
	SessionCookieName = "streamdl_session"
	// SessionDuration is the lifetime of a browser session token
	SessionDuration = 24 * time.Hour
	// APITokenDuration is the lifetime of a token minted by /api/auth/token
	APITokenDuration = 365 * 24 * time.Hour

	tokenIssuer = "streamdl"
)

// TokenClaims are the claims signed into every streamdl token
type TokenClaims struct {
	Kind   string         `json:"type"` // "session" or "api"
	Custom map[string]any `json:"custom,omitempty"`
	jwt.RegisteredClaims
}

// TokenRequest is the optional body of POST /api/auth/token
type TokenRequest struct {
	Payload map[string]any `json:"payload,omitempty"`
}

// signToken mints an HS256 token keyed by the configured api key
func (s *Server) signToken(kind string, ttl time.Duration, payload map[string]any) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Kind:   kind,
		Custom: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.apiKey))
}

// parseToken verifies signature, algorithm, issuer and expiry
func (s *Server) parseToken(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.apiKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// authenticated reports whether the request carries a valid cookie or bearer token
func (s *Server) authenticated(c *gin.Context) bool {
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		if _, err := s.parseToken(cookie); err == nil {
			return true
		}
	}
	if raw, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); found {
		if _, err := s.parseToken(raw); err == nil {
			return true
		}
	}
	return false
}

// jwtAuthMiddleware guards /api/* except health and the auth endpoints.
// Download pages stay public.
func (s *Server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		public := !strings.HasPrefix(path, "/api/") ||
			path == "/api/health" ||
			strings.HasPrefix(path, "/api/auth/")

		if public || s.apiKey == "" || s.authenticated(c) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			Code:    401,
			Data:    nil,
			Message: "unauthorized: valid session or API token required",
		})
	}
}

// setSessionCookie hands browsers a session so the page can call /api/*
func (s *Server) setSessionCookie(c *gin.Context) {
	if s.apiKey == "" {
		return
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		if _, err := s.parseToken(cookie); err == nil {
			return
		}
	}

	token, err := s.signToken("session", SessionDuration, nil)
	if err != nil {
		s.log.WithError(err).Warn("could not sign session token")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(SessionDuration.Seconds()), "/", "", false, true)
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"api_key_configured": s.apiKey != "",
		},
		Message: "auth status retrieved",
	})
}

// handleGenerateToken mints an API token. The api key itself must be
// presented as a bearer token so the endpoint cannot be used anonymously.
func (s *Server) handleGenerateToken(c *gin.Context) {
	if s.apiKey == "" {
		c.JSON(http.StatusOK, Response{
			Code:    500,
			Data:    nil,
			Message: "API KEY is not configured",
		})
		return
	}

	key, _ := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if key != s.apiKey && !s.authenticated(c) {
		c.JSON(http.StatusUnauthorized, Response{
			Code:    401,
			Data:    nil,
			Message: "unauthorized: api key or session required",
		})
		return
	}

	var req TokenRequest
	// payload is optional
	_ = c.ShouldBindJSON(&req)

	token, err := s.signToken("api", APITokenDuration, req.Payload)
	if err != nil {
		c.JSON(http.StatusOK, Response{
			Code:    500,
			Data:    nil,
			Message: "failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    201,
		Data:    gin.H{"jwt": token},
		Message: "JWT Token generated",
	})
}
