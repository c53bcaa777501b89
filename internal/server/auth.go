package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/questor-ai/questor/config"
)

// AuthHandler authenticates the single configured operator account and
// issues JWTs for the API.
type AuthHandler struct {
	Email  string
	Hash   string // bcrypt hash of the operator password
	Secret []byte
}

func newAuth(cfg config.ServerConfig) *AuthHandler {
	return &AuthHandler{
		Email:  cfg.AdminEmail,
		Hash:   cfg.PasswordHash,
		Secret: []byte(cfg.JWTSecret),
	}
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.POST("/login", a.login)
	g.POST("/logout", a.logout)
}

func (a *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email != a.Email {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	signed, err := SignJWT(req.Email, a.Secret, 24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = signed
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteLaxMode
	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, TokenResponse{Token: signed})
}

func (a *AuthHandler) logout(c echo.Context) error {
	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = ""
	cookie.Path = "/"
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return c.NoContent(http.StatusOK)
}

// SignJWT issues a signed token with the provided subject and TTL.
func SignJWT(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// authMiddleware validates JWTs from the Authorization header or the
// auth cookie.
func authMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) { return secret, nil })
			if err != nil || !parsed.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
				if sub, ok := claims["sub"].(string); ok {
					c.Set("user_id", sub)
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}
