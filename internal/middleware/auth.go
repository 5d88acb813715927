package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token validation failures surfaced by ParseActorToken.
var (
	ErrMissingToken   = errors.New("authorization required")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrInvalidIssuer  = errors.New("invalid token issuer")
	ErrInvalidAud     = errors.New("invalid token audience")
	ErrInvalidSubject = errors.New("invalid subject claim")
)

// TokenConfig configures actor token validation.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// ParseActorToken validates an HMAC-signed JWT and returns the actor ID held
// in its "sub" claim. Issuer and audience are checked when configured.
func ParseActorToken(cfg TokenConfig, tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	if cfg.Issuer != "" {
		if issuer, _ := claims["iss"].(string); issuer != cfg.Issuer {
			return 0, ErrInvalidIssuer
		}
	}
	if cfg.Audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !containsString(aud, cfg.Audience) {
			return 0, ErrInvalidAud
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, ErrInvalidSubject
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidSubject
	}

	return uint(userID), nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
