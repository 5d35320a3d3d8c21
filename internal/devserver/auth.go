package devserver

import (
	"strings"
	"time"

	"lokapasar/pkg/errors"
	"lokapasar/pkg/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Claims identify a harness user: a buyer (kind "user") or a shop operator
// (kind "shop" with a shop id).
type Claims struct {
	UserID int64  `json:"user_id"`
	ShopID int64  `json:"shop_id,omitempty"`
	Name   string `json:"name"`
	Kind   string `json:"kind"` // "user" or "shop"
	jwt.RegisteredClaims
}

// IssueToken mints a signed HMAC token for local development.
func IssueToken(secret string, claims Claims) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("unexpected signing method", nil)
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("invalid token", err)
	}
	return claims, nil
}

// authMiddleware validates the bearer token and stashes the claims in the
// request context.
func authMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return response.Error(c, errors.Unauthorized("missing bearer token", nil))
			}

			claims, err := parseToken(secret, raw)
			if err != nil {
				return response.Error(c, err)
			}

			c.Set("claims", claims)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	// WebSocket clients from browsers cannot set headers; allow ?token=.
	return c.QueryParam("token")
}

func claimsFrom(c echo.Context) *Claims {
	if claims, ok := c.Get("claims").(*Claims); ok {
		return claims
	}
	return &Claims{}
}
