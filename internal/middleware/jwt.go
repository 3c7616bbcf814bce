package middleware // HTTP middleware shared by the reservation routes

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth validates a Bearer access token signed with HS256 and stores the
// caller identity in the context (see identity.go). Tokens are issued by
// the account service; this service only verifies them.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return jwtAuth(secret, true)
}

// OptionalJWTAuth behaves like JWTAuth when an Authorization header is
// present and lets the request through as a guest when it is not.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	return jwtAuth(secret, false)
}

func jwtAuth(secret string, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" && !required {
				c.Set(CtxActor, Guest)
				return next(c)
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}
