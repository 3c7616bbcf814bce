package middleware

// identity.go turns verified JWT claims into the identity values handlers
// read from the echo context: the numeric user id, the role and the actor
// string recorded in reservation history.

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxActor  = "actor"
)

// Roles accepted in the "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
	RoleAdmin    = "ADMIN"
)

// Guest is the actor of unauthenticated requests.
const Guest = "guest"

// setIdentity stores the subject and role of claims in c. The subject may
// be numeric or a string; a non-numeric subject leaves user_id at zero but
// is still used as the actor.
func setIdentity(c echo.Context, claims jwt.MapClaims) {
	sub := subject(claims)
	var uid uint64
	if n, err := strconv.ParseUint(sub, 10, 64); err == nil {
		uid = n
	}
	role, _ := claims["role"].(string)
	c.Set(CtxUserID, uid)
	c.Set(CtxRole, strings.ToUpper(role))
	if sub == "" {
		sub = Guest
	}
	c.Set(CtxActor, sub)
}

func subject(claims jwt.MapClaims) string {
	for _, k := range []string{"sub", "user_id"} {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatUint(uint64(v), 10)
		}
	}
	return ""
}

// UserID returns the authenticated user id, zero for guests.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(CtxUserID).(uint64)
	return id
}

// Role returns the authenticated role, empty for guests.
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// Actor returns the identity recorded in audit entries.
func Actor(c echo.Context) string {
	if a, ok := c.Get(CtxActor).(string); ok && a != "" {
		return a
	}
	return Guest
}

// IsStaff reports whether the caller may act on any reservation.
func IsStaff(c echo.Context) bool {
	switch Role(c) {
	case RoleStaff, RoleAdmin:
		return true
	}
	return false
}
