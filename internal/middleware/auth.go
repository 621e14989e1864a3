// Package middleware holds echo middleware shared by the route groups.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/dukerupert/gjall/internal/handler"
)

// userContextKey is where RequireUser stores the resolved user.
const userContextKey = "gjall.user"

// User is the authenticated principal attached to a request.
type User struct {
	ID    int64
	Email string
	Name  string
}

// UserResolver resolves the authenticated user from a request. The actual
// authentication scheme (session cookie, bearer token, upstream proxy
// header) lives outside this module; the resolver is injected at bootstrap.
type UserResolver func(c echo.Context) (*User, error)

// RequireUser rejects requests the resolver cannot attribute to a user and
// stores the user on the request context for handlers downstream.
func RequireUser(resolve UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := resolve(c)
			if err != nil || user == nil {
				return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "auth.require_user", "Authentication required"))
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// UserFrom returns the user stored by RequireUser.
func UserFrom(c echo.Context) (*User, bool) {
	user, ok := c.Get(userContextKey).(*User)
	return user, ok
}
