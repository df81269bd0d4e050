package middleware

import (
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	// UserHeader carries the caller's participant name.
	UserHeader = "User"

	// UserContextKey is where Identity stores the resolved name.
	UserContextKey = "user"

	// SessionName is the cookie session that remembers the registered name.
	SessionName = "batepapo-session"

	sessionKeyName = "name"
)

// Identity resolves who is calling: the User header when present, otherwise
// the name remembered in the session. The name is a claim, not a credential.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			name := strings.TrimSpace(c.Request().Header.Get(UserHeader))
			if name == "" {
				name = sessionName(c)
			}
			c.Set(UserContextKey, name)
			return next(c)
		}
	}
}

// User returns the name resolved by Identity, or "".
func User(c echo.Context) string {
	name, _ := c.Get(UserContextKey).(string)
	return name
}

// Remember stores name in the caller's session.
func Remember(c echo.Context, name string) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionKeyName] = name
	return sess.Save(c.Request(), c.Response())
}

func sessionName(c echo.Context) string {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return ""
	}
	name, _ := sess.Values[sessionKeyName].(string)
	return name
}
