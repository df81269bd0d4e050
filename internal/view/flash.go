package view

import (
	"fmt"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	flashSessionName = "flash-session"
	flashKeySuccess  = "success"
	flashKeyError    = "error"
)

// FlashData holds the one-shot notices shown on the next page render.
type FlashData struct {
	Success []string
	Error   []string
}

// setFlash sets a flash message in the session.
func setFlash(c echo.Context, key, message string) {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return
	}
	sess.AddFlash(message, key)
	_ = sess.Save(c.Request(), c.Response())
}

// SetFlashSuccess sets a success flash message.
func SetFlashSuccess(c echo.Context, message string) {
	setFlash(c, flashKeySuccess, message)
}

// SetFlashError sets an error flash message.
func SetFlashError(c echo.Context, message string) {
	setFlash(c, flashKeyError, message)
}

// GetFlashData retrieves and clears the flash messages of the session.
func GetFlashData(c echo.Context) FlashData {
	var data FlashData

	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return data
	}

	// Flashes() removes what it returns, so the session is saved afterwards.
	success := sess.Flashes(flashKeySuccess)
	failure := sess.Flashes(flashKeyError)
	if len(success) == 0 && len(failure) == 0 {
		return data
	}

	data.Success = toStrings(success)
	data.Error = toStrings(failure)
	_ = sess.Save(c.Request(), c.Response())
	return data
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
