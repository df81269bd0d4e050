package view_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "batepapo-flash-test-secret-key!"

// newLobbyServer mimics the lobby round trip: POST /join sets a flash and
// redirects, GET / renders the page with whatever flashes are pending.
func newLobbyServer(join func(c echo.Context)) *echo.Echo {
	e := echo.New()
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(testSessionSecret))))

	e.POST("/join", func(c echo.Context) error {
		join(c)
		return c.Redirect(http.StatusSeeOther, "/")
	})
	e.GET("/", func(c echo.Context) error {
		var buf bytes.Buffer
		if err := view.Page("Bate-papo", view.GetFlashData(c)).Render(&buf); err != nil {
			return err
		}
		return c.HTML(http.StatusOK, buf.String())
	})
	return e
}

func serve(e *echo.Echo, method, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// keep carries the latest value of each cookie into the next request.
func keep(prev []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	for _, c := range prev {
		byName[c.Name] = c
	}
	for _, c := range rec.Result().Cookies() {
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	return out
}

func TestFlash_LobbyJoin(t *testing.T) {
	t.Run("welcome shown once after the redirect", func(t *testing.T) {
		e := newLobbyServer(func(c echo.Context) { view.SetFlashSuccess(c, "Bem-vindo, Maria Clara!") })

		rec := serve(e, http.MethodPost, "/join", nil)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		cookies := keep(nil, rec)

		rec = serve(e, http.MethodGet, "/", cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `class="flash flash-success"`)
		assert.Contains(t, body, "Bem-vindo, Maria Clara!")
		assert.NotContains(t, body, "flash-error")
		cookies = keep(cookies, rec)

		rec = serve(e, http.MethodGet, "/", cookies)
		assert.NotContains(t, rec.Body.String(), "Bem-vindo", "a flash is consumed by the page that shows it")
	})

	t.Run("taken name shown as an alert", func(t *testing.T) {
		e := newLobbyServer(func(c echo.Context) { view.SetFlashError(c, "Esse nome já está em uso.") })

		rec := serve(e, http.MethodPost, "/join", nil)
		rec = serve(e, http.MethodGet, "/", keep(nil, rec))

		body := rec.Body.String()
		assert.Contains(t, body, `role="alert"`)
		assert.Contains(t, body, "Esse nome já está em uso.")
		assert.NotContains(t, body, "flash-success")
	})

	t.Run("markup in a flash is escaped", func(t *testing.T) {
		e := newLobbyServer(func(c echo.Context) { view.SetFlashSuccess(c, "Bem-vindo, <b>Bia</b>!") })

		rec := serve(e, http.MethodPost, "/join", nil)
		rec = serve(e, http.MethodGet, "/", keep(nil, rec))

		assert.Contains(t, rec.Body.String(), "Bem-vindo, &lt;b&gt;Bia&lt;/b&gt;!")
	})

	t.Run("no pending flash renders no notice", func(t *testing.T) {
		e := newLobbyServer(func(echo.Context) {})

		rec := serve(e, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), `class="flash`)
	})
}

func TestGetFlashData_KeepsOrder(t *testing.T) {
	e := newLobbyServer(func(c echo.Context) {
		view.SetFlashSuccess(c, "Bem-vindo, Ana!")
		view.SetFlashError(c, "Não foi possível enviar agora.")
		view.SetFlashError(c, "Entre na sala antes de enviar mensagens.")
	})

	var got view.FlashData
	e.GET("/peek", func(c echo.Context) error {
		got = view.GetFlashData(c)
		return c.NoContent(http.StatusOK)
	})

	rec := serve(e, http.MethodPost, "/join", nil)
	serve(e, http.MethodGet, "/peek", keep(nil, rec))

	assert.Equal(t, []string{"Bem-vindo, Ana!"}, got.Success)
	assert.Equal(t, []string{"Não foi possível enviar agora.", "Entre na sala antes de enviar mensagens."}, got.Error)
}
