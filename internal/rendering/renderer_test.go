package rendering

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

func TestRenderer(t *testing.T) {
	e := echo.New()
	e.Renderer = NewRenderer()

	e.GET("/node", func(c echo.Context) error {
		return c.Render(http.StatusOK, "", P(g.Text("<oi>")))
	})
	e.GET("/bad", func(c echo.Context) error {
		return c.Render(http.StatusOK, "", "not a node")
	})

	t.Run("renders nodes escaped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/node", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<p>&lt;oi&gt;</p>", rec.Body.String())
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	})

	t.Run("rejects other data", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("to bytes", func(t *testing.T) {
		out, err := NewRenderer().RenderComponent(Span(g.Text("x")))
		require.NoError(t, err)
		assert.Equal(t, "<span>x</span>", string(out))
	})
}
