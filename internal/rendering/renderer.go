package rendering

import (
	"bytes"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
	g "maragu.dev/gomponents"
)

// Renderer renders gomponents nodes, both as echo responses and as bytes.
type Renderer struct{}

// NewRenderer creates a Renderer. Install it with e.Renderer = NewRenderer().
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderComponent renders a node to a slice of bytes, e.g. for HTMX fragments.
func (r *Renderer) RenderComponent(node g.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := node.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render component to bytes: %w", err)
	}
	return buf.Bytes(), nil
}

// Render implements echo.Renderer for c.Render(status, "", node). The name
// is ignored; the node is passed as data.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	node, ok := data.(g.Node)
	if !ok {
		return fmt.Errorf("unsupported component type: %T", data)
	}
	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	}
	return node.Render(w)
}
