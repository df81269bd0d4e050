// Package view holds the HTML components of the lobby page.
package view

import (
	"strings"

	"github.com/nfrund/batepapo/internal/domain"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

const htmxScript = "https://unpkg.com/htmx.org@2.0.4"

// Page wraps body in the lobby's HTML document.
func Page(title string, flashes FlashData, body ...g.Node) g.Node {
	return Doctype(
		HTML(
			Lang("pt-BR"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(g.Text(title)),
				Script(Src(htmxScript)),
			),
			Body(
				Class("lobby"),
				Flashes(flashes),
				g.Group(body),
			),
		),
	)
}

// Flashes renders the one-shot notices, if any.
func Flashes(f FlashData) g.Node {
	return g.Group([]g.Node{
		g.Map(f.Success, func(msg string) g.Node {
			return Div(Class("flash flash-success"), Role("status"), g.Text(msg))
		}),
		g.Map(f.Error, func(msg string) g.Node {
			return Div(Class("flash flash-error"), Role("alert"), g.Text(msg))
		}),
	})
}

// Lobby is the room page. Without a viewer it only offers the join form;
// with one it polls the participant list and messages and keeps the viewer
// alive.
func Lobby(viewer string) g.Node {
	if viewer == "" {
		return Main(
			H1(g.Text("Bate-papo")),
			joinForm(),
		)
	}

	return Main(
		H1(g.Text("Bate-papo")),
		P(Class("viewer"), g.Text("Você está como "), Strong(g.Text(viewer))),
		// Keeps the viewer from being evicted while the page is open.
		Div(hx.Post("/status"), hx.Trigger("every 5s"), hx.Swap("none")),
		Section(
			ID("participants"),
			hx.Get("/lobby/participants"),
			hx.Trigger("load, every 5s"),
		),
		Section(
			ID("messages"),
			hx.Get("/lobby/messages"),
			hx.Trigger("load, every 3s"),
		),
		sendForm(),
	)
}

func joinForm() g.Node {
	return Form(
		Method("post"), Action("/lobby/join"),
		Label(For("name"), g.Text("Nome")),
		Input(Type("text"), ID("name"), Name("name"), Required(), MaxLength("64")),
		Button(Type("submit"), g.Text("Entrar")),
	)
}

func sendForm() g.Node {
	return Form(
		ID("send"),
		hx.Post("/lobby/messages"),
		hx.Target("#send-result"),
		Input(Type("text"), Name("to"), Value(domain.Broadcast), Required()),
		Select(Name("type"),
			Option(Value(string(domain.TypePublic)), g.Text("público")),
			Option(Value(string(domain.TypePrivate)), g.Text("reservadamente")),
		),
		Input(Type("text"), Name("text"), Required()),
		Button(Type("submit"), g.Text("Enviar")),
		Span(ID("send-result")),
	)
}

// ParticipantList renders the room's participants with their display names.
func ParticipantList(participants []*domain.Participant, display func(string) string) g.Node {
	return Ul(
		Class("participants"),
		g.Map(participants, func(p *domain.Participant) g.Node {
			return Li(g.Text(display(p.Name)))
		}),
	)
}

// MessageList renders messages in the order given.
func MessageList(msgs []*domain.Message) g.Node {
	return Ul(
		Class("messages"),
		g.Map(msgs, messageItem),
	)
}

func messageItem(m *domain.Message) g.Node {
	var line strings.Builder
	switch m.Type {
	case domain.TypeStatus:
		line.WriteString(m.From + " " + m.Text)
	case domain.TypePrivate:
		line.WriteString(m.From + " reservadamente para " + m.To + ": " + m.Text)
	default:
		line.WriteString(m.From + " para " + m.To + ": " + m.Text)
	}

	return Li(
		Class("message message-"+string(m.Type)),
		Span(Class("time"), g.Text("("+m.Time+") ")),
		g.Text(line.String()),
	)
}

// SendResult renders the outcome of a lobby send.
func SendResult(errs []string) g.Node {
	if len(errs) == 0 {
		return g.Text("")
	}
	return Span(Class("error"), g.Text(strings.Join(errs, "; ")))
}
