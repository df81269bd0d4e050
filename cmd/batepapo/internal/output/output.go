// Package output renders room data for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/handlers"
	"github.com/nfrund/batepapo/internal/pubsub"
	"github.com/olekukonko/tablewriter"
)

// newTable returns a borderless, left-aligned table.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// Participants prints who is in the room and how long ago each was seen.
func Participants(w io.Writer, ps []handlers.ParticipantResponse, now time.Time) {
	if len(ps) == 0 {
		fmt.Fprintln(w, "A sala está vazia.")
		return
	}

	table := newTable(w, "Name", "Display", "Last seen")
	for _, p := range ps {
		seen := now.Sub(time.UnixMilli(p.LastStatus)).Truncate(time.Second)
		table.Append([]string{p.Name, p.DisplayName, seen.String() + " ago"})
	}
	table.Render()
}

// Events prints the bus events a stream can carry.
func Events(w io.Writer, events []pubsub.EventInfo) {
	table := newTable(w, "Name", "Payload", "Fields", "Description")
	for _, e := range events {
		table.Append([]string{e.Name, e.TypeName, strings.Join(e.PayloadFields, ", "), e.Description})
	}
	table.Render()
}

// Line renders a message the way the room shows it, without color.
func Line(m domain.Message) string {
	switch m.Type {
	case domain.TypeStatus:
		return fmt.Sprintf("(%s) %s %s", m.Time, m.From, m.Text)
	case domain.TypePrivate:
		return fmt.Sprintf("(%s) %s reservadamente para %s: %s", m.Time, m.From, m.To, m.Text)
	default:
		return fmt.Sprintf("(%s) %s para %s: %s", m.Time, m.From, m.To, m.Text)
	}
}

// Message prints one message, colored by kind from viewer's point of view.
func Message(w io.Writer, m domain.Message, viewer string) {
	line := Line(m)
	switch {
	case m.Type == domain.TypeStatus:
		line = color.Gray.Sprint(line)
	case m.Type == domain.TypePrivate:
		line = color.Magenta.Sprint(line)
	case m.From == viewer:
		line = color.Green.Sprint(line)
	}
	fmt.Fprintln(w, line)
}

// Messages prints messages in order.
func Messages(w io.Writer, msgs []domain.Message, viewer string) {
	for _, m := range msgs {
		Message(w, m, viewer)
	}
}

// Transcript renders messages as plain text, one per line.
func Transcript(msgs []domain.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(Line(m))
		b.WriteByte('\n')
	}
	return b.String()
}

// Success prints a confirmation.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.Green.Sprintf(format, args...))
}

// Error prints a failure.
func Error(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.Red.Sprintf(format, args...))
}

// Notice prints a presence change or other side note.
func Notice(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.Yellow.Sprintf(format, args...))
}
