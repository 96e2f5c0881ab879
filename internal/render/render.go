package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette
const (
	StartColor = "#fff7d1" // the subject
	ChildColor = "#ffecc8" // relatives
	TitleColor = "#ffd09b" // relation titles
	ErrorColor = "#ffb0b0" // error lines
)

// Renderer formats a Line as a single string without a trailing newline.
type Renderer interface {
	Render(l Line) string
}

// New returns the renderer for a style name: terminal, html or plain.
func New(style string, w io.Writer) (Renderer, error) {
	switch style {
	case "terminal":
		return NewTerminal(w), nil
	case "html":
		return HTML{}, nil
	case "plain":
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("unknown render style %q", style)
	}
}

// Plain renders bare text.
type Plain struct{}

func (Plain) Render(l Line) string { return l.Text() }

// HTML renders the <style fg=...> markup used by prompt_toolkit style printers.
type HTML struct{}

func (HTML) Render(l Line) string {
	var b strings.Builder
	for _, s := range l.Segments {
		text := html.EscapeString(s.Text)
		switch s.Role {
		case RoleSubject:
			fmt.Fprintf(&b, `<style fg="%s"><b>%s</b></style>`, StartColor, html.EscapeString(Capitalize(s.Text)))
		case RoleRelative:
			if l.Kind == KindInfo {
				fmt.Fprintf(&b, `<style fg="%s">%s</style>`, ChildColor, html.EscapeString(Capitalize(s.Text)))
			} else {
				fmt.Fprintf(&b, `<style fg="%s"><b><i>%s</i></b></style>`, ChildColor, html.EscapeString(Capitalize(s.Text)))
			}
		case RoleRelation:
			fmt.Fprintf(&b, `<style fg="%s"><b><i>%s</i></b></style>`, TitleColor, text)
		default:
			b.WriteString(text)
		}
	}
	if l.Kind == KindError {
		return fmt.Sprintf(`<style fg="%s">%s</style>`, ErrorColor, b.String())
	}
	return b.String()
}

// Terminal renders with lipgloss. Colors degrade to plain text when the
// writer is not a color-capable terminal.
type Terminal struct {
	subject  lipgloss.Style
	relative lipgloss.Style
	listed   lipgloss.Style
	relation lipgloss.Style
	errText  lipgloss.Style
}

// NewTerminal builds lipgloss styles bound to w's color profile.
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		subject:  r.NewStyle().Foreground(lipgloss.Color(StartColor)).Bold(true),
		relative: r.NewStyle().Foreground(lipgloss.Color(ChildColor)).Bold(true).Italic(true),
		listed:   r.NewStyle().Foreground(lipgloss.Color(ChildColor)),
		relation: r.NewStyle().Foreground(lipgloss.Color(TitleColor)).Bold(true).Italic(true),
		errText:  r.NewStyle().Foreground(lipgloss.Color(ErrorColor)),
	}
}

func (t *Terminal) Render(l Line) string {
	var b strings.Builder
	for _, s := range l.Segments {
		switch s.Role {
		case RoleSubject:
			b.WriteString(t.subject.Render(Capitalize(s.Text)))
		case RoleRelative:
			if l.Kind == KindInfo {
				b.WriteString(t.listed.Render(Capitalize(s.Text)))
			} else {
				b.WriteString(t.relative.Render(Capitalize(s.Text)))
			}
		case RoleRelation:
			b.WriteString(t.relation.Render(s.Text))
		default:
			if l.Kind == KindError {
				b.WriteString(t.errText.Render(s.Text))
			} else {
				b.WriteString(s.Text)
			}
		}
	}
	return b.String()
}

// Printer writes rendered lines to a writer. Headings are preceded by a
// blank line.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
	r  Renderer
}

// NewPrinter pairs a renderer with its destination.
func NewPrinter(w io.Writer, r Renderer) *Printer {
	return &Printer{w: w, r: r}
}

// EmitLine renders and writes one line.
func (p *Printer) EmitLine(l Line) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l.Kind == KindHeading {
		if _, err := io.WriteString(p.w, "\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(p.w, p.r.Render(l)+"\n")
	return err
}

// Prompt writes text without a newline.
func (p *Printer) Prompt(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, text)
	return err
}
