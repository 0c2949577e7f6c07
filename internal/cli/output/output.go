// Package output renders command results for terminals and scripts.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Mode selects how results are written.
type Mode string

// Output modes. Auto resolves to text on a terminal and JSON otherwise.
const (
	ModeAuto Mode = "auto"
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeText, ModeJSON:
		return m, nil
	}
	return "", fmt.Errorf("unknown output mode %q (expected auto, text or json)", s)
}

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles returns the styles; plain styles render text unchanged.
func NewStyles(color bool) *Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &Styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return &Styles{
		Header1: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: lipgloss.NewStyle().Bold(true),
		Bold:    lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal flag.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(isTTY),
	}
}

// EffectiveMode resolves auto mode.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeJSON
}

// Out is the result writer.
func (r *Renderer) Out() io.Writer { return r.out }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

func (r *Renderer) Println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Header prints a level 1 or 2 header.
func (r *Renderer) Header(level int, s string) {
	if level <= 1 {
		r.Println(r.styles.Header1.Render(s))
		return
	}
	r.Println(r.styles.Header2.Render(s))
}

func (r *Renderer) Success(s string) {
	r.Println(r.styles.Success.Render("✓ " + s))
}

func (r *Renderer) Muted(s string) {
	r.Println(r.styles.Muted.Render(s))
}

// Warning goes to the error stream so JSON output stays parseable.
func (r *Renderer) Warning(s string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+s))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type rendererKey struct{}

// WithRenderer stores r on the context.
func WithRenderer(ctx context.Context, r *Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// FromContext returns the renderer stored on ctx, or one writing to the
// standard streams.
func FromContext(ctx context.Context) *Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*Renderer); ok {
		return r
	}
	return NewRenderer(os.Stdout, os.Stderr, ModeAuto)
}
