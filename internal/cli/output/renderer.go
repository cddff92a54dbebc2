// Package output renders command results for terminals, markdown consumers
// (pipes, agents, files) and JSON tooling.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects how output is rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"     // text on a TTY, markdown otherwise
	ModeText     Mode = "text"     // styled terminal output
	ModeMarkdown Mode = "markdown" // plain markdown, no ANSI
	ModeJSON     Mode = "json"     // machine-readable documents on stdout
)

// ParseMode converts a config or flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeText:
		return ModeText, nil
	case ModeMarkdown, "md":
		return ModeMarkdown, nil
	case ModeJSON:
		return ModeJSON, nil
	}
	return "", fmt.Errorf("unknown output mode %q (want auto|text|markdown|json)", s)
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
	return NewRendererWithTTY(out, errOut, IsTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lg := lipgloss.NewRenderer(out)
	if !isTTY {
		lg.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lg),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the TTY state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether stdout is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the stdout writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the stderr writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Styles returns the lipgloss styles bound to this renderer.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to stdout.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to stdout.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// messageWriter keeps stdout clean for JSON consumers.
func (r *Renderer) messageWriter() io.Writer {
	if r.EffectiveMode() == ModeJSON {
		return r.errOut
	}
	return r.out
}

// Header writes a section header.
func (r *Renderer) Header(level int, text string) {
	switch r.EffectiveMode() {
	case ModeJSON:
		return
	case ModeMarkdown:
		r.Println(FormatHeader(level, text))
		r.Println("")
	default:
		style := r.styles.Header2
		if level <= 1 {
			style = r.styles.Header1
		}
		r.Println(style.Render(text))
	}
}

// Success writes a success message.
func (r *Renderer) Success(msg string) { r.message(r.styles.Success, "✓", "Success", msg) }

// Warning writes a warning message.
func (r *Renderer) Warning(msg string) { r.message(r.styles.Warning, "!", "Warning", msg) }

// Error writes an error message.
func (r *Renderer) Error(msg string) { r.message(r.styles.Error, "✗", "Error", msg) }

// Info writes an informational message.
func (r *Renderer) Info(msg string) { r.message(r.styles.Info, "ℹ", "Note", msg) }

// Muted writes de-emphasised text.
func (r *Renderer) Muted(msg string) {
	w := r.messageWriter()
	if r.EffectiveMode() == ModeText {
		_, _ = fmt.Fprintln(w, r.styles.Muted.Render(msg))
		return
	}
	_, _ = fmt.Fprintln(w, msg)
}

func (r *Renderer) message(style lipgloss.Style, symbol, label, msg string) {
	w := r.messageWriter()
	switch r.EffectiveMode() {
	case ModeText:
		_, _ = fmt.Fprintln(w, style.Render(symbol+" "+msg))
	case ModeMarkdown:
		_, _ = fmt.Fprintf(w, "**%s:** %s\n", label, msg)
	default:
		_, _ = fmt.Fprintf(w, "%s: %s\n", strings.ToLower(label), msg)
	}
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	switch r.EffectiveMode() {
	case ModeJSON:
		return
	case ModeMarkdown:
		r.Println(FormatKeyValue(key, value))
	default:
		r.Printf("  %s %s\n", r.styles.Muted.Render(key+":"), value)
	}
}

// StatusLine writes "name  status  detail" with the status styled.
func (r *Renderer) StatusLine(name, status, detail string) {
	label := Title(status)
	switch r.EffectiveMode() {
	case ModeJSON:
		return
	case ModeMarkdown:
		line := fmt.Sprintf("- %s: %s", name, label)
		if detail != "" {
			line += " (" + detail + ")"
		}
		r.Println(line)
	default:
		line := fmt.Sprintf("  %s %s", r.styles.ForStatus(status).Render(fmt.Sprintf("%-10s", label)), name)
		if detail != "" {
			line += " " + r.styles.Muted.Render(detail)
		}
		r.Println(line)
	}
}

// JSON writes v as indented JSON to stdout.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item "- **key:** value".
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

var titleCaser = cases.Title(language.English)

// Title returns s in title case ("not found" -> "Not Found").
func Title(s string) string {
	return titleCaser.String(s)
}
