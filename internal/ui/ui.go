// Package ui renders human-facing run output: stage headers, artifact
// listings and the final status line.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	accent  = lipgloss.Color("#f97316")
	success = lipgloss.Color("#22c55e")
	warning = lipgloss.Color("#eab308")
	failure = lipgloss.Color("#ef4444")
	dim     = lipgloss.Color("#888888")
)

// Printer writes styled lines to an output stream.
type Printer struct {
	out   io.Writer
	color bool

	header lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	faint  lipgloss.Style
}

// New returns a printer for w. Color is used only when w is a terminal and
// NO_COLOR is unset.
func New(w io.Writer) *Printer {
	return NewWithColor(w, ColorEnabled(w))
}

// NewWithColor returns a printer with color explicitly on or off.
func NewWithColor(w io.Writer, color bool) *Printer {
	return &Printer{
		out:    w,
		color:  color,
		header: lipgloss.NewStyle().Bold(true).Foreground(accent),
		ok:     lipgloss.NewStyle().Bold(true).Foreground(success),
		warn:   lipgloss.NewStyle().Foreground(warning),
		fail:   lipgloss.NewStyle().Bold(true).Foreground(failure),
		faint:  lipgloss.NewStyle().Foreground(dim),
	}
}

// ColorEnabled reports whether w is a color-capable terminal.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Writer returns the underlying stream.
// StageHeader announces a stage, e.g. "==> [4/5] build".
func (p *Printer) StageHeader(position, total int, name string) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n",
		p.render(p.header, "==>"),
		p.render(p.header, fmt.Sprintf("[%d/%d] %s", position+1, total, name)))
}

// StageDone reports a stage outcome with its duration.
func (p *Printer) StageDone(name string, d time.Duration, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(p.out, "%s %s %s\n", p.render(p.fail, "✗"), name, p.render(p.faint, d.Round(time.Millisecond).String()))
		return
	}
	_, _ = fmt.Fprintf(p.out, "%s %s %s\n", p.render(p.ok, "✓"), name, p.render(p.faint, d.Round(time.Millisecond).String()))
}

// Artifact is one listed distribution file.
type Artifact struct {
	Name string
	Kind string
	Size int64
}

// Artifacts lists built files with human-readable sizes.
func (p *Printer) Artifacts(arts []Artifact) {
	nameW := 0
	for _, a := range arts {
		if len(a.Name) > nameW {
			nameW = len(a.Name)
		}
	}
	col := lipgloss.NewStyle().Width(nameW + 2)
	for _, a := range arts {
		_, _ = fmt.Fprintf(p.out, "    %s%-6s %s\n", col.Render(a.Name), a.Kind, p.render(p.faint, FormatSize(a.Size)))
	}
}

// Success prints the final success line.
func (p *Printer) Success(msg string) error {
	_, err := fmt.Fprintln(p.out, p.render(p.ok, msg))
	return err
}

// Failure prints the final failure line.
func (p *Printer) Failure(msg string) {
	_, _ = fmt.Fprintln(p.out, p.render(p.fail, msg))
}

// Warn prints a highlighted notice.
func (p *Printer) Warn(msg string) {
	_, _ = fmt.Fprintln(p.out, p.render(p.warn, "warning: "+msg))
}

// Faint prints secondary information.
func (p *Printer) Faint(msg string) {
	_, _ = fmt.Fprintln(p.out, p.render(p.faint, msg))
}

// Table prints rows as left-aligned columns. The first row is the header.
func (p *Printer) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}
	for ri, r := range rows {
		cells := make([]string, 0, len(r))
		for i, c := range r {
			if i < len(widths) && i < len(r)-1 {
				c = lipgloss.NewStyle().Width(widths[i] + 2).Render(c)
			}
			cells = append(cells, c)
		}
		line := strings.Join(cells, "")
		if ri == 0 {
			line = p.render(p.header, line)
		}
		_, _ = fmt.Fprintln(p.out, strings.TrimRight(line, " "))
	}
}

// FormatSize renders bytes like "12 kB".
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Ago renders t relative to now, like "3 minutes ago". The zero time is
// rendered as "-".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
