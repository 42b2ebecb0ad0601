// Package render paints packet list rows with the colors of the rule that
// classified them.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/dissect"
)

// Row is one packet list line
type Row struct {
	Number  uint64
	Summary dissect.Summary
	// Rule is the matching color rule, or nil
	Rule *colorfilter.ColorRule
}

// Widths are the column widths of a row
type Widths struct {
	Number   int
	Src      int
	Dst      int
	Protocol int
	Length   int
	Rule     int
	Info     int
}

// DefaultWidths fit an 132 column terminal
var DefaultWidths = Widths{Number: 7, Src: 22, Dst: 22, Protocol: 8, Length: 6, Rule: 20, Info: 40}

// Option configures a Renderer
type Option func(*Renderer)

// WithNoColor disables painting entirely
func WithNoColor() Option {
	return func(r *Renderer) { r.noColor = true }
}

// WithTrueColor paints with 24-bit colors even when the output is not a terminal
func WithTrueColor() Option {
	return func(r *Renderer) { r.renderer.SetColorProfile(termenv.TrueColor) }
}

// WithWidths overrides the column widths
func WithWidths(w Widths) Option {
	return func(r *Renderer) { r.widths = w }
}

// Renderer formats rows. It is safe for concurrent use.
type Renderer struct {
	renderer *lipgloss.Renderer
	widths   Widths
	noColor  bool

	mu           sync.Mutex
	cachedStyles map[[2]colorfilter.Color]lipgloss.Style
}

// NewRenderer creates a renderer for output written to w
func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		renderer:     lipgloss.NewRenderer(w),
		widths:       DefaultWidths,
		cachedStyles: make(map[[2]colorfilter.Color]lipgloss.Style),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Header returns the column titles, bold unless color is off
func (r *Renderer) Header() string {
	w := r.widths
	line := fmt.Sprintf("%*s %-*s %-*s %-*s %*s %-*s %s",
		w.Number, "No.",
		w.Src, "Source",
		w.Dst, "Destination",
		w.Protocol, "Protocol",
		w.Length, "Length",
		w.Rule, "Coloring Rule",
		"Info")
	if r.noColor {
		return line
	}
	return r.renderer.NewStyle().Bold(true).Render(line)
}

// Render formats one row and paints it with its rule's colors
func (r *Renderer) Render(row Row) string {
	w := r.widths
	s := row.Summary

	ruleName := ""
	if row.Rule != nil {
		ruleName = DisplayName(row.Rule)
	}

	line := fmt.Sprintf("%*d %-*s %-*s %-*s %*d %-*s %s",
		w.Number, row.Number,
		w.Src, truncate(endpoint(s.Src, s.SrcPort), w.Src),
		w.Dst, truncate(endpoint(s.Dst, s.DstPort), w.Dst),
		w.Protocol, truncate(s.Protocol, w.Protocol),
		w.Length, s.Length,
		w.Rule, truncate(ruleName, w.Rule),
		truncate(s.Info, w.Info))

	if r.noColor || row.Rule == nil {
		return line
	}
	return r.style(row.Rule.Foreground, row.Rule.Background).Render(line)
}

func (r *Renderer) style(fg, bg colorfilter.Color) lipgloss.Style {
	key := [2]colorfilter.Color{fg, bg}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.cachedStyles[key]; ok {
		return st
	}
	st := r.renderer.NewStyle().
		Foreground(lipgloss.Color(fg.HTML())).
		Background(lipgloss.Color(bg.HTML()))
	r.cachedStyles[key] = st
	return st
}

// Swatch renders a short sample of a rule's colors, for rule listings
func (r *Renderer) Swatch(rule *colorfilter.ColorRule) string {
	if r.noColor {
		return fmt.Sprintf("[%s/%s]", rule.Foreground.HTML(), rule.Background.HTML())
	}
	return r.style(rule.Foreground, rule.Background).Render(" Aa ")
}

// DisplayName returns a rule's name with the conversation prefix replaced:
// temporary slots show as "tmp N", other conversation rules as
// "conversation SUFFIX"
func DisplayName(rule *colorfilter.ColorRule) string {
	if !rule.IsConversation() {
		return rule.Name
	}
	suffix := strings.TrimPrefix(rule.Name, constants.ConversationColorPrefix)
	if n, err := strconv.Atoi(suffix); err == nil {
		return fmt.Sprintf("tmp %d", n)
	}
	return "conversation " + suffix
}

func endpoint(addr, port string) string {
	if port == "" {
		return addr
	}
	if strings.Contains(addr, ":") {
		return fmt.Sprintf("[%s]:%s", addr, port)
	}
	return fmt.Sprintf("%s:%s", addr, port)
}

// sanitizeString replaces control characters that would break a row
func sanitizeString(s string) string {
	needsSanitization := false
	for _, r := range s {
		if r < 32 || r == 127 || r == 0xFFFD {
			needsSanitization = true
			break
		}
	}
	if !needsSanitization {
		return s
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r < 32 || r == 127:
			runes[i] = ' '
		case r == 0xFFFD:
			runes[i] = '?'
		}
	}
	return string(runes)
}

// truncate shortens s to width cells, ending in "..." when cut
func truncate(s string, width int) string {
	s = sanitizeString(s)
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		var b strings.Builder
		for _, r := range s {
			if lipgloss.Width(b.String()+string(r)) > width {
				break
			}
			b.WriteRune(r)
		}
		return b.String()
	}

	target := width - 3
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > target {
			break
		}
		b.WriteRune(r)
	}
	return b.String() + "..."
}
