package charts

import (
	"strings"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	gocharts "github.com/vicanso/go-charts/v2"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Themes accepted by Style.Theme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Style is the explicit plotting configuration handed to a Presenter.
type Style struct {
	Width   int
	Height  int
	Theme   string
	Title   string  // prefix for every chart title; empty for none
	DotSize float64 // Monte Carlo scatter dot width
}

// DefaultStyle returns a 900x600 light style.
func DefaultStyle() Style {
	return Style{
		Width:   900,
		Height:  600,
		Theme:   ThemeLight,
		DotSize: 2,
	}
}

// withDefaults fills zero fields and validates the result.
func (s Style) withDefaults() (Style, error) {
	def := DefaultStyle()
	if s.Width == 0 {
		s.Width = def.Width
	}
	if s.Height == 0 {
		s.Height = def.Height
	}
	if s.Theme == "" {
		s.Theme = def.Theme
	}
	if s.DotSize == 0 {
		s.DotSize = def.DotSize
	}
	s.Theme = strings.ToLower(s.Theme)

	if s.Width < 100 || s.Height < 100 {
		return s, domain.InvalidInputf("chart size %dx%d too small", s.Width, s.Height)
	}
	if s.Theme != ThemeLight && s.Theme != ThemeDark {
		return s, domain.InvalidInputf("unknown chart theme %q", s.Theme)
	}
	if s.DotSize < 0 {
		return s, domain.InvalidInputf("negative dot size")
	}
	return s, nil
}

func (s Style) title(name string) string {
	if s.Title == "" {
		return name
	}
	return s.Title + " • " + name
}

// vicansoTheme maps the theme onto go-charts' theme names.
func (s Style) vicansoTheme() string {
	if s.Theme == ThemeDark {
		return gocharts.ThemeDark
	}
	return gocharts.ThemeLight
}

// canvas returns the background and text styles for go-chart renders.
func (s Style) canvas() (background chart.Style, text chart.Style) {
	if s.Theme == ThemeDark {
		bg := drawing.ColorFromHex("1f1f1f")
		fg := drawing.ColorFromHex("e0e0e0")
		return chart.Style{FillColor: bg}, chart.Style{FontColor: fg, StrokeColor: fg}
	}
	return chart.Style{FillColor: chart.ColorWhite}, chart.Style{FontColor: chart.ColorBlack, StrokeColor: chart.ColorBlack}
}
