// Package charts renders frontier, allocation and yield-curve PNGs from the
// pure data produced by the computation modules. Rendering is optional: a
// disabled Presenter returns nil images and writes nothing.
package charts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/assetpair"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/frontier"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/montecarlo"
	"github.com/rs/zerolog"
	gocharts "github.com/vicanso/go-charts/v2"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Config enables the presenter and chooses where PNGs are written.
type Config struct {
	Enabled   bool
	OutputDir string // empty keeps images in memory only
	Style     Style
}

// Presenter renders charts when enabled.
type Presenter struct {
	enabled   bool
	outputDir string
	style     Style
	log       zerolog.Logger
}

// NewPresenter validates cfg. The output directory is created on first write.
func NewPresenter(cfg Config, log zerolog.Logger) (*Presenter, error) {
	style, err := cfg.Style.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Presenter{
		enabled:   cfg.Enabled,
		outputDir: cfg.OutputDir,
		style:     style,
		log:       log.With().Str("component", "charts").Logger(),
	}, nil
}

// Enabled reports whether render calls produce images.
func (p *Presenter) Enabled() bool {
	return p != nil && p.enabled
}

// Style returns the effective style.
func (p *Presenter) Style() Style {
	return p.style
}

// RenderFrontier draws the Monte Carlo cloud (optional) as a scatter, the
// frontier as a line and the min-variance and max-return portfolios as markers.
func (p *Presenter) RenderFrontier(f *frontier.Frontier, cloud *montecarlo.Cloud) ([]byte, error) {
	if !p.enabled {
		return nil, nil
	}
	if f == nil || len(f.Points) < 2 {
		return nil, domain.InvalidInputf("frontier needs at least 2 points to plot")
	}

	background, text := p.style.canvas()
	series := make([]chart.Series, 0, 3)
	if cloud != nil && cloud.Len() > 0 {
		series = append(series, chart.ContinuousSeries{
			Name: "Random portfolios",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    p.style.DotSize,
				DotColor:    chart.ColorBlue.WithAlpha(90),
			},
			XValues: cloud.Risks,
			YValues: cloud.Returns,
		})
	}
	series = append(series,
		chart.ContinuousSeries{
			Name:    "Efficient frontier",
			Style:   chart.Style{StrokeWidth: 2.5, StrokeColor: chart.ColorRed},
			XValues: f.Risks(),
			YValues: f.Returns(),
		},
		chart.ContinuousSeries{
			Name: "Min variance / max return",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    6,
				DotColor:    chart.ColorOrange,
			},
			XValues: []float64{f.MinVariance.Risk, f.MaxReturn.Risk},
			YValues: []float64{f.MinVariance.ExpectedReturn, f.MaxReturn.ExpectedReturn},
		},
	)

	graph := chart.Chart{
		Title:      p.style.title("Efficient frontier"),
		TitleStyle: text,
		Width:      p.style.Width,
		Height:     p.style.Height,
		Background: background,
		Canvas:     background,
		XAxis:      chart.XAxis{Name: "Risk", NameStyle: text, Style: text, ValueFormatter: chart.FloatValueFormatter},
		YAxis:      chart.YAxis{Name: "Expected return", NameStyle: text, Style: text, ValueFormatter: chart.FloatValueFormatter},
		Series:     series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	img, err := renderGoChart(graph)
	if err != nil {
		return nil, fmt.Errorf("render frontier: %w", err)
	}
	return img, p.save("frontier_"+f.RunID, img)
}

// RenderAllocation draws the weights of one portfolio as a bar chart, in percent.
func (p *Presenter) RenderAllocation(name string, point frontier.Point, assets []string) ([]byte, error) {
	if !p.enabled {
		return nil, nil
	}
	if len(point.Weights) == 0 || len(point.Weights) != len(assets) {
		return nil, domain.InvalidInputf("got %d weights for %d assets", len(point.Weights), len(assets))
	}

	percent := make([]float64, len(point.Weights))
	for i, w := range point.Weights {
		percent[i] = 100 * w
	}

	painter, err := gocharts.BarRender([][]float64{percent},
		gocharts.TitleTextOptionFunc(p.style.title(name),
			fmt.Sprintf("return %.4f • risk %.4f • sharpe %.4f", point.ExpectedReturn, point.Risk, point.SharpeRatio)),
		gocharts.XAxisDataOptionFunc(assets),
		gocharts.YAxisOptionFunc(gocharts.YAxisOption{DivideCount: 5}),
		gocharts.ThemeOptionFunc(p.style.vicansoTheme()),
		gocharts.WidthOptionFunc(p.style.Width),
		gocharts.HeightOptionFunc(p.style.Height),
	)
	if err != nil {
		return nil, fmt.Errorf("render allocation: %w", err)
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("render allocation: %w", err)
	}
	return img, p.save("allocation_"+name, img)
}

// RenderYieldCurves draws one risk/return line per correlation.
func (p *Presenter) RenderYieldCurves(curves []assetpair.Curve) ([]byte, error) {
	if !p.enabled {
		return nil, nil
	}
	if len(curves) == 0 {
		return nil, domain.InvalidInputf("no yield curves to plot")
	}

	palette := []drawing.Color{chart.ColorBlue, chart.ColorGreen, chart.ColorRed, chart.ColorOrange, chart.ColorCyan, chart.ColorYellow}
	background, text := p.style.canvas()
	series := make([]chart.Series, 0, len(curves))
	for i, c := range curves {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("corr: %g", c.Correlation),
			Style:   chart.Style{StrokeWidth: 2, StrokeColor: palette[i%len(palette)]},
			XValues: c.Risks,
			YValues: c.Returns,
		})
	}

	graph := chart.Chart{
		Title:      p.style.title("Two-asset yield curves"),
		TitleStyle: text,
		Width:      p.style.Width,
		Height:     p.style.Height,
		Background: background,
		Canvas:     background,
		XAxis:      chart.XAxis{Name: "Standard deviation", NameStyle: text, Style: text, ValueFormatter: chart.FloatValueFormatter},
		YAxis:      chart.YAxis{Name: "Expected yield", NameStyle: text, Style: text, ValueFormatter: chart.FloatValueFormatter},
		Series:     series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	img, err := renderGoChart(graph)
	if err != nil {
		return nil, fmt.Errorf("render yield curves: %w", err)
	}
	return img, p.save("yield_curves", img)
}

func renderGoChart(graph chart.Chart) ([]byte, error) {
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// save writes img to OutputDir/<name>.png when an output directory is set.
func (p *Presenter) save(name string, img []byte) error {
	if p.outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	file := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if file == "" {
		file = "chart"
	}
	path := filepath.Join(p.outputDir, file+".png")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}

	p.log.Info().Str("path", path).Int("bytes", len(img)).Msg("Chart written")
	return nil
}
