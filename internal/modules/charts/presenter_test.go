package charts

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/assetpair"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/frontier"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/montecarlo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG")

func sampleFrontier() *frontier.Frontier {
	points := []frontier.Point{
		{Weights: []float64{0.7, 0.3}, ExpectedReturn: 0.10, Risk: 0.08},
		{Weights: []float64{0.5, 0.5}, ExpectedReturn: 0.14, Risk: 0.10},
		{Weights: []float64{0.2, 0.8}, ExpectedReturn: 0.19, Risk: 0.15},
	}
	return &frontier.Frontier{
		RunID:       "test-run",
		Assets:      []string{"bonds", "equities"},
		Points:      points,
		MinVariance: points[0],
		MaxReturn:   points[2],
		Requested:   3,
		Converged:   3,
	}
}

func sampleCloud() *montecarlo.Cloud {
	return &montecarlo.Cloud{
		Returns: []float64{0.11, 0.13, 0.16, 0.12},
		Risks:   []float64{0.10, 0.12, 0.14, 0.13},
		Sharpes: []float64{1.1, 1.08, 1.14, 0.92},
	}
}

func newTestPresenter(t *testing.T, cfg Config) *Presenter {
	t.Helper()
	p, err := NewPresenter(cfg, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestPresenter_DisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	p := newTestPresenter(t, Config{Enabled: false, OutputDir: dir})
	assert.False(t, p.Enabled())
	assert.Equal(t, DefaultStyle(), p.Style())

	img, err := p.RenderFrontier(sampleFrontier(), sampleCloud())
	assert.NoError(t, err)
	assert.Nil(t, img)

	img, err = p.RenderAllocation("min variance", sampleFrontier().MinVariance, []string{"bonds", "equities"})
	assert.NoError(t, err)
	assert.Nil(t, img)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenderFrontier(t *testing.T) {
	dir := t.TempDir()
	p := newTestPresenter(t, Config{Enabled: true, OutputDir: dir, Style: Style{Title: "Test"}})

	img, err := p.RenderFrontier(sampleFrontier(), sampleCloud())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	written, err := os.ReadFile(filepath.Join(dir, "frontier_test-run.png"))
	require.NoError(t, err)
	assert.Equal(t, img, written)
}

func TestRenderFrontier_WithoutCloudInMemory(t *testing.T) {
	p := newTestPresenter(t, Config{Enabled: true, Style: Style{Theme: ThemeDark}})

	img, err := p.RenderFrontier(sampleFrontier(), nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestRenderFrontier_TooFewPoints(t *testing.T) {
	p := newTestPresenter(t, Config{Enabled: true})
	f := sampleFrontier()
	f.Points = f.Points[:1]

	_, err := p.RenderFrontier(f, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRenderAllocation(t *testing.T) {
	dir := t.TempDir()
	p := newTestPresenter(t, Config{Enabled: true, OutputDir: dir})

	img, err := p.RenderAllocation("Max Sharpe", sampleFrontier().Points[1], []string{"bonds", "equities"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
	assert.FileExists(t, filepath.Join(dir, "allocation_max_sharpe.png"))

	_, err = p.RenderAllocation("bad", sampleFrontier().Points[1], []string{"bonds"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRenderYieldCurves(t *testing.T) {
	pair, err := assetpair.New(assetpair.Asset{Return: 0.1, StdDev: 0.12}, assetpair.Asset{Return: 0.25, StdDev: 0.3}, 0.1, -1)
	require.NoError(t, err)
	curves, err := pair.YieldCurves([]float64{-1, -0.2, 1}, 50)
	require.NoError(t, err)

	p := newTestPresenter(t, Config{Enabled: true})
	img, err := p.RenderYieldCurves(curves)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = p.RenderYieldCurves(nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestStyle_Validation(t *testing.T) {
	s, err := Style{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultStyle(), s)

	for _, bad := range []Style{
		{Width: 10, Height: 600},
		{Theme: "neon"},
		{DotSize: -1},
	} {
		_, err := NewPresenter(Config{Style: bad}, zerolog.Nop())
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), "%+v", bad)
	}
}
