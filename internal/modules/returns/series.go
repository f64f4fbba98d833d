// Package returns holds historical return series and the statistics derived from them.
package returns

import (
	"fmt"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/pkg/formulas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MinAssets is the smallest number of asset columns a series may have.
const MinAssets = 2

// Series is an immutable T×N table of periodic returns (rows are periods, columns are assets).
type Series struct {
	data   *mat.Dense
	assets []string
}

// NewSeries validates rows and copies them into a new Series.
// assets may be nil, in which case columns are named asset_0, asset_1, ...
func NewSeries(rows [][]float64, assets []string) (*Series, error) {
	if len(rows) < 2 {
		return nil, domain.InvalidInputf("need at least 2 periods, got %d", len(rows))
	}
	n := len(rows[0])
	if n < MinAssets {
		return nil, domain.InvalidInputf("need at least %d asset columns, got %d", MinAssets, n)
	}
	if assets != nil && len(assets) != n {
		return nil, domain.InvalidInputf("got %d asset names for %d columns", len(assets), n)
	}

	data := mat.NewDense(len(rows), n, nil)
	for t, row := range rows {
		if len(row) != n {
			return nil, domain.InvalidInputf("period %d has %d values, expected %d", t, len(row), n)
		}
		if !formulas.AllFinite(row) {
			return nil, domain.InvalidInputf("period %d contains a missing or non-finite value", t)
		}
		data.SetRow(t, row)
	}

	names := make([]string, n)
	for j := range names {
		if assets != nil && assets[j] != "" {
			names[j] = assets[j]
		} else {
			names[j] = fmt.Sprintf("asset_%d", j)
		}
	}

	return &Series{data: data, assets: names}, nil
}

// SeriesFromPrices converts a T×N price table into a (T-1)×N series of simple returns.
func SeriesFromPrices(prices [][]float64, assets []string) (*Series, error) {
	if len(prices) < 3 {
		return nil, domain.InvalidInputf("need at least 3 price observations, got %d", len(prices))
	}
	n := len(prices[0])
	for t, row := range prices {
		if len(row) != n {
			return nil, domain.InvalidInputf("price row %d has %d values, expected %d", t, len(row), n)
		}
	}

	rows := make([][]float64, len(prices)-1)
	for t := range rows {
		rows[t] = make([]float64, n)
	}
	col := make([]float64, len(prices))
	for j := 0; j < n; j++ {
		for t := range prices {
			col[t] = prices[t][j]
		}
		for t, r := range formulas.CalculateReturns(col) {
			rows[t][j] = r
		}
	}

	return NewSeries(rows, assets)
}

// Periods returns the number of observations T.
func (s *Series) Periods() int {
	r, _ := s.data.Dims()
	return r
}

// Assets returns the number of asset columns N.
func (s *Series) Assets() int {
	_, c := s.data.Dims()
	return c
}

// AssetNames returns a copy of the column names.
func (s *Series) AssetNames() []string {
	out := make([]string, len(s.assets))
	copy(out, s.assets)
	return out
}

// Row returns a copy of period t.
func (s *Series) Row(t int) []float64 {
	return mat.Row(nil, t, s.data)
}

// Column returns a copy of asset j's returns.
func (s *Series) Column(j int) []float64 {
	return mat.Col(nil, j, s.data)
}

// Rows returns a deep copy of the table.
func (s *Series) Rows() [][]float64 {
	out := make([][]float64, s.Periods())
	for t := range out {
		out[t] = s.Row(t)
	}
	return out
}

// ColumnSums returns the per-asset sum of returns over all periods.
func (s *Series) ColumnSums() []float64 {
	sums := make([]float64, s.Assets())
	for j := range sums {
		sums[j] = floats.Sum(s.Column(j))
	}
	return sums
}

// ColumnMeans returns the per-asset mean return.
func (s *Series) ColumnMeans() []float64 {
	means := make([]float64, s.Assets())
	for j := range means {
		means[j] = formulas.Mean(s.Column(j))
	}
	return means
}

// matrix exposes the backing table to this package's read-only computations.
func (s *Series) matrix() mat.Matrix {
	return s.data
}
