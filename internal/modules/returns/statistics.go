package returns

import (
	"math"
	"sort"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// HighCorrelationThreshold is the |ρ| above which a pair is reported as highly correlated.
const HighCorrelationThreshold = 0.80

// CorrelationPair is one off-diagonal entry of the correlation matrix.
type CorrelationPair struct {
	AssetA      string  `json:"asset_a" msgpack:"asset_a"`
	AssetB      string  `json:"asset_b" msgpack:"asset_b"`
	Correlation float64 `json:"correlation" msgpack:"correlation"`
}

// ComputeCovariance returns the sample covariance matrix of the series.
// The denominator is T-1; every risk figure in the module uses this matrix.
func ComputeCovariance(series *Series) (*mat.SymDense, error) {
	if series == nil {
		return nil, domain.InvalidInputf("nil return series")
	}
	if series.Assets() < MinAssets {
		return nil, domain.InvalidInputf("need at least %d asset columns, got %d", MinAssets, series.Assets())
	}

	n := series.Assets()
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, series.matrix(), nil)
	return cov, nil
}

// ComputeCorrelation returns the Pearson correlation matrix of the series.
// A column with zero variance makes its correlations undefined and fails with ErrDegenerateInput.
func ComputeCorrelation(series *Series) (*mat.SymDense, error) {
	cov, err := ComputeCovariance(series)
	if err != nil {
		return nil, err
	}
	return correlationFromCovariance(cov, series)
}

func correlationFromCovariance(cov *mat.SymDense, series *Series) (*mat.SymDense, error) {
	n := cov.SymmetricDim()
	if j, ok := zeroVarianceColumn(series); ok {
		return nil, domain.DegenerateInputf("asset %q has zero variance, correlation is undefined", series.assets[j])
	}

	sd := make([]float64, n)
	for i := 0; i < n; i++ {
		sd[i] = math.Sqrt(cov.At(i, i))
	}

	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			rho := cov.At(i, j) / (sd[i] * sd[j])
			// Clamp round-off so |ρ| never exceeds 1.
			corr.SetSym(i, j, math.Max(-1, math.Min(1, rho)))
		}
	}
	return corr, nil
}

// zeroVarianceColumn reports the first column whose values are all identical.
func zeroVarianceColumn(series *Series) (int, bool) {
	for j := 0; j < series.Assets(); j++ {
		col := series.Column(j)
		constant := true
		for _, v := range col[1:] {
			if v != col[0] {
				constant = false
				break
			}
		}
		if constant {
			return j, true
		}
	}
	return 0, false
}

// Statistics caches the covariance and correlation matrices of one series.
// A new series needs a new Statistics value.
type Statistics struct {
	series *Series
	cov    *mat.SymDense
	corr   *mat.SymDense
	log    zerolog.Logger
}

// NewStatistics computes and caches the covariance and correlation matrices.
func NewStatistics(series *Series, log zerolog.Logger) (*Statistics, error) {
	cov, err := ComputeCovariance(series)
	if err != nil {
		return nil, err
	}
	corr, err := correlationFromCovariance(cov, series)
	if err != nil {
		return nil, err
	}

	s := &Statistics{
		series: series,
		cov:    cov,
		corr:   corr,
		log:    log.With().Str("component", "return_statistics").Logger(),
	}

	s.log.Debug().
		Int("periods", series.Periods()).
		Int("assets", series.Assets()).
		Msg("Computed covariance and correlation matrices")

	return s, nil
}

// Series returns the underlying return series.
func (s *Statistics) Series() *Series {
	return s.series
}

// Assets returns the number of assets.
func (s *Statistics) Assets() int {
	return s.series.Assets()
}

// Covariance returns a copy of the cached covariance matrix.
func (s *Statistics) Covariance() *mat.SymDense {
	out := mat.NewSymDense(s.cov.SymmetricDim(), nil)
	out.CopySym(s.cov)
	return out
}

// CovarianceView returns the cached covariance matrix without copying.
// Callers must not mutate it.
func (s *Statistics) CovarianceView() mat.Symmetric {
	return s.cov
}

// Correlation returns a copy of the cached correlation matrix.
func (s *Statistics) Correlation() *mat.SymDense {
	out := mat.NewSymDense(s.corr.SymmetricDim(), nil)
	out.CopySym(s.corr)
	return out
}

// MeanReturns returns the per-asset mean return per period.
func (s *Statistics) MeanReturns() []float64 {
	return s.series.ColumnMeans()
}

// Volatilities returns the per-asset sample standard deviation.
func (s *Statistics) Volatilities() []float64 {
	n := s.cov.SymmetricDim()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sqrt(s.cov.At(i, i))
	}
	return out
}

// HighCorrelations returns the pairs with |ρ| ≥ threshold, strongest first.
// A non-positive threshold uses HighCorrelationThreshold.
func (s *Statistics) HighCorrelations(threshold float64) []CorrelationPair {
	if threshold <= 0 {
		threshold = HighCorrelationThreshold
	}

	names := s.series.assets
	pairs := make([]CorrelationPair, 0)
	n := s.corr.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho := s.corr.At(i, j)
			if math.Abs(rho) >= threshold {
				pairs = append(pairs, CorrelationPair{
					AssetA:      names[i],
					AssetB:      names[j],
					Correlation: rho,
				})
			}
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})

	if len(pairs) > 0 {
		s.log.Debug().Int("pairs", len(pairs)).Float64("threshold", threshold).Msg("High correlation pairs found")
	}
	return pairs
}
