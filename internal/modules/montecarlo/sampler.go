// Package montecarlo draws random feasible portfolios as a baseline cloud
// for the efficient frontier.
//
// SamplingNormalizedUniform draws N independent U(0,1) values and divides by
// their sum. It is not uniform over the simplex: draws concentrate toward
// the equal-weight centre. It stays the default so clouds match earlier
// results. SamplingDirichlet draws from Dirichlet(1,...,1), which is uniform
// over the simplex.
package montecarlo

import (
	"math/rand/v2"
	"strings"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/metrics"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampling selects how weight vectors are drawn.
type Sampling string

const (
	SamplingNormalizedUniform Sampling = "uniform"
	SamplingDirichlet         Sampling = "dirichlet"
)

// MaxSamples caps a single Sample call.
const MaxSamples = 1_000_000

// ParseSampling maps a config value to a Sampling. Empty means normalized uniform.
func ParseSampling(value string) (Sampling, error) {
	switch Sampling(strings.ToLower(strings.TrimSpace(value))) {
	case "", SamplingNormalizedUniform, "normalized-uniform":
		return SamplingNormalizedUniform, nil
	case SamplingDirichlet:
		return SamplingDirichlet, nil
	default:
		return "", domain.InvalidInputf("unknown sampling mode %q", value)
	}
}

// Options configures a Sampler.
type Options struct {
	Sampling Sampling
	Seed     uint64
}

// Cloud holds parallel slices, one entry per sampled portfolio.
type Cloud struct {
	Weights [][]float64 `json:"weights" msgpack:"weights"`
	Returns []float64   `json:"returns" msgpack:"returns"`
	Risks   []float64   `json:"risks" msgpack:"risks"`
	Sharpes []float64   `json:"sharpes" msgpack:"sharpes"` // 0 for zero-risk samples
}

// Len returns the number of samples.
func (c Cloud) Len() int {
	return len(c.Returns)
}

// MinRiskIndex returns the index of the least risky sample, or -1 when empty.
func (c Cloud) MinRiskIndex() int {
	if len(c.Risks) == 0 {
		return -1
	}
	return floats.MinIdx(c.Risks)
}

// MaxSharpeIndex returns the index of the sample with the highest Sharpe ratio, or -1 when empty.
func (c Cloud) MaxSharpeIndex() int {
	if len(c.Sharpes) == 0 {
		return -1
	}
	return floats.MaxIdx(c.Sharpes)
}

// Sampler draws feasible weight vectors and evaluates them.
// A Sampler owns a random stream and is not safe for concurrent use.
type Sampler struct {
	calc     *metrics.Calculator
	sampling Sampling
	draw     func(dst []float64)
	log      zerolog.Logger
}

// NewSampler builds a sampler seeded from opts.Seed.
func NewSampler(calc *metrics.Calculator, opts Options, log zerolog.Logger) (*Sampler, error) {
	if calc == nil {
		return nil, domain.InvalidInputf("nil calculator")
	}
	sampling, err := ParseSampling(string(opts.Sampling))
	if err != nil {
		return nil, err
	}

	n := calc.Assets()
	src := rand.NewPCG(opts.Seed, opts.Seed^0xda3e39cb94b95bdb)

	s := &Sampler{
		calc:     calc,
		sampling: sampling,
		log:      log.With().Str("component", "monte_carlo").Logger(),
	}

	switch sampling {
	case SamplingDirichlet:
		alpha := make([]float64, n)
		for i := range alpha {
			alpha[i] = 1
		}
		dir := distmv.NewDirichlet(alpha, src)
		s.draw = func(dst []float64) { dir.Rand(dst) }
	default:
		unif := distuv.Uniform{Min: 0, Max: 1, Src: src}
		s.draw = func(dst []float64) {
			for i := range dst {
				dst[i] = unif.Rand()
			}
			floats.Scale(1/floats.Sum(dst), dst)
		}
	}
	return s, nil
}

// Sampling returns the configured sampling mode.
func (s *Sampler) Sampling() Sampling {
	return s.sampling
}

// Sample draws n portfolios. Every weight vector sums to 1 with components in [0,1].
func (s *Sampler) Sample(n int) (Cloud, error) {
	if n < 0 || n > MaxSamples {
		return Cloud{}, domain.InvalidInputf("sample count %d outside [0, %d]", n, MaxSamples)
	}

	assets := s.calc.Assets()
	cloud := Cloud{
		Weights: make([][]float64, n),
		Returns: make([]float64, n),
		Risks:   make([]float64, n),
		Sharpes: make([]float64, n),
	}

	zeroRisk := 0
	for i := 0; i < n; i++ {
		w := make([]float64, assets)
		s.draw(w)

		snap, err := s.calc.Evaluate(w)
		if err != nil {
			return Cloud{}, err
		}
		if !snap.SharpeDefined {
			zeroRisk++
		}

		cloud.Weights[i] = w
		cloud.Returns[i] = snap.ExpectedReturn
		cloud.Risks[i] = snap.Risk
		cloud.Sharpes[i] = snap.SharpeRatio
	}

	s.log.Debug().
		Int("samples", n).
		Str("sampling", string(s.sampling)).
		Int("zero_risk", zeroRisk).
		Msg("Sampled portfolio cloud")

	return cloud, nil
}
