package frontier

import (
	"github.com/falcone-gk/Finance-Instruments/internal/modules/metrics"
)

// Point is an immutable portfolio snapshot.
type Point struct {
	Weights        []float64 `json:"weights" msgpack:"weights"`
	ExpectedReturn float64   `json:"expected_return" msgpack:"expected_return"`
	Risk           float64   `json:"risk" msgpack:"risk"`
	SharpeRatio    float64   `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	// SharpeDefined is false for zero-risk portfolios; SharpeRatio is then 0.
	SharpeDefined bool `json:"sharpe_defined" msgpack:"sharpe_defined"`
	// Target is the return the frontier solve was pinned to (frontier points only).
	Target float64 `json:"target_return,omitempty" msgpack:"target_return,omitempty"`
}

func newPoint(w []float64, snap metrics.Snapshot) Point {
	weights := make([]float64, len(w))
	copy(weights, w)
	return Point{
		Weights:        weights,
		ExpectedReturn: snap.ExpectedReturn,
		Risk:           snap.Risk,
		SharpeRatio:    snap.SharpeRatio,
		SharpeDefined:  snap.SharpeDefined,
	}
}

// Frontier is the swept efficient frontier.
// Points are sorted by ascending target return, which is ascending risk.
type Frontier struct {
	RunID       string    `json:"run_id" msgpack:"run_id"`
	Assets      []string  `json:"assets" msgpack:"assets"`
	Points      []Point   `json:"points" msgpack:"points"`
	MinVariance Point     `json:"min_variance" msgpack:"min_variance"`
	MaxReturn   Point     `json:"max_return" msgpack:"max_return"`
	Requested   int       `json:"requested" msgpack:"requested"`
	Converged   int       `json:"converged" msgpack:"converged"`
	Skipped     int       `json:"skipped" msgpack:"skipped"`
	Gaps        []float64 `json:"gaps" msgpack:"gaps"` // target returns whose solve did not converge
}

// Risks returns the risk of every point, in frontier order.
func (f *Frontier) Risks() []float64 {
	out := make([]float64, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.Risk
	}
	return out
}

// Returns returns the expected return of every point, in frontier order.
func (f *Frontier) Returns() []float64 {
	out := make([]float64, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.ExpectedReturn
	}
	return out
}
