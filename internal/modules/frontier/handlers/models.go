package handlers

import (
	"github.com/falcone-gk/Finance-Instruments/internal/modules/assetpair"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/bond"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/frontier"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/metrics"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/montecarlo"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/returns"
)

// FrontierRequest is the body of POST /frontier.
type FrontierRequest struct {
	Returns     [][]float64 `json:"returns" msgpack:"returns" validate:"required,min=2,dive,min=2"`
	Assets      []string    `json:"assets" msgpack:"assets" validate:"omitempty,dive,required"`
	Resolution  int         `json:"resolution" msgpack:"resolution" validate:"omitempty,gte=2,lte=500"`
	Samples     *int        `json:"samples,omitempty" msgpack:"samples,omitempty" validate:"omitempty,gte=0,lte=100000"`
	Aggregation string      `json:"aggregation" msgpack:"aggregation" validate:"omitempty,oneof=sum mean"`
	Sampling    string      `json:"sampling" msgpack:"sampling" validate:"omitempty,oneof=uniform dirichlet"`
	Charts      bool        `json:"charts" msgpack:"charts"`
}

// FrontierResponse carries the special portfolios, the swept frontier and
// the optional Monte Carlo cloud.
type FrontierResponse struct {
	Assets           []string                  `json:"assets" msgpack:"assets"`
	Aggregation      metrics.Aggregation       `json:"aggregation" msgpack:"aggregation"`
	MinVariance      frontier.Point            `json:"min_variance" msgpack:"min_variance"`
	MaxReturn        frontier.Point            `json:"max_return" msgpack:"max_return"`
	MaxSharpe        frontier.Point            `json:"max_sharpe" msgpack:"max_sharpe"`
	Frontier         *frontier.Frontier        `json:"frontier" msgpack:"frontier"`
	Cloud            *montecarlo.Cloud         `json:"cloud,omitempty" msgpack:"cloud,omitempty"`
	HighCorrelations []returns.CorrelationPair `json:"high_correlations" msgpack:"high_correlations"`
	Charts           map[string][]byte         `json:"charts,omitempty" msgpack:"charts,omitempty"`
}

// MetricsRequest is the body of POST /portfolio/metrics.
type MetricsRequest struct {
	Returns     [][]float64 `json:"returns" msgpack:"returns" validate:"required,min=2,dive,min=2"`
	Assets      []string    `json:"assets" msgpack:"assets" validate:"omitempty,dive,required"`
	Weights     []float64   `json:"weights" msgpack:"weights" validate:"required,min=2"`
	Aggregation string      `json:"aggregation" msgpack:"aggregation" validate:"omitempty,oneof=sum mean"`
}

// MetricsResponse is the metric triple of one allocation plus per-asset statistics.
type MetricsResponse struct {
	metrics.Snapshot `msgpack:",inline"`
	Aggregation      metrics.Aggregation `json:"aggregation" msgpack:"aggregation"`
	Assets           []string            `json:"assets" msgpack:"assets"`
	AssetReturns     []float64           `json:"asset_returns" msgpack:"asset_returns"`
	Volatilities     []float64           `json:"volatilities" msgpack:"volatilities"`
}

// BondValuationRequest is the body of POST /bonds/valuation.
type BondValuationRequest struct {
	Nominal    float64  `json:"nominal" msgpack:"nominal" validate:"gt=0"`
	Rate       float64  `json:"rate" msgpack:"rate" validate:"gt=-1"`
	CouponRate float64  `json:"coupon_rate" msgpack:"coupon_rate" validate:"gte=0"`
	Periods    int      `json:"periods" msgpack:"periods" validate:"gte=0,lte=1000"`
	NewRate    *float64 `json:"new_rate,omitempty" msgpack:"new_rate,omitempty" validate:"omitempty,gt=-1"`
	Method     string   `json:"method" msgpack:"method" default:"none" validate:"oneof=none modified_duration modified_duration_convexity"`
}

// BondValuationResponse bundles the closed-form measures and an optional rate shock.
type BondValuationResponse struct {
	bond.Valuation `msgpack:",inline"`
	Sensitivity    *Sensitivity `json:"sensitivity,omitempty" msgpack:"sensitivity,omitempty"`
}

// Sensitivity is the estimated relative price change for a rate move.
type Sensitivity struct {
	NewRate        float64     `json:"new_rate" msgpack:"new_rate"`
	Method         bond.Method `json:"method" msgpack:"method"`
	RelativeChange float64     `json:"relative_change" msgpack:"relative_change"`
}

// PairRequest is the body of POST /pairs.
type PairRequest struct {
	AssetA       assetpair.Asset `json:"asset_a" msgpack:"asset_a"`
	AssetB       assetpair.Asset `json:"asset_b" msgpack:"asset_b"`
	WeightA      float64         `json:"weight_a" msgpack:"weight_a" validate:"gte=0,lte=1"`
	Correlation  float64         `json:"correlation" msgpack:"correlation" validate:"gte=-1,lte=1"`
	Correlations []float64       `json:"correlations" msgpack:"correlations" validate:"omitempty,max=20,dive,gte=-1,lte=1"`
	Steps        int             `json:"steps" msgpack:"steps" default:"200" validate:"gte=2,lte=2000"`
	Charts       bool            `json:"charts" msgpack:"charts"`
}

// PairResponse describes the two-asset portfolio and its yield curves.
type PairResponse struct {
	Covariance    float64           `json:"covariance" msgpack:"covariance"`
	ExpectedYield float64           `json:"expected_yield" msgpack:"expected_yield"`
	Variance      float64           `json:"variance" msgpack:"variance"`
	Risk          float64           `json:"risk" msgpack:"risk"`
	Description   string            `json:"description" msgpack:"description"`
	Curves        []assetpair.Curve `json:"curves,omitempty" msgpack:"curves,omitempty"`
	Charts        map[string][]byte `json:"charts,omitempty" msgpack:"charts,omitempty"`
}
