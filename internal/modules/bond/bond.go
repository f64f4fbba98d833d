// Package bond values fixed-coupon bonds with annual coupons and integer
// maturities, and estimates price changes under a rate move.
package bond

import (
	"math"
	"strings"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Method selects how PriceSensitivity estimates a relative price change.
type Method string

const (
	// MethodNone reprices the bond at the new rate.
	MethodNone Method = "none"
	// MethodModifiedDuration uses the first-order estimate -Dmod·Δr.
	MethodModifiedDuration Method = "modified_duration"
	// MethodModifiedDurationConvexity adds the second-order term ½·C·Δr².
	MethodModifiedDurationConvexity Method = "modified_duration_convexity"
)

// ParseMethod maps a request value to a Method. Empty means MethodNone.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case "", MethodNone:
		return MethodNone, nil
	case MethodModifiedDuration:
		return MethodModifiedDuration, nil
	case MethodModifiedDurationConvexity:
		return MethodModifiedDurationConvexity, nil
	default:
		return "", domain.InvalidInputf("unknown price sensitivity method %q", value)
	}
}

// Bond is an immutable fixed-coupon bond. Rates are decimals per period
// (0.05, not 5) and every input must be expressed on the same time basis.
type Bond struct {
	nominal    float64
	rate       float64
	couponRate float64
	periods    int
}

// Valuation bundles the closed-form measures of a bond.
type Valuation struct {
	Price            float64 `json:"price" msgpack:"price"`
	Duration         float64 `json:"duration" msgpack:"duration"`
	ModifiedDuration float64 `json:"modified_duration" msgpack:"modified_duration"`
	Convexity        float64 `json:"convexity" msgpack:"convexity"`
}

// New validates the inputs and returns a Bond.
func New(nominal, rate, couponRate float64, periods int) (*Bond, error) {
	if !finite(nominal) || nominal <= 0 {
		return nil, domain.InvalidInputf("nominal value must be a positive finite number, got %g", nominal)
	}
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	if !finite(couponRate) || couponRate < 0 {
		return nil, domain.InvalidInputf("coupon rate must be a non-negative finite number, got %g", couponRate)
	}
	if periods < 0 {
		return nil, domain.InvalidInputf("periods must not be negative, got %d", periods)
	}
	return &Bond{nominal: nominal, rate: rate, couponRate: couponRate, periods: periods}, nil
}

func (b *Bond) Nominal() float64    { return b.nominal }
func (b *Bond) Rate() float64       { return b.rate }
func (b *Bond) CouponRate() float64 { return b.couponRate }
func (b *Bond) Periods() int        { return b.periods }

// WithRate returns a copy of the bond discounted at rate.
func (b *Bond) WithRate(rate float64) (*Bond, error) {
	return New(b.nominal, rate, b.couponRate, b.periods)
}

// Coupon returns the cash coupon paid each period.
func (b *Bond) Coupon() float64 {
	return b.couponRate * b.nominal
}

// Price is the present value of every coupon plus the nominal at maturity.
func (b *Bond) Price() float64 {
	return floats.Sum(b.presentValues())
}

// Duration is the Macaulay duration: the PV-weighted mean time of the cash flows.
func (b *Bond) Duration() float64 {
	pvs := b.presentValues()
	price := floats.Sum(pvs)
	dur := 0.0
	for i, pv := range pvs {
		dur += float64(i) * (pv / price)
	}
	return dur
}

// ModifiedDuration is Duration / (1 + rate).
func (b *Bond) ModifiedDuration() float64 {
	return b.Duration() / (1 + b.rate)
}

// Convexity is Σ t(t+1)·CF_t/(1+r)^(t+2) divided by the price.
func (b *Bond) Convexity() float64 {
	pvs := b.presentValues()
	price := floats.Sum(pvs)
	growth := (1 + b.rate) * (1 + b.rate)
	conv := 0.0
	for i, pv := range pvs {
		t := float64(i)
		conv += t * (t + 1) * pv / growth
	}
	return conv / price
}

// Valuation returns price, duration, modified duration and convexity.
func (b *Bond) Valuation() Valuation {
	return Valuation{
		Price:            b.Price(),
		Duration:         b.Duration(),
		ModifiedDuration: b.ModifiedDuration(),
		Convexity:        b.Convexity(),
	}
}

// PriceSensitivity returns the relative price change (P1-P0)/P0 when the
// rate moves to newRate, computed with method.
func (b *Bond) PriceSensitivity(newRate float64, method Method) (float64, error) {
	if err := validateRate(newRate); err != nil {
		return 0, err
	}
	delta := newRate - b.rate

	switch method {
	case "", MethodNone:
		moved, err := b.WithRate(newRate)
		if err != nil {
			return 0, err
		}
		p0 := b.Price()
		return (moved.Price() - p0) / p0, nil
	case MethodModifiedDuration:
		return -b.ModifiedDuration() * delta, nil
	case MethodModifiedDurationConvexity:
		return -b.ModifiedDuration()*delta + 0.5*b.Convexity()*delta*delta, nil
	default:
		return 0, domain.InvalidInputf("unknown price sensitivity method %q", method)
	}
}

// presentValues returns the discounted cash flow of every period, indexed by
// period; index 0 is only non-zero for a bond already at maturity.
func (b *Bond) presentValues() []float64 {
	pvs := make([]float64, b.periods+1)
	if b.periods == 0 {
		pvs[0] = b.nominal
		return pvs
	}

	coupon := b.Coupon()
	discount := 1.0
	for t := 1; t <= b.periods; t++ {
		discount *= 1 + b.rate
		cf := coupon
		if t == b.periods {
			cf += b.nominal
		}
		pvs[t] = cf / discount
	}
	return pvs
}

func validateRate(rate float64) error {
	if !finite(rate) || rate <= -1 {
		return domain.InvalidInputf("interest rate must be finite and above -1, got %g", rate)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
