// Package handlers provides HTTP handlers for portfolio optimization and
// fixed-income analytics.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/falcone-gk/Finance-Instruments/internal/modules/assetpair"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/bond"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/charts"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/frontier"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/metrics"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/montecarlo"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/optimization"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/returns"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// correlationThreshold flags asset pairs worth surfacing in a frontier response.
const correlationThreshold = 0.8

const defaultResolution = 50

// maxCachedBuilders bounds the number of distinct return matrices kept warm.
const maxCachedBuilders = 32

// Options carries server-wide defaults for requests that leave them unset.
type Options struct {
	Resolution  int
	Samples     int
	Aggregation metrics.Aggregation
	Workers     int
	Sampling    montecarlo.Sampling
	Seed        uint64
}

// RunStore persists served frontiers.
type RunStore interface {
	Save(ctx context.Context, run frontier.Run) error
	Get(ctx context.Context, runID string) (*frontier.Run, error)
	List(ctx context.Context, limit int) ([]frontier.RunSummary, error)
}

// Handler handles optimization HTTP requests
type Handler struct {
	optimizer optimization.ConstrainedOptimizer
	presenter *charts.Presenter
	runs      RunStore
	opts      Options
	log       zerolog.Logger

	mu       sync.Mutex
	builders map[string]*frontier.Builder
}

// NewHandler creates a new optimization handler. presenter may be nil.
func NewHandler(
	optimizer optimization.ConstrainedOptimizer,
	presenter *charts.Presenter,
	opts Options,
	log zerolog.Logger,
) *Handler {
	if opts.Aggregation == "" {
		opts.Aggregation = metrics.AggregateSum
	}
	if opts.Resolution < frontier.MinResolution {
		opts.Resolution = defaultResolution
	}
	if opts.Sampling == "" {
		opts.Sampling = montecarlo.SamplingNormalizedUniform
	}
	return &Handler{
		optimizer: optimizer,
		presenter: presenter,
		opts:      opts,
		log:       log.With().Str("handler", "frontier").Logger(),
		builders:  make(map[string]*frontier.Builder),
	}
}

// SetRunStore enables run persistence and the run history endpoints
func (h *Handler) SetRunStore(store RunStore) {
	h.runs = store
}

// HandleFrontier handles POST /api/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req FrontierRequest
	if errs := bind(w, r, &req); errs != nil {
		h.writeValidation(w, r, errs)
		return
	}

	agg, err := h.aggregation(req.Aggregation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	builder, stats, err := h.builder(req.Returns, req.Assets, agg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resolution := req.Resolution
	if resolution == 0 {
		resolution = h.opts.Resolution
	}
	samples := h.opts.Samples
	if req.Samples != nil {
		samples = *req.Samples
	}

	ctx := r.Context()
	f, err := builder.Frontier(ctx, resolution)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	maxSharpe, err := builder.MaxSharpePortfolio(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := FrontierResponse{
		Assets:           f.Assets,
		Aggregation:      agg,
		MinVariance:      f.MinVariance,
		MaxReturn:        f.MaxReturn,
		MaxSharpe:        maxSharpe,
		Frontier:         f,
		HighCorrelations: stats.HighCorrelations(correlationThreshold),
	}

	if samples > 0 {
		cloud, err := h.sample(stats, agg, req.Sampling, samples)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.Cloud = &cloud
	}

	if req.Charts && h.presenter.Enabled() {
		resp.Charts, err = h.frontierCharts(f, resp.Cloud, maxSharpe)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	if h.runs != nil {
		run := frontier.Run{Frontier: f, MaxSharpe: maxSharpe, Aggregation: string(agg), CreatedAt: time.Now()}
		if err := h.runs.Save(ctx, run); err != nil {
			h.log.Warn().Err(err).Str("run_id", f.RunID).Msg("Failed to store frontier run")
		}
	}

	h.log.Info().
		Str("run_id", f.RunID).
		Int("assets", len(f.Assets)).
		Int("converged", f.Converged).
		Int("skipped", f.Skipped).
		Msg("Frontier served")

	h.writeData(w, r, resp, f.RunID)
}

// HandleListRuns handles GET /api/frontier/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, r, errRunsDisabled)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.writeValidation(w, r, []ValidationError{{
				Code:    "ERR_LIMIT",
				Field:   "limit",
				Message: "limit must be an integer between 1 and 500",
			}})
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, runs, "")
}

// HandleGetRun handles GET /api/frontier/runs/{runID}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, r, errRunsDisabled)
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, run, runID)
}

// HandlePortfolioMetrics handles POST /api/portfolio/metrics
func (h *Handler) HandlePortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if errs := bind(w, r, &req); errs != nil {
		h.writeValidation(w, r, errs)
		return
	}

	agg, err := h.aggregation(req.Aggregation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	series, err := returns.NewSeries(req.Returns, req.Assets)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := returns.NewStatistics(series, h.log)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	calc, err := metrics.NewCalculator(stats, agg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := metrics.ValidateWeights(req.Weights, 1e-6); err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := calc.Evaluate(req.Weights)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, r, MetricsResponse{
		Snapshot:     snap,
		Aggregation:  agg,
		Assets:       series.AssetNames(),
		AssetReturns: calc.AssetReturns(),
		Volatilities: stats.Volatilities(),
	}, "")
}

// HandleBondValuation handles POST /api/bonds/valuation
func (h *Handler) HandleBondValuation(w http.ResponseWriter, r *http.Request) {
	var req BondValuationRequest
	if errs := bind(w, r, &req); errs != nil {
		h.writeValidation(w, r, errs)
		return
	}

	b, err := bond.New(req.Nominal, req.Rate, req.CouponRate, req.Periods)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := BondValuationResponse{Valuation: b.Valuation()}
	if req.NewRate != nil {
		method, err := bond.ParseMethod(req.Method)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		change, err := b.PriceSensitivity(*req.NewRate, method)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.Sensitivity = &Sensitivity{NewRate: *req.NewRate, Method: method, RelativeChange: change}
	}

	h.writeData(w, r, resp, "")
}

// HandlePair handles POST /api/pairs
func (h *Handler) HandlePair(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if errs := bind(w, r, &req); errs != nil {
		h.writeValidation(w, r, errs)
		return
	}

	p, err := assetpair.New(req.AssetA, req.AssetB, req.WeightA, req.Correlation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := PairResponse{
		Covariance:    p.Covariance(),
		ExpectedYield: p.ExpectedYield(),
		Variance:      p.Variance(),
		Risk:          p.Risk(),
		Description:   p.Description(),
	}

	if len(req.Correlations) > 0 {
		resp.Curves, err = p.YieldCurves(req.Correlations, req.Steps)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if req.Charts && h.presenter.Enabled() {
			img, err := h.presenter.RenderYieldCurves(resp.Curves)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			resp.Charts = map[string][]byte{"yield_curves": img}
		}
	}

	h.writeData(w, r, resp, "")
}

func (h *Handler) aggregation(value string) (metrics.Aggregation, error) {
	if value == "" {
		return h.opts.Aggregation, nil
	}
	return metrics.ParseAggregation(value)
}

// builder returns a cached frontier builder for the given inputs, creating it
// on first use. Identical requests share one builder and therefore one
// frontier computation.
func (h *Handler) builder(rows [][]float64, assets []string, agg metrics.Aggregation) (*frontier.Builder, *returns.Statistics, error) {
	key, err := builderKey(rows, assets, agg)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	if b, ok := h.builders[key]; ok {
		h.mu.Unlock()
		return b, b.Statistics(), nil
	}
	h.mu.Unlock()

	series, err := returns.NewSeries(rows, assets)
	if err != nil {
		return nil, nil, err
	}
	stats, err := returns.NewStatistics(series, h.log)
	if err != nil {
		return nil, nil, err
	}
	calc, err := metrics.NewCalculator(stats, agg)
	if err != nil {
		return nil, nil, err
	}
	b, err := frontier.NewBuilder(stats, calc, h.optimizer, frontier.Options{Workers: h.opts.Workers}, h.log)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.builders[key]; ok {
		return existing, existing.Statistics(), nil
	}
	if len(h.builders) >= maxCachedBuilders {
		for k := range h.builders {
			delete(h.builders, k)
			break
		}
	}
	h.builders[key] = b
	return b, stats, nil
}

func builderKey(rows [][]float64, assets []string, agg metrics.Aggregation) (string, error) {
	payload, err := msgpack.Marshal([]interface{}{rows, assets, agg})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func (h *Handler) sample(stats *returns.Statistics, agg metrics.Aggregation, sampling string, n int) (montecarlo.Cloud, error) {
	mode := h.opts.Sampling
	if sampling != "" {
		parsed, err := montecarlo.ParseSampling(sampling)
		if err != nil {
			return montecarlo.Cloud{}, err
		}
		mode = parsed
	}
	calc, err := metrics.NewCalculator(stats, agg)
	if err != nil {
		return montecarlo.Cloud{}, err
	}
	sampler, err := montecarlo.NewSampler(calc, montecarlo.Options{Sampling: mode, Seed: h.opts.Seed}, h.log)
	if err != nil {
		return montecarlo.Cloud{}, err
	}
	return sampler.Sample(n)
}

func (h *Handler) frontierCharts(f *frontier.Frontier, cloud *montecarlo.Cloud, maxSharpe frontier.Point) (map[string][]byte, error) {
	out := make(map[string][]byte, 2)
	if len(f.Points) >= 2 {
		img, err := h.presenter.RenderFrontier(f, cloud)
		if err != nil {
			return nil, err
		}
		out["frontier"] = img
	}
	img, err := h.presenter.RenderAllocation("max_sharpe_"+f.RunID, maxSharpe, f.Assets)
	if err != nil {
		return nil, err
	}
	out["max_sharpe_allocation"] = img
	return out, nil
}
