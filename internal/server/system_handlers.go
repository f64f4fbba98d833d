package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/falcone-gk/Finance-Instruments/internal/config"
	"github.com/falcone-gk/Finance-Instruments/internal/database"
)

// SystemHandlers serves process and host status.
type SystemHandlers struct {
	log     zerolog.Logger
	cfg     *config.Config
	runsDB  *database.DB // optional
	started time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, cfg *config.Config) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("handler", "system").Logger(),
		cfg:     cfg,
		started: time.Now(),
	}
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	GoVersion     string         `json:"go_version"`
	Goroutines    int            `json:"goroutines"`
	HeapMB        float64        `json:"heap_mb"`
	CPUPercent    float64        `json:"cpu_percent"`
	RAMPercent    float64        `json:"ram_percent"`
	Engine        EngineSettings `json:"engine"`
	LastChecked   string         `json:"last_checked"`
}

// EngineSettings echoes the solver and sweep configuration in effect.
type EngineSettings struct {
	Method              string  `json:"method"`
	MaxIterations       int     `json:"max_iterations"`
	ConstraintTolerance float64 `json:"constraint_tolerance"`
	SolveTimeout        string  `json:"solve_timeout"`
	Resolution          int     `json:"resolution"`
	Workers             int     `json:"workers"`
	ReturnAggregation   string  `json:"return_aggregation"`
	MonteCarloSamples   int     `json:"monte_carlo_samples"`
	MonteCarloSampling  string  `json:"monte_carlo_sampling"`
	ChartsEnabled       bool    `json:"charts_enabled"`
}

// SetRunsDB reports statistics of the run history database in the status response
func (h *SystemHandlers) SetRunsDB(db *database.DB) {
	h.runsDB = db
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
func (h *SystemHandlers) GetSystemStatusSnapshot() SystemStatusResponse {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	cpuPercent, ramPercent := h.getSystemStats()

	workers := h.cfg.Frontier.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var dbStats *database.Stats
	if h.runsDB != nil {
		stats, err := h.runsDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get run database statistics")
		} else {
			dbStats = stats
		}
	}

	return SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.started).Seconds(),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		HeapMB:        float64(ms.HeapAlloc) / 1024 / 1024,
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Engine: EngineSettings{
			Method:              h.cfg.Optimizer.Method,
			MaxIterations:       h.cfg.Optimizer.MaxIterations,
			ConstraintTolerance: h.cfg.Optimizer.ConstraintTolerance,
			SolveTimeout:        h.cfg.Optimizer.Timeout.String(),
			Resolution:          h.cfg.Frontier.Resolution,
			Workers:             workers,
			ReturnAggregation:   h.cfg.Frontier.ReturnAggregation,
			MonteCarloSamples:   h.cfg.MonteCarlo.Samples,
			MonteCarloSampling:  h.cfg.MonteCarlo.Sampling,
			ChartsEnabled:       h.cfg.Charts.Enabled,
		},
		RunsDB:      dbStats,
		LastChecked: time.Now().Format(time.RFC3339),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := h.GetSystemStatusSnapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// The CPU sample window is kept short so the call stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
