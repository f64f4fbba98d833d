package frontier

import (
	"context"
	"errors"
	"sync"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/rs/zerolog"
)

// solveJob is one target return to solve for.
type solveJob struct {
	index  int
	target float64
}

// solveOutcome is the result of one frontier solve.
type solveOutcome struct {
	index int
	point Point
	gap   bool
	err   error
}

// sweep solves every target on a bounded worker pool. Outcomes are indexed
// like targets. The first non-convergence error cancels the remaining solves.
func (b *Builder) sweep(ctx context.Context, targets []float64, log zerolog.Logger) ([]solveOutcome, error) {
	numTargets := len(targets)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan solveJob, numTargets)
	results := make(chan solveOutcome, numTargets)

	numWorkers := b.workers
	if numTargets < numWorkers {
		numWorkers = numTargets
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.worker(ctx, jobs, results, log)
		}()
	}

	for idx, target := range targets {
		jobs <- solveJob{index: idx, target: target}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]solveOutcome, numTargets)
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
			cancel()
		}
		outcomes[res.index] = res
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return outcomes, nil
}

// worker solves jobs until the channel closes or ctx is done.
func (b *Builder) worker(ctx context.Context, jobs <-chan solveJob, results chan<- solveOutcome, log zerolog.Logger) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- solveOutcome{index: job.index, err: err}
			continue
		}
		results <- b.solveTarget(ctx, job, log)
	}
}

func (b *Builder) solveTarget(ctx context.Context, job solveJob, log zerolog.Logger) solveOutcome {
	res, err := b.optimizer.Minimize(ctx, b.targetProblem(job.target))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return solveOutcome{index: job.index, err: ctxErr}
		}
		if errors.Is(err, domain.ErrConvergence) {
			log.Warn().Err(err).Float64("target", job.target).Msg("Frontier point did not converge, recording gap")
			return solveOutcome{index: job.index, gap: true}
		}
		return solveOutcome{index: job.index, err: err}
	}

	p, err := b.point(res.X)
	if err != nil {
		return solveOutcome{index: job.index, err: err}
	}
	p.Target = job.target
	return solveOutcome{index: job.index, point: p}
}
