package harness

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/config"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/logger"
	"github.com/teranos/invar/transform"
)

// memoryWarnPercent is the utilization above which the runner warns before
// starting a batch.
const memoryWarnPercent = 90.0

// Runner drives a batch evaluation: it expands corpus × suite into defect
// measurements, fans them out over a bounded worker pool, and collects the
// samples. Samples carry no ordering guarantee between each other; each
// sample's internal canonicalizations happen-before its defect computation
// because a sample runs on a single worker.
type Runner struct {
	tester  *Tester
	suite   *transform.Suite
	cfg     config.HarnessConfig
	limiter *rate.Limiter
	store   *SampleStore // may be nil: samples are then not persisted
	log     *zap.SugaredLogger
	canary  *zap.SugaredLogger
}

// NewRunner creates a runner for one evaluation run.
func NewRunner(c *canon.Canonicalizer, suite *transform.Suite, weights Weights, cfg config.HarnessConfig, store *SampleStore) *Runner {
	runID := uuid.New().String()
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	}
	return &Runner{
		tester:  NewTester(c, weights, runID),
		suite:   suite,
		cfg:     cfg,
		limiter: limiter,
		store:   store,
		log:     logger.Named("harness").With("run_id", runID),
		canary:  logger.Canary().With("run_id", runID),
	}
}

// RunID returns the identifier stamped onto every sample of this run.
func (r *Runner) RunID() string { return r.tester.runID }

type taskFn func() (*DefectSample, error)

// BatchRun parses the corpus, expands the sampling plan and executes it.
// Cancellation is cooperative between samples only — a sample that has
// started always finishes, so no partially-signed artifacts appear.
func (r *Runner) BatchRun(ctx context.Context, corpus [][]byte) ([]*DefectSample, error) {
	trees, err := r.parseCorpus(corpus)
	if err != nil {
		return nil, err
	}
	if err := r.checkProbeFraction(len(trees)); err != nil {
		return nil, err
	}
	r.warnOnMemoryPressure()

	tasks := r.plan(trees)
	r.log.Infow("batch run starting",
		"corpus", len(trees),
		"probes", len(r.suite.Probes),
		"tasks", len(tasks),
		"workers", r.cfg.Workers,
	)

	samples, err := r.execute(ctx, tasks)
	if err != nil {
		return nil, err
	}

	r.runCanaries(ctx, trees)

	if r.store != nil {
		for _, s := range samples {
			if err := r.store.Append(s); err != nil {
				return nil, errors.Wrap(err, "failed to persist defect sample")
			}
		}
	}

	conclusive := len(Conclusive(samples))
	r.log.Infow("batch run complete",
		"samples", len(samples),
		"conclusive", conclusive,
		"inconclusive", len(samples)-conclusive,
	)
	return samples, nil
}

// parseCorpus parses and validates every corpus document. A document the
// pipeline vetoes cannot anchor any measurement and is dropped with a
// warning rather than failing the run.
func (r *Runner) parseCorpus(corpus [][]byte) ([]*canon.Node, error) {
	var trees []*canon.Node
	for i, raw := range corpus {
		root, err := canon.Parse(raw)
		if err != nil {
			r.log.Warnw("corpus document vetoed at parse", "index", i, "error", err)
			continue
		}
		if err := canon.Validate(root, r.tester.canon.Schema()); err != nil {
			r.log.Warnw("corpus document vetoed at validation", "index", i, "error", err)
			continue
		}
		trees = append(trees, root)
	}
	if len(trees) == 0 {
		return nil, errors.New("no corpus document survived parse and validation")
	}
	return trees, nil
}

// checkProbeFraction enforces the mandatory boundary-probe share of the
// corpus. Too few probes means trivial collapse could go undetected, so the
// run refuses to start.
func (r *Runner) checkProbeFraction(corpusLen int) error {
	probes := len(r.suite.Probes)
	actual := float64(probes) / float64(probes+corpusLen)
	if actual < r.cfg.ProbeFraction {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"boundary probes are %.0f%% of the corpus, minimum is %.0f%%",
			actual*100, r.cfg.ProbeFraction*100)
	}
	return nil
}

func (r *Runner) warnOnMemoryPressure() {
	v, err := mem.VirtualMemory()
	if err != nil {
		r.log.Debugw("memory stats unavailable", "error", err)
		return
	}
	if v.UsedPercent >= memoryWarnPercent {
		r.log.Warnw("high memory utilization at batch start",
			"used_percent", v.UsedPercent,
			"workers", r.cfg.Workers,
		)
	}
}

// plan expands corpus × suite into the task list, partitioned by strategy:
// boundary probes, within-family pairs, cross-family pairs, permutation
// chains, context embeddings, and the bounded worst-case search. Canaries
// are deliberately absent — they never enter the sample set.
func (r *Runner) plan(trees []*canon.Node) []taskFn {
	var tasks []taskFn

	for _, probe := range r.suite.Probes {
		p := probe
		tasks = append(tasks, func() (*DefectSample, error) { return r.tester.ProbeTest(p) })
	}

	families := r.suite.Families()
	for _, x := range trees {
		x := x
		for _, family := range families {
			for i := 0; i < len(family); i++ {
				for j := i + 1; j < len(family); j++ {
					g1, g2 := family[i], family[j]
					tasks = append(tasks, func() (*DefectSample, error) {
						return r.tester.LoopTest(x, g1, g2, StrategyWithinFamily)
					})
				}
			}
		}
		for i := 0; i < len(r.suite.Transforms); i++ {
			for j := i + 1; j < len(r.suite.Transforms); j++ {
				g1, g2 := r.suite.Transforms[i], r.suite.Transforms[j]
				if g1.Category == g2.Category {
					continue
				}
				tasks = append(tasks, func() (*DefectSample, error) {
					return r.tester.LoopTest(x, g1, g2, StrategyCrossFamily)
				})
			}
		}
		if chain := r.suite.Preserving(); len(chain) >= 3 {
			chain := chain[:3]
			tasks = append(tasks, func() (*DefectSample, error) {
				return r.tester.ChainTest(x, chain)
			})
		}
		for _, ctxPair := range r.suite.Contexts {
			ctxPair := ctxPair
			for _, g := range r.suite.Preserving() {
				g := g
				tasks = append(tasks, func() (*DefectSample, error) {
					return r.tester.MixedTest(x, g, ctxPair)
				})
			}
		}
	}

	if r.cfg.WorstCaseIterations > 0 && len(r.suite.Transforms) >= 2 {
		tasks = append(tasks, func() (*DefectSample, error) { return r.worstCase(trees) })
	}

	return tasks
}

// worstCase searches random (input, pair) draws for the defect-maximizing
// commutator, keeping the running maximum, bounded by the configured
// iteration budget. Runs as a single task because each step compares
// against the previous maximum.
func (r *Runner) worstCase(trees []*canon.Node) (*DefectSample, error) {
	rng := rand.New(rand.NewSource(int64(len(trees))))
	ts := r.suite.Transforms

	pick := func() (*canon.Node, *transform.Transform, *transform.Transform) {
		i, j := rng.Intn(len(ts)), rng.Intn(len(ts))
		for j == i {
			j = rng.Intn(len(ts))
		}
		return trees[rng.Intn(len(trees))], ts[i], ts[j]
	}

	x, g1, g2 := pick()
	best, err := r.tester.LoopTest(x, g1, g2, StrategyWorstCase)
	if err != nil {
		return nil, err
	}
	for i := 1; i < r.cfg.WorstCaseIterations; i++ {
		x, g1, g2 = pick()
		candidate, err := r.tester.LoopTest(x, g1, g2, StrategyWorstCase)
		if err != nil {
			return nil, err
		}
		if candidate.Conclusive && (!best.Conclusive || candidate.Distance > best.Distance) {
			best = candidate
		}
	}
	return best, nil
}

// execute fans tasks out over the worker pool. Cancellation is checked
// between samples; in-flight samples run to completion.
func (r *Runner) execute(ctx context.Context, tasks []taskFn) ([]*DefectSample, error) {
	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := r.cfg.QueueSize
	if queueSize < 1 {
		queueSize = len(tasks)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan taskFn, queueSize)
	results := make(chan *DefectSample, len(tasks))
	errs := make(chan error, workers)

	// Feed from a goroutine so an early worker exit can never deadlock a
	// producer blocked on a full queue.
	go func() {
		defer close(queue)
		for _, task := range tasks {
			select {
			case queue <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					return
				}
				if r.limiter != nil {
					if err := r.limiter.Wait(ctx); err != nil {
						return
					}
				}
				sample, err := task()
				if err != nil {
					errs <- err
					cancel()
					return
				}
				results <- sample
			}
		}()
	}

	wg.Wait()
	close(results)
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "batch run cancelled")
	}

	var samples []*DefectSample
	for s := range results {
		samples = append(samples, s)
	}
	return samples, nil
}

// runCanaries evaluates the secret canary transforms against the corpus and
// writes the outcome to the canary telemetry channel. Nothing here returns
// to the caller: canary results never influence gating.
func (r *Runner) runCanaries(ctx context.Context, trees []*canon.Node) {
	for _, c := range r.suite.Canaries {
		if ctx.Err() != nil {
			return
		}
		for i, x := range trees {
			base, err := r.tester.canonicalizeTree(x)
			if err != nil || base.Veto {
				continue
			}
			after, err := r.tester.canonicalizeTree(c.Apply(x))
			if err != nil {
				continue
			}
			if after.Veto {
				r.canary.Infow("canary vetoed", "canary", c.ID, "input", i, "reason", after.Reason)
				continue
			}
			r.canary.Infow("canary evaluated",
				"canary", c.ID,
				"input", i,
				"distance", Delta(base.Canonical, after.Canonical, r.tester.weights),
				"collapsed", base.StateID == after.StateID,
			)
		}
	}
}
