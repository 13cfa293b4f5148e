package de

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/TAIGA/internal/logging"
	"github.com/copyleftdev/TAIGA/internal/optimization"
)

const (
	diversityWarmup = 100
	diversityFloor  = 1e-10
)

// randStream couples a PCG source with the Rand built on top of it, so the
// same stream can feed both distuv samplers and plain draws.
type randStream struct {
	src rand.Source
	rng *rand.Rand
}

func newRandStream(seed1, seed2 uint64) *randStream {
	src := rand.NewPCG(seed1, seed2)
	return &randStream{src: src, rng: rand.New(src)}
}

// Optimizer is the adaptive differential evolution engine. It owns the
// population and drives the parameter manager, boundary processor and
// solution cache through the generational loop.
type Optimizer struct {
	objective func([]float64) float64
	bounds    *optimization.Bounds
	settings  Settings
	logger    *logging.Logger

	population []Individual
	archive    *Archive
	best       Individual
	bestIdx    int

	params   *AdaptiveParams
	boundary *BoundaryProcessor
	cache    *SolutionCache

	master  *randStream
	streams []*randStream

	generation  int
	stagnant    int
	history     []float64
	evaluations atomic.Uint64
	stopped     atomic.Bool

	// mu guards the state observable while a run is in flight: best
	// individual, history, and the adaptive parameters.
	mu sync.RWMutex
}

// New validates the configuration and builds an engine. Configuration errors
// (nil objective, invalid bounds) are fatal; the engine refuses to run rather
// than guess.
func New(objective optimization.ObjectiveFunction, bounds *optimization.Bounds, settings Settings, logger *logging.Logger) (*Optimizer, error) {
	if objective == nil {
		return nil, optimization.NewError("objective function is required").
			WithComponent("de").WithOperation("new")
	}
	if bounds == nil {
		return nil, optimization.NewError("bounds are required").
			WithComponent("de").WithOperation("new")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	settings.applyDefaults(bounds.Dim())

	seed := settings.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	master := newRandStream(uint64(seed), 0x9e3779b97f4a7c15)

	workers := settings.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	streams := make([]*randStream, workers)
	for i := range streams {
		streams[i] = newRandStream(master.rng.Uint64(), master.rng.Uint64())
	}

	o := &Optimizer{
		objective: optimization.SafeObjective(objective, settings.PenaltyFitness),
		bounds:    bounds,
		settings:  settings,
		logger:    logger.WithField("component", "de"),
		params:    NewAdaptiveParams(settings.MemorySize),
		boundary:  NewBoundaryProcessor(bounds, settings.Boundary),
		master:    master,
		streams:   streams,
		history:   make([]float64, 0, settings.MaxIterations),
	}
	if settings.UseArchive {
		o.archive = NewArchive(settings.ArchiveSize)
	}
	if settings.EnableCaching {
		o.cache = NewSolutionCache(settings.CacheSize, settings.CacheTolerance)
	}
	return o, nil
}

// Optimize runs the generational loop until convergence, stagnation,
// diversity collapse, a Stop call, or budget exhaustion. Cancelling the
// context aborts between generations and returns the context error.
func (o *Optimizer) Optimize(ctx context.Context) (*optimization.Result, error) {
	start := time.Now()
	o.initializePopulation()

	for gen := 1; gen <= o.settings.MaxIterations; gen++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if o.stopped.Load() {
			break
		}

		o.generation = gen
		o.evolveGeneration()
		o.adaptPopulationSize()

		o.mu.Lock()
		o.history = append(o.history, o.best.Fitness)
		o.mu.Unlock()

		o.logProgress()

		if o.converged() {
			o.logger.Debug("run converged", map[string]interface{}{
				"generation":   gen,
				"best_fitness": o.best.Fitness,
			})
			break
		}
	}

	return o.buildResult(start), nil
}

// Best returns a copy of the best solution found so far.
func (o *Optimizer) Best() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.best.Solution == nil {
		return nil
	}
	return &optimization.Solution{
		Parameters: append([]float64(nil), o.best.Solution...),
		Fitness:    o.best.Fitness,
	}
}

// History returns a copy of the per-generation best-fitness history.
func (o *Optimizer) History() []float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]float64(nil), o.history...)
}

// Generation returns the number of completed generations.
func (o *Optimizer) Generation() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.history)
}

// ParameterMeans returns the current adaptive (meanF, meanCR) pair.
func (o *Optimizer) ParameterMeans() (float64, float64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.params.Means()
}

// StrategyRates returns the current per-strategy success rates.
func (o *Optimizer) StrategyRates() []float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.params.StrategyRates()
}

// Stop requests a graceful stop at the next generation boundary.
func (o *Optimizer) Stop() {
	o.stopped.Store(true)
}

func (o *Optimizer) initializePopulation() {
	n := o.settings.PopulationSize
	dim := o.bounds.Dim()

	o.population = make([]Individual, n)
	o.forEachShard(n, func(worker, lo, hi int) {
		rng := o.streams[worker].rng
		for i := lo; i < hi; i++ {
			solution := make([]float64, dim)
			for j := range solution {
				solution[j] = o.bounds.Lower(j) + rng.Float64()*(o.bounds.Upper(j)-o.bounds.Lower(j))
			}
			o.population[i] = Individual{Solution: solution, Fitness: math.Inf(1)}
		}
	})
	o.evaluateAll(o.population)

	o.bestIdx = 0
	for i := range o.population {
		if o.population[i].Fitness < o.population[o.bestIdx].Fitness {
			o.bestIdx = i
		}
	}
	o.mu.Lock()
	o.best = o.population[o.bestIdx].Clone()
	o.mu.Unlock()

	o.logger.Debug("population initialized", map[string]interface{}{
		"population":   n,
		"dimension":    dim,
		"best_fitness": o.best.Fitness,
	})
}

func (o *Optimizer) evolveGeneration() {
	n := len(o.population)

	type trialParams struct {
		F, CR    float64
		strategy MutationStrategy
	}
	params := make([]trialParams, n)
	for i := range params {
		F, CR := o.params.GenerateParams(o.master.src)
		params[i] = trialParams{F: F, CR: CR, strategy: o.params.SelectStrategy(o.master.rng)}
	}

	// Phase 1: trial construction. Mutation reads the current population and
	// the current best, neither of which is modified before the barrier.
	trials := make([]Individual, n)
	o.forEachShard(n, func(worker, lo, hi int) {
		rng := o.streams[worker].rng
		for i := lo; i < hi; i++ {
			mutant := o.mutate(i, params[i].strategy, params[i].F, rng)
			o.boundary.Process(mutant, rng)
			trial := o.crossover(o.population[i].Solution, mutant, params[i].CR, rng)
			o.boundary.Process(trial, rng)
			trials[i] = Individual{Solution: trial, Fitness: math.Inf(1)}
		}
	})

	// Phase 2: evaluation.
	o.evaluateAll(trials)

	// Selection runs single-threaded; it is the only place population state
	// and adaptive parameters are mutated.
	o.mu.Lock()
	defer o.mu.Unlock()

	improved := false
	for i := range trials {
		success := trials[i].Fitness < o.population[i].Fitness
		if success {
			o.params.AddSuccess(params[i].F, params[i].CR, params[i].strategy)
			if o.archive != nil {
				o.archive.Push(o.population[i].Clone())
			}
			o.population[i] = trials[i]
			if trials[i].Fitness < o.best.Fitness {
				o.bestIdx = i
				o.best = trials[i].Clone()
				improved = true
			}
		} else {
			o.population[i].Age++
		}
		o.params.UpdateStrategyPerformance(params[i].strategy, success)
	}

	if improved {
		o.stagnant = 0
	} else {
		o.stagnant++
	}
	o.params.UpdateMeans()
}

// mutate builds a mutant for the target slot. Strategies whose formula needs
// more distinct donors than the population can provide degrade to RandOne,
// and donor selection wraps rather than indexing out of range.
func (o *Optimizer) mutate(target int, strategy MutationStrategy, F float64, rng *rand.Rand) []float64 {
	if len(o.population)-1 < strategy.donors() {
		strategy = RandOne
	}
	donors := o.pickDonors(target, strategy.donors(), rng)

	dim := o.bounds.Dim()
	mutant := make([]float64, dim)
	diff := make([]float64, dim)

	switch strategy {
	case BestOne:
		floats.SubTo(diff, o.population[donors[0]].Solution, o.population[donors[1]].Solution)
		floats.AddScaledTo(mutant, o.best.Solution, F, diff)

	case CurrentToBestOne:
		floats.SubTo(diff, o.best.Solution, o.population[target].Solution)
		floats.AddScaledTo(mutant, o.population[target].Solution, F, diff)
		floats.SubTo(diff, o.population[donors[0]].Solution, o.population[donors[1]].Solution)
		floats.AddScaled(mutant, F, diff)

	case RandTwo:
		floats.SubTo(diff, o.population[donors[1]].Solution, o.population[donors[2]].Solution)
		floats.AddScaledTo(mutant, o.population[donors[0]].Solution, F, diff)
		floats.SubTo(diff, o.population[donors[3]].Solution, o.population[donors[4]].Solution)
		floats.AddScaled(mutant, F, diff)

	default: // RandOne and any strategy without a dedicated formula
		floats.SubTo(diff, o.population[donors[1]].Solution, o.population[donors[2]].Solution)
		floats.AddScaledTo(mutant, o.population[donors[0]].Solution, F, diff)
	}

	return mutant
}

// pickDonors returns n population indices distinct from the target, drawn
// without replacement while candidates last and wrapping after that.
func (o *Optimizer) pickDonors(target, n int, rng *rand.Rand) []int {
	candidates := make([]int, 0, len(o.population)-1)
	for i := range o.population {
		if i != target {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, target)
	}
	rng.Shuffle(len(candidates), func(a, b int) {
		candidates[a], candidates[b] = candidates[b], candidates[a]
	})

	donors := make([]int, n)
	for i := range donors {
		donors[i] = candidates[i%len(candidates)]
	}
	return donors
}

// crossover performs binomial crossover of mutant into target. One forced
// dimension always comes from the mutant, so a trial is never identical to
// its parent.
func (o *Optimizer) crossover(target, mutant []float64, CR float64, rng *rand.Rand) []float64 {
	trial := append([]float64(nil), target...)
	forced := rng.IntN(len(trial))
	for j := range trial {
		if rng.Float64() < CR || j == forced {
			trial[j] = mutant[j]
		}
	}
	return trial
}

// evaluateAll fills in the fitness of every individual still marked +Inf,
// through the cache when enabled.
func (o *Optimizer) evaluateAll(individuals []Individual) {
	workers := len(o.streams)
	if !o.settings.ParallelEvaluation {
		workers = 1
	}

	if workers <= 1 {
		for i := range individuals {
			if math.IsInf(individuals[i].Fitness, 1) {
				individuals[i].Fitness = o.evaluate(individuals[i].Solution)
			}
		}
		return
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i := range individuals {
		i := i
		p.Go(func() {
			if math.IsInf(individuals[i].Fitness, 1) {
				individuals[i].Fitness = o.evaluate(individuals[i].Solution)
			}
		})
	}
	p.Wait()
}

func (o *Optimizer) evaluate(x []float64) float64 {
	if o.cache != nil {
		if fitness, ok := o.cache.Lookup(x); ok {
			return fitness
		}
	}
	fitness := o.objective(x)
	o.evaluations.Add(1)
	if o.cache != nil {
		o.cache.Store(x, fitness)
	}
	return fitness
}

// adaptPopulationSize shrinks the population linearly toward
// max(10, dimension) as the generation budget is spent, keeping the
// best-scoring individuals. The population never grows back.
func (o *Optimizer) adaptPopulationSize() {
	if !o.settings.AdaptivePopulation {
		return
	}

	minSize := max(10, o.bounds.Dim())
	maxSize := o.settings.PopulationSize
	progress := float64(o.generation) / float64(o.settings.MaxIterations)
	target := max(int(float64(maxSize)-progress*float64(maxSize-minSize)), minSize)
	if target >= len(o.population) {
		return
	}

	sort.SliceStable(o.population, func(a, b int) bool {
		return o.population[a].Fitness < o.population[b].Fitness
	})
	o.population = o.population[:target]
	o.bestIdx = 0
}

func (o *Optimizer) converged() bool {
	if math.Abs(o.best.Fitness) < o.settings.Tolerance {
		return true
	}
	if o.stagnant >= o.settings.MaxStagnantGenerations {
		return true
	}
	if o.generation > diversityWarmup && meanPairwiseDistance(o.population) < diversityFloor {
		return true
	}
	return false
}

func (o *Optimizer) logProgress() {
	if !o.settings.Verbose || o.generation%50 != 0 {
		return
	}
	meanF, meanCR := o.params.Means()
	fields := map[string]interface{}{
		"generation":   o.generation,
		"best_fitness": o.best.Fitness,
		"mean_f":       meanF,
		"mean_cr":      meanCR,
		"population":   len(o.population),
		"stagnant":     o.stagnant,
	}
	if o.cache != nil {
		fields["cache_hit_rate"] = o.cache.HitRate()
	}
	o.logger.Info("generation progress", fields)
}

func (o *Optimizer) buildResult(start time.Time) *optimization.Result {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var hits, misses int64
	if o.cache != nil {
		hits, misses = o.cache.Stats()
	}

	return &optimization.Result{
		BestSolution: &optimization.Solution{
			Parameters: append([]float64(nil), o.best.Solution...),
			Fitness:    o.best.Fitness,
		},
		Generations:        o.generation,
		Duration:           time.Since(start),
		Converged:          math.Abs(o.best.Fitness) < o.settings.Tolerance,
		ConvergenceHistory: append([]float64(nil), o.history...),
		Stats: optimization.EvalStats{
			Evaluations: o.evaluations.Load(),
			CacheHits:   hits,
			CacheMisses: misses,
		},
	}
}

// forEachShard splits [0, n) into one contiguous shard per worker stream and
// runs fn for each shard, in parallel when more than one worker is
// configured. Each shard owns its random stream for the duration of a phase.
func (o *Optimizer) forEachShard(n int, fn func(worker, lo, hi int)) {
	workers := len(o.streams)
	if workers <= 1 || n < workers {
		fn(0, 0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	p := pool.New().WithMaxGoroutines(workers)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		w, lo, hi := w, lo, hi
		p.Go(func() { fn(w, lo, hi) })
	}
	p.Wait()
}
