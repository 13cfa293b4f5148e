package de

// Settings configures the adaptive DE engine. Zero values select the
// documented defaults, so Settings{} behaves like DefaultSettings().
type Settings struct {
	// PopulationSize is the initial population size. 0 selects
	// max(30, 4*dimension), capped at 200.
	PopulationSize int

	// MaxIterations is the generation budget (default 1000).
	MaxIterations int

	// Tolerance is the absolute best-fitness level treated as converged
	// (default 1e-6).
	Tolerance float64

	// MaxStagnantGenerations stops the run after this many generations
	// without a global-best improvement (default 50).
	MaxStagnantGenerations int

	// AdaptivePopulation enables LSHADE-style linear population reduction
	// toward max(10, dimension).
	AdaptivePopulation bool

	// UseArchive keeps displaced individuals in a bounded archive.
	UseArchive bool

	// ArchiveSize is the archive capacity (default 100).
	ArchiveSize int

	// Boundary is the out-of-box repair policy (default Reflect).
	Boundary BoundaryPolicy

	// RandomSeed makes runs reproducible when non-zero; 0 seeds from the
	// wall clock.
	RandomSeed int64

	// ParallelEvaluation allows concurrent objective calls. Disable it for
	// non-reentrant objectives; selection semantics are identical either way.
	ParallelEvaluation bool

	// NumWorkers is the worker count for the parallel phases. 0 uses all
	// available CPUs.
	NumWorkers int

	// EnableCaching memoizes fitness values for near-identical solutions.
	EnableCaching bool

	// CacheSize and CacheTolerance configure the solution cache
	// (defaults 10000 and 1e-10).
	CacheSize      int
	CacheTolerance float64

	// MemorySize is the success-window capacity of the parameter manager
	// (default 100).
	MemorySize int

	// PenaltyFitness replaces failed or non-finite objective evaluations.
	// 0 selects optimization.DefaultPenalty.
	PenaltyFitness float64

	// Verbose enables periodic generation progress logging.
	Verbose bool
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:          1000,
		Tolerance:              1e-6,
		MaxStagnantGenerations: 50,
		AdaptivePopulation:     true,
		UseArchive:             true,
		ArchiveSize:            100,
		Boundary:               Reflect,
		ParallelEvaluation:     true,
		EnableCaching:          true,
		CacheSize:              defaultCacheSize,
		CacheTolerance:         defaultCacheTolerance,
		MemorySize:             defaultMemorySize,
	}
}

const maxAutoPopulation = 200

func (s *Settings) applyDefaults(dimension int) {
	if s.PopulationSize <= 0 {
		s.PopulationSize = min(max(30, 4*dimension), maxAutoPopulation)
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = 1000
	}
	if s.Tolerance <= 0 {
		s.Tolerance = 1e-6
	}
	if s.MaxStagnantGenerations <= 0 {
		s.MaxStagnantGenerations = 50
	}
	if s.ArchiveSize <= 0 {
		s.ArchiveSize = 100
	}
	if s.CacheSize <= 0 {
		s.CacheSize = defaultCacheSize
	}
	if s.CacheTolerance <= 0 {
		s.CacheTolerance = defaultCacheTolerance
	}
	if s.MemorySize <= 0 {
		s.MemorySize = defaultMemorySize
	}
}
