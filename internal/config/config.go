package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		Workers            int     `env:"OPT_WORKERS" envDefault:"0"`
		MaxGenerations     int     `env:"OPT_MAX_GENERATIONS" envDefault:"1000"`
		PopulationSize     int     `env:"OPT_POPULATION_SIZE" envDefault:"0"`
		Tolerance          float64 `env:"OPT_TOLERANCE" envDefault:"1e-6"`
		StagnationLimit    int     `env:"OPT_STAGNATION_LIMIT" envDefault:"50"`
		BoundaryPolicy     string  `env:"OPT_BOUNDARY_POLICY" envDefault:"reflect"`
		CacheSize          int     `env:"OPT_CACHE_SIZE" envDefault:"10000"`
		CacheTolerance     float64 `env:"OPT_CACHE_TOLERANCE" envDefault:"1e-10"`
		ArchiveSize        int     `env:"OPT_ARCHIVE_SIZE" envDefault:"100"`
		ParallelEvaluation bool    `env:"OPT_PARALLEL_EVALUATION" envDefault:"true"`
		Verbose            bool    `env:"OPT_VERBOSE" envDefault:"false"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Default to debug logging in development
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}
