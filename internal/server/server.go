package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/copyleftdev/TAIGA/internal/config"
	"github.com/copyleftdev/TAIGA/internal/logging"
	"github.com/copyleftdev/TAIGA/internal/optimization"
	"github.com/copyleftdev/TAIGA/internal/optimization/de"
	"github.com/copyleftdev/TAIGA/internal/optimization/objectives"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taiga_optimizations_started_total",
		Help: "Number of optimization jobs started.",
	})
	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taiga_optimizations_completed_total",
		Help: "Number of optimization jobs completed successfully.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taiga_optimizations_failed_total",
		Help: "Number of optimization jobs that failed or were cancelled.",
	})
	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taiga_optimizations_running",
		Help: "Number of optimization jobs currently running.",
	})
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taiga_optimization_duration_seconds",
		Help:    "Wall-clock duration of completed optimization jobs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)

// Logger defines the logging interface used by the server.
// This allows us to be flexible with our logging implementation.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// OptimizationState tracks the progress, status and result of one
// optimization job. Access is serialized through the server's mutex.
type OptimizationState struct {
	ID             string
	Status         string // "pending", "running", "completed", "failed", "cancelled"
	Objective      string
	MaxGenerations int
	StartTime      time.Time
	EndTime        *time.Time
	Result         *optimization.Result
	Optimizer      *de.Optimizer
	CancelFunc     context.CancelFunc
	LastUpdated    time.Time
}

// Server implements the HTTP and JSON-RPC surface of the optimization
// service. It manages jobs and provides endpoints to start, monitor, and
// cancel them.
type Server struct {
	cfg    *config.Config
	logger Logger

	jobs   map[string]*OptimizationState
	jobsMu sync.RWMutex
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*OptimizationState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/objectives", s.handleObjectives)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// optimizeRequest is the body of POST /api/v1/optimize and the parameter
// object of optimization.start.
type optimizeRequest struct {
	Objective          string      `json:"objective"`
	Bounds             [][]float64 `json:"bounds"`
	MaxGenerations     int         `json:"max_generations,omitempty"`
	PopulationSize     int         `json:"population_size,omitempty"`
	Tolerance          float64     `json:"tolerance,omitempty"`
	Seed               int64       `json:"seed,omitempty"`
	BoundaryPolicy     string      `json:"boundary_policy,omitempty"`
	DisableCache       bool        `json:"disable_cache,omitempty"`
	DisableParallelism bool        `json:"disable_parallelism,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		result, err = s.startFromParams(request.Params)
	case "optimization.status":
		result, err = s.statusFromParams(request.Params)
	case "optimization.cancel":
		err = s.cancelFromParams(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) startFromParams(params []interface{}) (interface{}, error) {
	req, err := decodeParamObject[optimizeRequest](params)
	if err != nil {
		return nil, err
	}
	return s.startOptimization(req)
}

func (s *Server) statusFromParams(params []interface{}) (interface{}, error) {
	p, err := decodeParamObject[struct {
		OptimizationID string `json:"optimization_id"`
	}](params)
	if err != nil {
		return nil, err
	}
	return s.jobStatus(p.OptimizationID)
}

func (s *Server) cancelFromParams(params []interface{}) error {
	p, err := decodeParamObject[struct {
		OptimizationID string `json:"optimization_id"`
	}](params)
	if err != nil {
		return err
	}
	return s.cancelJob(p.OptimizationID)
}

// decodeParamObject re-marshals the first positional JSON-RPC parameter into
// a typed request struct.
func decodeParamObject[T any](params []interface{}) (*T, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("invalid parameter format: %v", err)
	}
	return out, nil
}

// startOptimization validates the request, builds a DE engine from the
// configured defaults plus the request overrides, and launches the run.
func (s *Server) startOptimization(req *optimizeRequest) (map[string]interface{}, error) {
	name := strings.ToLower(strings.TrimSpace(req.Objective))
	objective, ok := objectives.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown objective %q, available: %s",
			req.Objective, strings.Join(objectives.Names(), ", "))
	}

	if len(req.Bounds) == 0 {
		return nil, fmt.Errorf("bounds are required")
	}
	pairs := make([][2]float64, len(req.Bounds))
	for i, b := range req.Bounds {
		if len(b) != 2 {
			return nil, fmt.Errorf("invalid bounds format, expected [[min1, max1], [min2, max2], ...]")
		}
		pairs[i] = [2]float64{b[0], b[1]}
	}
	bounds, err := optimization.NewBoundsFromPairs(pairs)
	if err != nil {
		return nil, err
	}

	settings, err := s.engineSettings(req)
	if err != nil {
		return nil, err
	}

	optimizer, err := de.New(objective, bounds, settings, s.logger.WithFields(map[string]interface{}{
		"objective": name,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create optimizer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &OptimizationState{
		ID:             uuid.NewString(),
		Status:         "pending",
		Objective:      name,
		MaxGenerations: settings.MaxIterations,
		StartTime:      time.Now(),
		Optimizer:      optimizer,
		CancelFunc:     cancel,
		LastUpdated:    time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[state.ID] = state
	s.jobsMu.Unlock()

	go s.runOptimization(ctx, state)

	return map[string]interface{}{
		"optimization_id": state.ID,
		"status":          "pending",
	}, nil
}

// engineSettings merges the server defaults with per-request overrides.
func (s *Server) engineSettings(req *optimizeRequest) (de.Settings, error) {
	opt := s.cfg.Optimization

	policy, err := de.ParseBoundaryPolicy(req.BoundaryPolicy)
	if err != nil {
		return de.Settings{}, err
	}
	if req.BoundaryPolicy == "" {
		if policy, err = de.ParseBoundaryPolicy(opt.BoundaryPolicy); err != nil {
			return de.Settings{}, err
		}
	}

	settings := de.DefaultSettings()
	settings.NumWorkers = opt.Workers
	settings.MaxIterations = opt.MaxGenerations
	settings.PopulationSize = opt.PopulationSize
	settings.Tolerance = opt.Tolerance
	settings.MaxStagnantGenerations = opt.StagnationLimit
	settings.CacheSize = opt.CacheSize
	settings.CacheTolerance = opt.CacheTolerance
	settings.ArchiveSize = opt.ArchiveSize
	settings.ParallelEvaluation = opt.ParallelEvaluation
	settings.Verbose = opt.Verbose
	settings.Boundary = policy

	if req.MaxGenerations > 0 {
		settings.MaxIterations = req.MaxGenerations
	}
	if req.PopulationSize > 0 {
		settings.PopulationSize = req.PopulationSize
	}
	if req.Tolerance > 0 {
		settings.Tolerance = req.Tolerance
	}
	settings.RandomSeed = req.Seed
	if req.DisableCache {
		settings.EnableCaching = false
	}
	if req.DisableParallelism {
		settings.ParallelEvaluation = false
	}
	return settings, nil
}

// runOptimization executes one job and records its terminal state.
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState) {
	s.setStatus(state, "running")
	jobsStarted.Inc()
	jobsRunning.Inc()
	defer jobsRunning.Dec()

	result, err := state.Optimizer.Optimize(ctx)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	switch {
	case err != nil && state.Status == "cancelled":
		// Cancellation already recorded; the run was aborted mid-flight.
		jobsFailed.Inc()
	case err != nil:
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": state.ID,
			"error":           err.Error(),
		})
		state.Status = "failed"
		jobsFailed.Inc()
	default:
		state.Status = "completed"
		state.Result = result
		jobsCompleted.Inc()
		jobDuration.Observe(result.Duration.Seconds())

		s.logger.Info("Optimization completed", map[string]interface{}{
			"optimization_id": state.ID,
			"objective":       state.Objective,
			"best_fitness":    result.BestSolution.Fitness,
			"generations":     result.Generations,
			"converged":       result.Converged,
			"evaluations":     result.Stats.Evaluations,
			"cache_hit_rate":  result.Stats.HitRate(),
		})
	}
}

func (s *Server) setStatus(state *OptimizationState, status string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if state.Status == "cancelled" {
		return
	}
	state.Status = status
	state.LastUpdated = time.Now()
}

// jobStatus builds the status document for one job.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	if id == "" {
		return nil, fmt.Errorf("optimization_id is required")
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	progress := 0.0
	if state.MaxGenerations > 0 {
		progress = min(float64(state.Optimizer.Generation())/float64(state.MaxGenerations), 1.0)
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"objective":   state.Objective,
		"progress":    progress,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}

	if best := state.Optimizer.Best(); best != nil {
		response["current_best"] = map[string]interface{}{
			"parameters": best.Parameters,
			"fitness":    best.Fitness,
		}
	}

	if state.Result != nil {
		response["result"] = map[string]interface{}{
			"best_solution":       state.Result.BestSolution.Parameters,
			"best_fitness":        state.Result.BestSolution.Fitness,
			"generations":         state.Result.Generations,
			"duration_seconds":    state.Result.Duration.Seconds(),
			"converged":           state.Result.Converged,
			"evaluations":         state.Result.Stats.Evaluations,
			"cache_hits":          state.Result.Stats.CacheHits,
			"cache_misses":        state.Result.Stats.CacheMisses,
			"convergence_history": state.Result.ConvergenceHistory,
		}
	}

	return response, nil
}

// cancelJob cancels a pending or running job.
func (s *Server) cancelJob(id string) error {
	if id == "" {
		return fmt.Errorf("optimization_id is required")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})

	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Close cancels all running optimizations.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}

// handleObjectives handles GET /api/v1/objectives.
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"objectives": objectives.Names(),
	})
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startOptimization(&req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobStatus(chi.URLParam(r, "id"))

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.cancelJob(chi.URLParam(r, "id"))

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancellation requested"})
}
