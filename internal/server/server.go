package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/STRUT/internal/config"
	interrors "github.com/copyleftdev/STRUT/internal/errors"
	"github.com/copyleftdev/STRUT/internal/logging"
	"github.com/copyleftdev/STRUT/internal/optimization"
	"github.com/copyleftdev/STRUT/internal/optimization/evolution"
	"github.com/copyleftdev/STRUT/internal/optimization/frame"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// OptimizationState represents the state of a frame optimization job.
// It tracks the progress, status, and result of one evolution run.
// The state is thread-safe and can be accessed concurrently.
type OptimizationState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Progress    float64
	Result      *optimization.OptimizationResult
	Optimizer   optimization.Optimizer
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server implements the HTTP and JSON-RPC surface of the frame
// optimization service. It manages evolution jobs and provides
// endpoints to start, monitor, and cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *Metrics

	// Optimization state management
	optimizations   map[string]*OptimizationState
	optimizationsMu sync.RWMutex // Protects the optimizations map and states
}

// NewServer creates a new server instance with the given config and logger.
// The metrics parameter may be nil when no instrumentation is wanted.
func NewServer(cfg *config.Config, logger Logger, metrics *Metrics) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		optimizations: make(map[string]*OptimizationState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startRequest carries the caller-tunable parts of an optimization run.
// Everything left zero falls back to the service configuration; the
// objective is always the frame fitness evaluator.
type startRequest struct {
	Bounds         [][]float64 `json:"bounds,omitempty"`
	PopulationSize int         `json:"population_size,omitempty"`
	Generations    int         `json:"generations,omitempty"`
	Seed           *int64      `json:"seed,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var req startRequest
		if len(request.Params) > 0 {
			if err := json.Unmarshal(request.Params, &req); err != nil {
				s.respondWithError(w, -32602, "Invalid params", request.ID)
				return
			}
		}
		result, err = s.startOptimization(req)
	case "optimization.status":
		var req struct {
			OptimizationID string `json:"optimization_id"`
		}
		if err := json.Unmarshal(request.Params, &req); err != nil {
			s.respondWithError(w, -32602, "Invalid params", request.ID)
			return
		}
		result, err = s.optimizationStatus(req.OptimizationID)
	case "optimization.cancel":
		var req struct {
			OptimizationID string `json:"optimization_id"`
		}
		if err := json.Unmarshal(request.Params, &req); err != nil {
			s.respondWithError(w, -32602, "Invalid params", request.ID)
			return
		}
		err = s.cancelOptimization(req.OptimizationID)
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

// buildConfig merges a start request with the service defaults into an
// engine configuration.
func (s *Server) buildConfig(req startRequest) (optimization.OptimizerConfig, error) {
	cfg := optimization.OptimizerConfig{
		Objective:      frame.Evaluate,
		Bounds:         frame.Bounds(),
		PopulationSize: s.cfg.Optimization.PopulationSize,
		Generations:    s.cfg.Optimization.Generations,
		RandomSeed:     s.cfg.Optimization.Seed,
		MaxGoroutines:  s.cfg.Optimization.WorkerCount,
	}

	if len(req.Bounds) > 0 {
		bounds := make([][2]float64, len(req.Bounds))
		for i, b := range req.Bounds {
			if len(b) != 2 {
				return cfg, fmt.Errorf("invalid bounds format, expected [[min1, max1], [min2, max2], ...]")
			}
			bounds[i] = [2]float64{b[0], b[1]}
		}
		if len(bounds) != 2 {
			return cfg, fmt.Errorf("frame designs have exactly 2 genes (length, angle), got %d bounds", len(bounds))
		}
		cfg.Bounds = bounds
	}
	if req.PopulationSize > 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.Generations > 0 {
		cfg.Generations = req.Generations
	}
	if req.Seed != nil {
		cfg.RandomSeed = *req.Seed
	}

	return cfg, nil
}

// startOptimization starts a new evolution run in the background and
// returns its id. Configuration errors surface synchronously, before
// the job is registered.
func (s *Server) startOptimization(req startRequest) (interface{}, error) {
	cfg, err := s.buildConfig(req)
	if err != nil {
		return nil, err
	}

	optimizer, err := evolution.NewDifferentialEvolution(cfg)
	if err != nil {
		return nil, interrors.Wrap(err, "failed to create optimizer")
	}

	id := fmt.Sprintf("opt_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	// The engine logs through a zap facade over the service logger,
	// tagged with the run id.
	optimizer.SetLogger(logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{
		"optimization_id": id,
	})))

	state := &OptimizationState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		Optimizer:   optimizer,
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	// Progress and metrics are driven off the engine's per-generation
	// signal.
	generations := cfg.Generations
	cfg.OnGeneration = func(rec optimization.GenerationRecord) {
		s.optimizationsMu.Lock()
		state.Progress = float64(rec.Generation) / float64(generations)
		state.LastUpdated = time.Now()
		s.optimizationsMu.Unlock()

		if s.metrics != nil {
			s.metrics.Generations.Inc()
			s.metrics.BestFitness.Set(rec.BestFitness)
		}
	}

	s.optimizationsMu.Lock()
	s.optimizations[id] = state
	s.optimizationsMu.Unlock()

	if s.metrics != nil {
		s.metrics.RunsStarted.Inc()
	}

	go s.runOptimization(id, cfg, ctx, state)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          "pending",
	}, nil
}

// optimizationStatus reports the current status and results of a job.
func (s *Server) optimizationStatus(id string) (interface{}, error) {
	if id == "" {
		return nil, fmt.Errorf("optimization_id is required")
	}

	s.optimizationsMu.RLock()
	defer s.optimizationsMu.RUnlock()

	state, exists := s.optimizations[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"progress":    state.Progress,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}

	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}

	if state.Result != nil {
		response["best_design"] = designPayload(state.Result.BestSolution)
		response["generations"] = recordsPayload(state.Result.Records)
	} else if state.Optimizer != nil {
		// Run still in flight: expose whatever has been recorded so far.
		if records := state.Optimizer.GetRecords(); len(records) > 0 {
			response["generations"] = recordsPayload(records)
		}
	}

	return response, nil
}

// designPayload renders a solution for external reporting collaborators:
// named genes and the positive (higher-is-better) fitness.
func designPayload(sol *optimization.Solution) map[string]interface{} {
	return map[string]interface{}{
		"length_cm": sol.Parameters[0],
		"angle_deg": sol.Parameters[1],
		"fitness":   sol.Fitness(),
	}
}

// recordsPayload renders the generation records as the convergence
// series the plotting collaborators chart.
func recordsPayload(records []optimization.GenerationRecord) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		out[i] = map[string]interface{}{
			"generation":      rec.Generation,
			"best_fitness":    rec.BestFitness,
			"average_fitness": rec.AverageFitness,
			"best_length_cm":  rec.BestParameters[0],
			"best_angle_deg":  rec.BestParameters[1],
		}
	}
	return out
}

// cancelOptimization cancels a running job.
func (s *Server) cancelOptimization(id string) error {
	if id == "" {
		return fmt.Errorf("optimization_id is required")
	}

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	state, exists := s.optimizations[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		// Already in a terminal state
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	if s.metrics != nil {
		s.metrics.RunsCancelled.Inc()
	}

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})

	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
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

// runOptimization executes the evolution run in a goroutine
func (s *Server) runOptimization(id string, cfg optimization.OptimizerConfig, ctx context.Context, state *OptimizationState) {
	s.optimizationsMu.Lock()
	state.Status = "running"
	s.optimizationsMu.Unlock()

	result, err := state.Optimizer.Optimize(ctx, cfg)

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	switch {
	case errors.Is(err, context.Canceled) || state.Status == "cancelled":
		// Cancellation already recorded by cancelOptimization.
		if state.Status != "cancelled" {
			state.Status = "cancelled"
		}
	case err != nil:
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": id,
			"error":           err.Error(),
		})
		state.Status = "failed"
		if s.metrics != nil {
			s.metrics.RunsFailed.Inc()
		}
	default:
		state.Status = "completed"
		state.Result = result
		state.Progress = 1.0
		if s.metrics != nil {
			s.metrics.RunsCompleted.Inc()
		}
		s.logger.Info("Optimization completed", map[string]interface{}{
			"optimization_id": id,
			"length_cm":       result.BestSolution.Parameters[0],
			"angle_deg":       result.BestSolution.Parameters[1],
			"fitness":         result.BestSolution.Fitness(),
		})
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// Close cleans up resources
func (s *Server) Close() error {
	// Cancel all running optimizations
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	for _, opt := range s.optimizations {
		if opt.CancelFunc != nil {
			opt.CancelFunc()
		}
	}
	return nil
}

// handleOptimize handles the HTTP POST /optimize endpoint for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startOptimization(req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles the HTTP GET /status/{id} endpoint for checking optimization status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	result, err := s.optimizationStatus(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles the HTTP DELETE /optimization/{id} endpoint
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	err := s.cancelOptimization(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}
