package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/engine"
	"github.com/coveridge/tiercache/monitoring"
	"github.com/coveridge/tiercache/strategy"
	"github.com/coveridge/tiercache/tier"
	"github.com/coveridge/tiercache/utils/array"
)

// AdminServer exposes the cache engine's management surface over HTTP:
// metrics and reports, invalidation and warming triggers, and dynamic
// strategy registration.
type AdminServer struct {
	engine   *engine.Engine
	registry *strategy.Registry
	drivers  strategy.Drivers
	monitor  *monitoring.CacheMonitor
	logger   *zap.SugaredLogger

	httpServer *http.Server
}

func NewAdminServer(e *engine.Engine, registry *strategy.Registry, drivers strategy.Drivers, monitor *monitoring.CacheMonitor, logger *zap.SugaredLogger) *AdminServer {
	return &AdminServer{
		engine:   e,
		registry: registry,
		drivers:  drivers,
		monitor:  monitor,
		logger:   logger,
	}
}

// Router builds the admin route table.
func (s *AdminServer) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	router.HandleFunc("/v1/cache/metrics", s.handleMetrics).Methods("GET")
	router.HandleFunc("/v1/cache/hit-rates", s.handleHitRates).Methods("GET")
	router.HandleFunc("/v1/cache/recommendations", s.handleRecommendations).Methods("GET")

	router.HandleFunc("/v1/cache/keys", s.handleTopKeys).Methods("GET")
	router.HandleFunc("/v1/cache/keys/{key}", s.handleKeyInfo).Methods("GET")

	router.HandleFunc("/v1/cache/invalidate", s.handleInvalidate).Methods("POST")
	router.HandleFunc("/v1/cache/warm", s.handleWarm).Methods("POST")

	router.HandleFunc("/v1/cache/strategies", s.handleListStrategies).Methods("GET")
	router.HandleFunc("/v1/cache/strategies/{category}", s.handleRegisterStrategy).Methods("PUT")

	if s.monitor != nil {
		router.Handle("/metrics", s.monitor.Handler()).Methods("GET")
	}

	return cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

// Start serves the admin API until Shutdown is called.
func (s *AdminServer) Start(address string) error {
	s.httpServer = &http.Server{
		Addr:         address,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Infow("Starting cache admin server", "address", address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server failed: %v", err)
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *AdminServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{
		"tiers":        s.engine.Metrics(r.Context()),
		"tracked_keys": s.engine.Tracker().Len(),
	})
}

func (s *AdminServer) handleHitRates(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, s.engine.HitRates(r.Context()))
}

func (s *AdminServer) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recommendations := s.engine.Recommendations(r.Context())
	if recommendations == nil {
		recommendations = []engine.Recommendation{}
	}
	s.writeJson(w, http.StatusOK, map[string]any{"recommendations": recommendations})
}

func (s *AdminServer) handleTopKeys(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	keys := s.engine.Tracker().TopByFrequency(limit)
	if keys == nil {
		keys = []*cachekey.Info{}
	}
	s.writeJson(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *AdminServer) handleKeyInfo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	info, ok := s.engine.Tracker().Lookup(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "key_not_found", "Key is not tracked")
		return
	}
	s.writeJson(w, http.StatusOK, info)
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

func (s *AdminServer) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	if req.Pattern == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "pattern is required")
		return
	}

	removed, err := s.engine.Invalidate(r.Context(), req.Pattern, req.Reason)
	if err != nil {
		if errors.Is(err, tier.ErrInvalidPattern) {
			s.writeError(w, http.StatusBadRequest, "invalid_pattern", err.Error())
			return
		}
		s.logger.Errorw("Invalidation failed", "pattern", req.Pattern, "error", err)
		s.writeError(w, http.StatusInternalServerError, "invalidation_failed", "Failed to invalidate cache entries")
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"pattern": req.Pattern,
		"removed": removed,
	})
}

func (s *AdminServer) handleWarm(w http.ResponseWriter, r *http.Request) {
	warmed := s.engine.WarmCache(r.Context())
	s.writeJson(w, http.StatusOK, map[string]any{"warmed": warmed})
}

func (s *AdminServer) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := make(map[string]any)
	for category, st := range s.registry.Snapshot() {
		strategies[string(category)] = map[string]any{
			"tiers":        array.Map(st.Tiers(), func(t *tier.Tier) tier.Config { return t.Config }),
			"invalidation": st.InvalidationRules(),
			"warming":      st.WarmingSpecs(),
		}
	}
	s.writeJson(w, http.StatusOK, map[string]any{"strategies": strategies})
}

func (s *AdminServer) handleRegisterStrategy(w http.ResponseWriter, r *http.Request) {
	category := cachekey.Category(mux.Vars(r)["category"])

	var cfg strategy.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	built, err := strategy.Build(cfg, s.drivers)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_strategy", err.Error())
		return
	}

	s.engine.RegisterStrategy(category, built)
	s.writeJson(w, http.StatusOK, map[string]any{
		"category": category,
		"tiers":    len(built.Tiers()),
	})
}

func (s *AdminServer) writeJson(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorw("Failed to encode JSON response", "error", err)
	}
}

func (s *AdminServer) writeError(w http.ResponseWriter, status int, errorType, message string) {
	s.writeJson(w, status, map[string]any{
		"error": map[string]any{
			"type":    errorType,
			"message": message,
			"code":    status,
		},
	})
}
