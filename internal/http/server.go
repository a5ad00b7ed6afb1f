package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cartridge/ars/internal/metrics"
	"github.com/cartridge/ars/internal/middleware"
	"github.com/cartridge/ars/internal/nn"
	"github.com/cartridge/ars/internal/policy"
	"github.com/cartridge/ars/internal/service"
	"github.com/cartridge/ars/internal/space"
	"github.com/cartridge/ars/internal/storage"
)

const (
	maxCreateBody  = 64 * 1024
	maxPayloadBody = 16 * 1024 * 1024
)

// Server wires HTTP handlers to the policy service.
type Server struct {
	policies  *service.PolicyService
	collector *metrics.Collector
	gatherer  prometheus.Gatherer
	logger    *zerolog.Logger
}

// NewServer constructs a Server instance. gatherer backs /metrics and
// may be nil to leave the endpoint out.
func NewServer(policies *service.PolicyService, collector *metrics.Collector, gatherer prometheus.Gatherer, logger *zerolog.Logger) *Server {
	return &Server{policies: policies, collector: collector, gatherer: gatherer, logger: logger}
}

// Routes builds the HTTP router for the policy service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(*s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.collector != nil {
		r.Use(middleware.Metrics(s.collector))
	}

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/activations", s.handleListActivations)
		r.Post("/policies", s.handleCreatePolicy)
		r.Get("/policies", s.handleListPolicies)
		r.Get("/policies/{policyID}", s.handleGetPolicy)
		r.Delete("/policies/{policyID}", s.handleDeletePolicy)
		r.Post("/policies/{policyID}/predict", s.handlePredict)
		r.Get("/policies/{policyID}/weights", s.handleGetWeights)
		r.Put("/policies/{policyID}/weights", s.handleUpdateWeights)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListActivations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"activations": nn.ListActivations()})
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r, s) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
	defer r.Body.Close()
	var payload service.CreatePolicyInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	created, err := s.policies.Create(r.Context(), payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	list, err := s.policies.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"policies": list})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	info, err := s.policies.Get(r.Context(), policyID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	if err := s.policies.Delete(r.Context(), policyID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r, s) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBody)
	defer r.Body.Close()
	var payload service.PredictInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid predict payload")
		return
	}
	policyID := chi.URLParam(r, "policyID")
	result, err := s.policies.Predict(r.Context(), policyID, payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type weightsPayload struct {
	Weights []float64 `json:"weights"`
	Version uint64    `json:"version,omitempty"`
}

func (s *Server) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	weights, version, err := s.policies.Weights(r.Context(), policyID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, weightsPayload{Weights: weights, Version: version})
}

func (s *Server) handleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r, s) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBody)
	defer r.Body.Close()
	var payload weightsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid weights payload")
		return
	}
	policyID := chi.URLParam(r, "policyID")
	info, err := s.policies.UpdateWeights(r.Context(), policyID, payload.Weights)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func requireJSON(w http.ResponseWriter, r *http.Request, s *Server) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		s.writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return false
	}
	return true
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, policy.ErrUnsupportedActionSpace),
		errors.Is(err, policy.ErrInvalidObservation),
		errors.Is(err, policy.ErrParameterCount),
		errors.Is(err, policy.ErrUnknownShape),
		errors.Is(err, nn.ErrUnsupportedObservationSpace),
		errors.Is(err, nn.ErrActivationNotFound),
		errors.Is(err, nn.ErrInvalidArchitecture),
		errors.Is(err, space.ErrUnknownSpace),
		errors.Is(err, space.ErrInvalidSpace):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
