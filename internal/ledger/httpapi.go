package ledger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// MovementService is the part of the ledger the HTTP API exposes.
type MovementService interface {
	AppendMovement(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error)
	ResolveAccountNumber(ctx context.Context, number string) (uuid.UUID, error)
}

// Handler serves the ledger HTTP contract consumed by the transfer service.
type Handler struct {
	service MovementService
	token   string
	logger  *zap.Logger
}

// NewHandler creates a Handler. The token is the static bearer token required
// on every API call; full token validation lives in an external service.
func NewHandler(service MovementService, token string, logger *zap.Logger) *Handler {
	return &Handler{service: service, token: token, logger: logger}
}

// Router builds the mux router for the ledger API.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.authMiddleware)
	api.HandleFunc("/movements", h.CreateMovementHandler).Methods(http.MethodPost)
	api.HandleFunc("/accounts/resolve", h.ResolveAccountHandler).Methods(http.MethodGet)

	return r
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "401").Inc()
			respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateMovementHandler appends a movement. A duplicate (accountId, requestId)
// returns the existing movement with 200 instead of 201, so retried calls are
// indistinguishable from the original success.
func (h *Handler) CreateMovementHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/movements"

	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(http.MethodPost, endpoint))
	defer timer.ObserveDuration()

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, r.Method, endpoint, http.StatusBadRequest, ErrorResponse{Message: "malformed JSON body", FailureType: "VALIDATION"})
		return
	}

	movement, err := h.service.AppendMovement(r.Context(), req.AccountID, req.RequestID, domain.Amount(req.Amount), domain.Direction(req.Direction))

	switch {
	case err == nil:
		h.respond(w, r.Method, endpoint, http.StatusCreated, movementResponse(movement))
	case errors.Is(err, domain.ErrDuplicateRequest):
		h.respond(w, r.Method, endpoint, http.StatusOK, movementResponse(movement))
	case errors.Is(err, domain.ErrInvalidAmount):
		h.respond(w, r.Method, endpoint, http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error(), FailureType: "VALIDATION"})
	case errors.Is(err, domain.ErrValidation):
		h.respond(w, r.Method, endpoint, http.StatusBadRequest, ErrorResponse{Message: err.Error(), FailureType: "VALIDATION"})
	case errors.Is(err, domain.ErrAccountNotFound):
		h.respond(w, r.Method, endpoint, http.StatusNotFound, ErrorResponse{Message: "account not found", FailureType: "NOT_FOUND"})
	default:
		h.logger.Error("failed to append movement", zap.String("request_id", req.RequestID), zap.Error(err))
		h.respond(w, r.Method, endpoint, http.StatusInternalServerError, ErrorResponse{Message: "internal server error", FailureType: "INTERNAL"})
	}
}

// ResolveAccountHandler maps an external account number to its id.
func (h *Handler) ResolveAccountHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/accounts/resolve"

	number := r.URL.Query().Get("number")
	if number == "" {
		h.respond(w, r.Method, endpoint, http.StatusBadRequest, ErrorResponse{Message: "query parameter number is required", FailureType: "VALIDATION"})
		return
	}

	accountID, err := h.service.ResolveAccountNumber(r.Context(), number)

	switch {
	case err == nil:
		h.respond(w, r.Method, endpoint, http.StatusOK, ResolveAccountResponse{AccountID: accountID})
	case errors.Is(err, domain.ErrAccountNotFound):
		h.respond(w, r.Method, endpoint, http.StatusNotFound, ErrorResponse{Message: "account not found", FailureType: "NOT_FOUND"})
	default:
		h.logger.Error("failed to resolve account number", zap.Error(err))
		h.respond(w, r.Method, endpoint, http.StatusInternalServerError, ErrorResponse{Message: "internal server error", FailureType: "INTERNAL"})
	}
}

func (h *Handler) respond(w http.ResponseWriter, method, endpoint string, code int, payload any) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, payload)
}

func movementResponse(m *domain.Movement) MovementResponse {
	return MovementResponse{
		ID:        m.ID,
		AccountID: m.AccountID,
		Amount:    m.Amount.String(),
		Direction: string(m.Direction),
		RequestID: m.RequestID,
		CreatedAt: m.CreatedAt,
	}
}

func respondWithError(w http.ResponseWriter, code int, failureType, message string) {
	respondWithJSON(w, code, ErrorResponse{Message: message, FailureType: failureType})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
