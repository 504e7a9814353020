package transfer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
	"github.com/pedrobono/BankMore/internal/ledger"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfer_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// CreateTransferRequest is the transfer submission body.
type CreateTransferRequest struct {
	RequestID                string    `json:"requestId"`
	OriginAccountID          uuid.UUID `json:"originAccountId"`
	DestinationAccountNumber string    `json:"destinationAccountNumber"`
	Amount                   string    `json:"amount"`
}

// CreateTransferResponse is returned for both fresh and replayed requests.
type CreateTransferResponse struct {
	TransferID uuid.UUID `json:"transferId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Service is the part of the coordinator the HTTP API exposes.
type Service interface {
	CreateTransfer(ctx context.Context, req Request) (*Result, error)
}

// Handler serves the client-facing transfer API.
type Handler struct {
	service Service
	token   string
	logger  *zap.Logger
}

// NewHandler creates a Handler guarded by the given static bearer token.
func NewHandler(service Service, token string, logger *zap.Logger) *Handler {
	return &Handler{service: service, token: token, logger: logger}
}

// Router builds the mux router for the transfer API.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.authMiddleware)
	api.HandleFunc("/transfers", h.CreateTransferHandler).Methods(http.MethodPost)

	return r
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "401").Inc()
			h.writeJSON(w, http.StatusUnauthorized, ledger.ErrorResponse{Message: "missing or invalid bearer token", FailureType: "UNAUTHORIZED"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateTransferHandler submits a transfer. A replay of a completed request
// id returns the original transfer with 200 instead of 201.
func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/transfers"

	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(http.MethodPost, endpoint))
	defer timer.ObserveDuration()

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, r.Method, endpoint, http.StatusBadRequest, ledger.ErrorResponse{Message: "malformed JSON body", FailureType: "VALIDATION"})
		return
	}

	result, err := h.service.CreateTransfer(r.Context(), Request{
		RequestID:                req.RequestID,
		OriginAccountID:          req.OriginAccountID,
		DestinationAccountNumber: req.DestinationAccountNumber,
		Amount:                   domain.Amount(req.Amount),
	})

	switch {
	case err == nil && result.Duplicate:
		h.respond(w, r.Method, endpoint, http.StatusOK, CreateTransferResponse{TransferID: result.TransferID, CreatedAt: result.CreatedAt})
	case err == nil:
		h.respond(w, r.Method, endpoint, http.StatusCreated, CreateTransferResponse{TransferID: result.TransferID, CreatedAt: result.CreatedAt})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount):
		h.respond(w, r.Method, endpoint, http.StatusBadRequest, ledger.ErrorResponse{Message: err.Error(), FailureType: "VALIDATION"})
	case errors.Is(err, domain.ErrAccountNotFound):
		h.respond(w, r.Method, endpoint, http.StatusNotFound, ledger.ErrorResponse{Message: "destination account not found", FailureType: "NOT_FOUND"})
	case errors.Is(err, domain.ErrUnauthorized):
		h.respond(w, r.Method, endpoint, http.StatusUnauthorized, ledger.ErrorResponse{Message: "ledger rejected credentials", FailureType: "UNAUTHORIZED"})
	case errors.Is(err, domain.ErrConflict):
		h.respond(w, r.Method, endpoint, http.StatusConflict, ledger.ErrorResponse{Message: "request is already being processed", FailureType: "CONFLICT"})
	case errors.Is(err, domain.ErrTransientUpstream):
		h.respond(w, r.Method, endpoint, http.StatusServiceUnavailable, ledger.ErrorResponse{Message: "upstream temporarily unavailable, retry later", FailureType: "TRANSIENT"})
	default:
		h.logger.Error("failed to create transfer", zap.String("request_id", req.RequestID), zap.Error(err))
		h.respond(w, r.Method, endpoint, http.StatusInternalServerError, ledger.ErrorResponse{Message: "internal server error", FailureType: "INTERNAL"})
	}
}

func (h *Handler) respond(w http.ResponseWriter, method, endpoint string, code int, payload any) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	h.writeJSON(w, code, payload)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
