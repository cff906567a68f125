package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"quickbite/internal/logger"
	"quickbite/internal/services/stock"
)

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Routes builds the HTTP router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.withLogging)

	r.Get("/health", h.HealthCheck)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/status", h.UpdateStatus)
	})

	r.Get("/menu-items/{id}/cost", h.MenuItemCost)

	r.Route("/ingredients", func(r chi.Router) {
		r.Get("/low-stock", h.LowStock)
		r.Post("/{id}/restock", h.Restock)
	})

	return r
}

// CreateOrder handles POST /orders requests
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	if !isJSON(r) {
		h.writeErrorResponse(w, http.StatusBadRequest, "Content-Type must be application/json", requestID)
		return
	}

	var req PlaceOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := h.service.PlaceOrder(ctx, req)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusCreated, result, requestID)
}

// GetOrder handles GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	id, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, o, requestID)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /orders/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	id, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	change, err := h.service.SetOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, change, requestID)
}

// MenuItemCost handles GET /menu-items/{id}/cost
func (h *Handler) MenuItemCost(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	id, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	breakdown, err := h.service.CostOf(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, breakdown, requestID)
}

// LowStock handles GET /ingredients/low-stock
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	ings, err := h.service.LowStock(r.Context())
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, ings, requestID)
}

type restockRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Restock handles POST /ingredients/{id}/restock
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	id, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	var req restockRequest
	if !h.decode(w, r, &req) {
		return
	}

	ing, err := h.service.Restock(r.Context(), id, req.Amount)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, ing, requestID)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.service.HealthCheck(ctx)

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}

	h.writeJSON(w, status, response, logger.RequestIDFrom(r.Context()))
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	requestID := logger.RequestIDFrom(r.Context())

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, requestID string) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw), requestID)
		return 0, false
	}
	return id, true
}

// statusFor maps workflow errors to HTTP status codes
func statusFor(err error) int {
	var (
		ve  ValidationError
		ue  *UnavailableItemError
		ise *stock.InsufficientStockError
	)

	switch {
	case errors.As(err, &ve),
		errors.Is(err, stock.ErrInvalidAmount),
		errors.Is(err, stock.ErrInvalidQuantity):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &ue), errors.As(err, &ise):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, requestID string) {
	status := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request_failed", "Internal error while handling request", requestID, err, nil)
		message = "Internal server error"
	}

	h.writeErrorResponse(w, status, message, requestID)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	h.writeJSON(w, statusCode, map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}, requestID)
}

// withLogging tags each request with an id and logs its start and outcome
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))
		w.Header().Set("X-Request-ID", requestID)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
