package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iurnickita/storecredit/internal/auth"
	"github.com/iurnickita/storecredit/internal/handler/config"
	"github.com/iurnickita/storecredit/internal/logger"
	"github.com/iurnickita/storecredit/internal/metrics"
	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/service"
)

// Pinger reports store health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds the HTTP server. The caller owns ListenAndServe and Shutdown.
func NewServer(cfg config.Config, auth auth.Auth, service service.Service, metrics *metrics.Metrics, pinger Pinger, zaplog *zap.Logger) *http.Server {
	h := newHandler(auth, service, metrics, pinger, zaplog)

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      h.newRouter(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	metrics  *metrics.Metrics
	pinger   Pinger
	validate *validator.Validate
	zaplog   *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, metrics *metrics.Metrics, pinger Pinger, zaplog *zap.Logger) *handler {
	return &handler{
		auth:     auth,
		service:  service,
		metrics:  metrics,
		pinger:   pinger,
		validate: newValidator(),
		zaplog:   zaplog,
	}
}

func (h *handler) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/customers", func(r chi.Router) {
		r.Use(logger.RequestLogMdlw(h.zaplog))
		r.Use(h.auth.Middleware)

		r.Post("/", h.PostCustomer)
		r.Get("/", h.GetCustomers)
		r.Get("/lookup", h.GetCustomerLookup)

		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.PatchCustomer)

			r.Get("/limit", h.GetLimit)
			r.Put("/limit", h.PutLimit)
			r.Post("/limit/deactivate", h.PostLimitDeactivate)
			r.Post("/limit/reset", h.PostLimitReset)

			r.Post("/check", h.PostCheck)
			r.Post("/purchases", h.PostPurchase)
			r.Post("/payments", h.PostPayment)
			r.Post("/adjustments", h.PostAdjustment)
			r.Get("/balance", h.GetBalance)
			r.Get("/statement", h.GetStatement)
			r.Get("/drift", h.GetDrift)
			r.Post("/reconcile", h.PostReconcile)
		})
	})

	return r
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorJSONResponse{Error: "store unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// creditKey собирает ключ из id в пути и продавца из токена
func creditKey(r *http.Request) (model.CreditKey, error) {
	seller, ok := auth.SellerFromContext(r.Context())
	if !ok {
		return model.CreditKey{}, auth.ErrNoToken
	}
	customer, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || customer <= 0 {
		return model.CreditKey{}, service.NewServiceError(service.CodeInvalidRequest, service.ErrInsufficientData)
	}
	return model.CreditKey{Customer: customer, Seller: seller}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type ErrorJSONResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := service.CodeInternalFailure

	var serviceErr *service.Error
	switch {
	case errors.Is(err, auth.ErrNoToken):
		status, code = http.StatusUnauthorized, ""
	case errors.As(err, &serviceErr):
		code = serviceErr.Code
		switch serviceErr.Code {
		case service.CodeInvalidRequest:
			status = http.StatusBadRequest
		case service.CodeNotFound:
			status = http.StatusNotFound
		case service.CodeConflict:
			status = http.StatusConflict
		case service.CodeLimitExceeded:
			status = http.StatusPaymentRequired
		case service.CodeInvalidAmount, service.CodeOrderFailed:
			status = http.StatusUnprocessableEntity
		}
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.zaplog.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, ErrorJSONResponse{Error: message, Code: code})
}
