package health

import (
	"context"
	"net/http"
	"time"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

const checkTimeout = 5 * time.Second

type HealthCheckHttpHandler struct {
	checker Checker
}

func NewHealthCheckHttpHandler(checker Checker) *HealthCheckHttpHandler {
	return &HealthCheckHttpHandler{
		checker: checker,
	}
}

func (h *HealthCheckHttpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	err := h.checker.Check(ctx)
	if err == nil {
		logging.Debug("Health check passed")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	logging.WithError(err).Warn("Health check failed")
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, err := w.Write([]byte(err.Error())); err != nil {
		logging.WithError(err).Error("Failed to write health check response")
	}
}

func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle("/health", NewHealthCheckHttpHandler(checker))
}
