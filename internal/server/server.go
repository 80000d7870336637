package server

import (
	"context"
	"net/http"
	"time"

	"main/internal/errors"
	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

// Closer forces credentials flat outside the tick cadence.
type Closer interface {
	ForceClose(ctx context.Context, credentialID string) error
}

// New builds the control/metrics HTTP server.
//
//	POST /stop        close and deactivate every active credential
//	POST /stop/{id}   close and deactivate one credential
//	GET  /metrics     prometheus registry
//	GET  /healthz     liveness
func New(addr string, closer Closer) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		handleStop(w, r, closer, "")
	})
	mux.HandleFunc("POST /stop/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleStop(w, r, closer, r.PathValue("id"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func handleStop(w http.ResponseWriter, r *http.Request, closer Closer, id string) {
	logs.Infof("operator stop requested, credential: %q", id)

	err := closer.ForceClose(r.Context(), id)
	switch {
	case errors.Is(err, exception.ErrCredentialMissing):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, exception.ErrTickBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := sonic.ConfigFastest.NewEncoder(w).Encode(body); err != nil {
		logs.Errorf("write response, err: %+v", err)
	}
}
