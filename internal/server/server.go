// Package server exposes the HTTP gateway: the Telegram webhook, direct
// agent invocation and the remediation endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/agent"
	"github.com/nextlevelbuilder/kakak/internal/config"
	"github.com/nextlevelbuilder/kakak/internal/store"
)

// Server is the HTTP gateway.
type Server struct {
	stores        *store.Stores
	orchestrator  *agent.Orchestrator
	token         string
	webhookSecret string
	addr          string
}

func New(cfg *config.Config, stores *store.Stores, orchestrator *agent.Orchestrator) *Server {
	return &Server{
		stores:        stores,
		orchestrator:  orchestrator,
		token:         cfg.Gateway.AuthToken,
		webhookSecret: cfg.Telegram.WebhookSecret,
		addr:          fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /webhook/telegram", s.handleWebhook)

	mux.HandleFunc("POST /v1/agents/{name}/invoke", s.auth(s.handleInvoke))
	mux.HandleFunc("GET /v1/messages", s.auth(s.handleListMessages))
	mux.HandleFunc("POST /v1/messages/{id}/requeue", s.auth(s.handleRequeue))
	mux.HandleFunc("GET /v1/customers", s.auth(s.handleListCustomers))
	mux.HandleFunc("GET /v1/customers/{chat_id}", s.auth(s.handleGetCustomer))
	mux.HandleFunc("GET /v1/tickets", s.auth(s.handleListTickets))
	mux.HandleFunc("POST /v1/tickets", s.auth(s.handleCreateTicket))

	return mux
}

// Run serves until ctx is cancelled, then drains with a shutdown grace
// period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		slog.Info("http server stopped")
		return ctx.Err()
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && extractBearerToken(r) != s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
