package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
	"github.com/MikeSquared-Agency/checkcall/internal/processor"
	"github.com/MikeSquared-Agency/checkcall/internal/store"
	"github.com/MikeSquared-Agency/checkcall/internal/summary"
)

// Service is the processor surface the HTTP layer depends on.
type Service interface {
	StartCall(ctx context.Context, req processor.StartCallRequest) (*store.Call, error)
	GetCall(ctx context.Context, id uuid.UUID) (*store.Call, error)
	ListCalls(ctx context.Context) ([]store.Call, error)
	NextReply(ctx context.Context, id uuid.UUID) (string, error)
	RefreshSummary(ctx context.Context, id uuid.UUID) (summary.Summary, error)
	ProcessEvent(ctx context.Context, evt processor.PlatformEvent) error
	RegisterAgent(ctx context.Context, req processor.RegisterAgentRequest) (*store.AgentConfig, error)
	GetAgentConfig(ctx context.Context, id uuid.UUID) (*store.AgentConfig, error)
	ListAgentConfigs(ctx context.Context) ([]store.AgentConfig, error)
	GetConversationFlow(ctx context.Context, flowID, version string) (json.RawMessage, error)
	UpdateConversationFlow(ctx context.Context, flowID string, patch json.RawMessage) (json.RawMessage, error)
}

type Server struct {
	router *chi.Mux
	svc    Service
	port   int
	logger *slog.Logger
}

func NewServer(port int, svc Service, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		svc:    svc,
		port:   port,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)

	router.Route("/api/v1/calls", func(r chi.Router) {
		r.Post("/", s.startCall)
		r.Get("/", s.listCalls)
		r.Get("/{id}", s.getCall)
		r.Post("/{id}/reply", s.nextReply)
		r.Post("/{id}/refresh", s.refreshSummary)
	})

	router.Route("/api/v1/agents", func(r chi.Router) {
		r.Post("/", s.registerAgent)
		r.Get("/", s.listAgents)
		r.Get("/{id}", s.getAgent)
	})

	router.Route("/api/v1/flows", func(r chi.Router) {
		r.Get("/{flowID}", s.getFlow)
		r.Patch("/{flowID}", s.updateFlow)
	})

	router.Post("/webhook/retell", s.retellWebhook)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "checkcall",
		"status":  "ok",
	})
}

func (s *Server) startCall(w http.ResponseWriter, r *http.Request) {
	var req processor.StartCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	call, err := s.svc.StartCall(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

func (s *Server) listCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := s.svc.ListCalls(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if calls == nil {
		calls = []store.Call{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	call, err := s.svc.GetCall(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Server) nextReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	reply, err := s.svc.NextReply(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) refreshSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sum, err := s.svc.RefreshSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req processor.RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	agent, err := s.svc.RegisterAgent(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.ListAgentConfigs(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if agents == nil {
		agents = []store.AgentConfig{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	agent, err := s.svc.GetAgentConfig(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")
	flow, err := s.svc.GetConversationFlow(r.Context(), flowID, r.URL.Query().Get("version"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(flow)
}

func (s *Server) updateFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if !json.Valid(patch) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("body is not valid JSON"))
		return
	}

	flow, err := s.svc.UpdateConversationFlow(r.Context(), flowID, patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(flow)
}

// retellWebhook accepts voice-platform events over HTTP. Parsing failures are
// a 400; processing failures are logged but acknowledged with 200 so the
// platform does not hammer us with retries for events we cannot apply.
func (s *Server) retellWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}

	evt, err := processor.ParsePlatformEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.svc.ProcessEvent(r.Context(), evt); err != nil {
		s.logger.Error("webhook event not applied", "type", evt.Type, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, processor.ErrPlatform):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, dialog.ErrNoGreetingTemplate):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s: %w", name, err))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
