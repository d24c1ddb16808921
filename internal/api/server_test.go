package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/checkcall/internal/processor"
	"github.com/MikeSquared-Agency/checkcall/internal/store"
	"github.com/MikeSquared-Agency/checkcall/internal/summary"
)

type fakeService struct {
	calls     map[uuid.UUID]*store.Call
	agents    map[uuid.UUID]*store.AgentConfig
	startErr  error
	replyText string
	events    []processor.PlatformEvent
	flows     map[string]json.RawMessage
}

func newFakeService() *fakeService {
	return &fakeService{
		calls:     make(map[uuid.UUID]*store.Call),
		agents:    make(map[uuid.UUID]*store.AgentConfig),
		replyText: "Thanks. What's your exact location and ETA to destination? Any delays to report?",
		flows:     make(map[string]json.RawMessage),
	}
}

func (f *fakeService) StartCall(_ context.Context, req processor.StartCallRequest) (*store.Call, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	call := &store.Call{
		ID:         uuid.New(),
		DriverName: req.DriverName,
		LoadNumber: req.LoadNumber,
		Status:     store.StatusNotJoined,
	}
	f.calls[call.ID] = call
	return call, nil
}

func (f *fakeService) GetCall(_ context.Context, id uuid.UUID) (*store.Call, error) {
	call, ok := f.calls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return call, nil
}

func (f *fakeService) ListCalls(_ context.Context) ([]store.Call, error) {
	var out []store.Call
	for _, c := range f.calls {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeService) NextReply(_ context.Context, id uuid.UUID) (string, error) {
	if _, ok := f.calls[id]; !ok {
		return "", store.ErrNotFound
	}
	return f.replyText, nil
}

func (f *fakeService) RefreshSummary(_ context.Context, id uuid.UUID) (summary.Summary, error) {
	if _, ok := f.calls[id]; !ok {
		return nil, store.ErrNotFound
	}
	return summary.RoutineSummary{CallOutcome: summary.OutcomeInTransit, DriverStatus: summary.StatusDriving}, nil
}

func (f *fakeService) ProcessEvent(_ context.Context, evt processor.PlatformEvent) error {
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeService) RegisterAgent(_ context.Context, req processor.RegisterAgentRequest) (*store.AgentConfig, error) {
	agent := &store.AgentConfig{ID: uuid.New(), AgentID: "agent_fake", AgentName: req.AgentName, Prompts: req.Prompts}
	f.agents[agent.ID] = agent
	return agent, nil
}

func (f *fakeService) GetAgentConfig(_ context.Context, id uuid.UUID) (*store.AgentConfig, error) {
	agent, ok := f.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return agent, nil
}

func (f *fakeService) ListAgentConfigs(_ context.Context) ([]store.AgentConfig, error) {
	var out []store.AgentConfig
	for _, a := range f.agents {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeService) GetConversationFlow(_ context.Context, flowID, _ string) (json.RawMessage, error) {
	flow, ok := f.flows[flowID]
	if !ok {
		return nil, processor.ErrPlatform
	}
	return flow, nil
}

func (f *fakeService) UpdateConversationFlow(_ context.Context, flowID string, patch json.RawMessage) (json.RawMessage, error) {
	f.flows[flowID] = patch
	return patch, nil
}

func testServer(svc Service) *Server {
	return NewServer(8650, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(newFakeService())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := testServer(newFakeService())

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "checkcall" {
		t.Errorf("expected service checkcall, got %q", body["service"])
	}
}

func TestStartCallEndpoint(t *testing.T) {
	svc := newFakeService()
	srv := testServer(svc)

	payload := `{"driver_name":"Alex","load_number":"L-100","agent_config_id":"` + uuid.New().String() + `"}`
	req := httptest.NewRequest("POST", "/api/v1/calls", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var call store.Call
	if err := json.NewDecoder(w.Body).Decode(&call); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if call.DriverName != "Alex" || call.Status != store.StatusNotJoined {
		t.Errorf("unexpected call: %+v", call)
	}
}

func TestStartCallEndpoint_PlatformDown(t *testing.T) {
	svc := newFakeService()
	svc.startErr = processor.ErrPlatform
	srv := testServer(svc)

	payload := `{"driver_name":"Alex","load_number":"L-100"}`
	req := httptest.NewRequest("POST", "/api/v1/calls", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestGetCallEndpoint_NotFound(t *testing.T) {
	srv := testServer(newFakeService())

	req := httptest.NewRequest("GET", "/api/v1/calls/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetCallEndpoint_BadID(t *testing.T) {
	srv := testServer(newFakeService())

	req := httptest.NewRequest("GET", "/api/v1/calls/not-a-uuid", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestNextReplyEndpoint(t *testing.T) {
	svc := newFakeService()
	call := &store.Call{ID: uuid.New(), DriverName: "Alex", LoadNumber: "L-100"}
	svc.calls[call.ID] = call
	srv := testServer(svc)

	req := httptest.NewRequest("POST", "/api/v1/calls/"+call.ID.String()+"/reply", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(body["reply"], "exact location") {
		t.Errorf("unexpected reply: %q", body["reply"])
	}
}

func TestRefreshSummaryEndpoint(t *testing.T) {
	svc := newFakeService()
	call := &store.Call{ID: uuid.New()}
	svc.calls[call.ID] = call
	srv := testServer(svc)

	req := httptest.NewRequest("POST", "/api/v1/calls/"+call.ID.String()+"/refresh", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["call_outcome"] != summary.OutcomeInTransit {
		t.Errorf("unexpected outcome: %v", body["call_outcome"])
	}
}

func TestRetellWebhook(t *testing.T) {
	svc := newFakeService()
	srv := testServer(svc)

	payload := `{"event":"call_started","call":{"call_id":"retell_abc","metadata":{"call_id":"` + uuid.New().String() + `"}}}`
	req := httptest.NewRequest("POST", "/webhook/retell", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.events) != 1 || svc.events[0].Type != processor.EventCallStarted {
		t.Errorf("event not forwarded: %+v", svc.events)
	}
}

func TestRetellWebhook_BadPayload(t *testing.T) {
	srv := testServer(newFakeService())

	req := httptest.NewRequest("POST", "/webhook/retell", strings.NewReader(`{"call_id":"x"}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestFlowPassthrough(t *testing.T) {
	svc := newFakeService()
	srv := testServer(svc)

	patch := `{"nodes":[{"id":"n1"}]}`
	req := httptest.NewRequest("PATCH", "/api/v1/flows/flow_1", strings.NewReader(patch))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/flows/flow_1", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "n1") {
		t.Errorf("flow not round-tripped: %s", w.Body.String())
	}
}

func TestFlowGet_PlatformError(t *testing.T) {
	srv := testServer(newFakeService())

	req := httptest.NewRequest("GET", "/api/v1/flows/missing", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}
