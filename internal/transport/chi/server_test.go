package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/usecase/engine"
	"github.com/kailas-cloud/ragdex/internal/usecase/health"
)

// --- Mocks ---

type mockSearch struct {
	resp engine.SearchResponse
	err  error
}

func (m *mockSearch) Search(_ context.Context, _ string, _ engine.Options) (engine.SearchResponse, error) {
	return m.resp, m.err
}

type mockRouter struct {
	resp    domain.LLMResponse
	err     error
	stats   domain.UsageStats
	lastReq domain.RouteRequest
}

func (m *mockRouter) Route(_ context.Context, req domain.RouteRequest) (domain.LLMResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockRouter) UsageStats(_ context.Context, _ string, days int) (domain.UsageStats, error) {
	m.stats.Days = days
	return m.stats, nil
}

type mockHealth struct {
	report health.Report
}

func (m *mockHealth) Check(_ context.Context) health.Report { return m.report }

func newTestServer(search SearchService, router RouterService, h HealthService) http.Handler {
	if h == nil {
		h = &mockHealth{report: health.Report{Status: health.Healthy, Checks: map[string]health.CheckResult{}}}
	}
	srv := NewServer(search, router, h, 32000, zap.NewNop())
	r := chirouter.NewRouter()
	srv.Routes(r)
	return r
}

// --- Tests ---

func TestHandleSearch_OK(t *testing.T) {
	search := &mockSearch{resp: engine.SearchResponse{
		Results: []domain.SearchResult{
			{Content: "passage", Score: 1.0, IsLibrary: true, LibraryCategory: "PMI", BoostFactor: 1.2},
		},
		Metadata: domain.SearchMetadata{Query: "q", TopK: 5, TotalResults: 1},
	}}
	handler := newTestServer(search, &mockRouter{}, nil)

	body := `{"query": "q", "top_k": 5, "format_context": true}`
	req := httptest.NewRequest("POST", "/search", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].LibraryCategory != "PMI" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if resp.Sources.Library != 1 || !resp.Sources.BoostApplied {
		t.Errorf("unexpected sources summary: %+v", resp.Sources)
	}
	if !strings.Contains(resp.Context, "LIBRARY CONTEXT") {
		t.Error("expected formatted context in response")
	}
}

func TestHandleSearch_EmptyQuery_400(t *testing.T) {
	search := &mockSearch{err: domain.ErrEmptyQuery}
	handler := newTestServer(search, &mockRouter{}, nil)

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"query": ""}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleSearch_InvalidBody_400(t *testing.T) {
	handler := newTestServer(&mockSearch{}, &mockRouter{}, nil)

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{not json`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleChat_OK(t *testing.T) {
	router := &mockRouter{resp: domain.LLMResponse{
		Content:  "hello there",
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Usage:    domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	handler := newTestServer(&mockSearch{}, router, nil)

	body := `{"messages": [{"role": "user", "content": "hi"}], "project_id": "p1"}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	// Missing task type defaults to chat.
	if router.lastReq.TaskType != "chat" {
		t.Errorf("expected chat default task, got %q", router.lastReq.TaskType)
	}
	if router.lastReq.ProjectID != "p1" {
		t.Errorf("expected project attribution, got %q", router.lastReq.ProjectID)
	}

	var resp ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Content != "hello there" || resp.Usage.TotalTokens != 15 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleChat_NoMessages_400(t *testing.T) {
	handler := newTestServer(&mockSearch{}, &mockRouter{}, nil)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"messages": []}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleChat_ProviderDown_502(t *testing.T) {
	router := &mockRouter{err: domain.ErrProvider}
	handler := newTestServer(&mockSearch{}, router, nil)

	body := `{"messages": [{"role": "user", "content": "hi"}]}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadGateway)
	}
}

func TestHandleUsage_DaysValidation(t *testing.T) {
	router := &mockRouter{stats: domain.UsageStats{Requests: 3}}
	handler := newTestServer(&mockSearch{}, router, nil)

	req := httptest.NewRequest("GET", "/usage?days=7", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var stats domain.UsageStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Days != 7 {
		t.Errorf("expected days=7 passed through, got %d", stats.Days)
	}

	req = httptest.NewRequest("GET", "/usage?days=zero", http.NoBody)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleHealth_Statuses(t *testing.T) {
	h := &mockHealth{report: health.Report{
		Status: health.Degraded,
		Checks: map[string]health.CheckResult{"vectors": health.CheckOK, "ledger": health.CheckError},
	}}
	handler := newTestServer(&mockSearch{}, &mockRouter{}, h)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("degraded should still be 200, got %d", rr.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["ledger"] != "error" {
		t.Errorf("unexpected health response: %+v", resp)
	}

	h.report = health.Report{Status: health.Unhealthy, Checks: map[string]health.CheckResult{}}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy should be 503, got %d", rr.Code)
	}
}
