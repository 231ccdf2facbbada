// Package chi exposes the search, chat, usage, and health operations over
// HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/usecase/engine"
	"github.com/kailas-cloud/ragdex/internal/usecase/health"
)

// SearchService runs the retrieval pipeline.
type SearchService interface {
	Search(ctx context.Context, query string, opts engine.Options) (engine.SearchResponse, error)
}

// RouterService routes chat requests and reports usage.
type RouterService interface {
	Route(ctx context.Context, req domain.RouteRequest) (domain.LLMResponse, error)
	UsageStats(ctx context.Context, projectID string, days int) (domain.UsageStats, error)
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) health.Report
}

// Server is the HTTP API server.
type Server struct {
	search          SearchService
	router          RouterService
	health          HealthService
	maxContextChars int
	logger          *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search SearchService,
	router RouterService,
	healthSvc HealthService,
	maxContextChars int,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:          search,
		router:          router,
		health:          healthSvc,
		maxContextChars: maxContextChars,
		logger:          logger,
	}
}

// Routes mounts all handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.handleSearch)
	r.Post("/chat", s.handleChat)
	r.Get("/usage", s.handleUsage)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), req.Query, engine.Options{
		TopK:           req.TopK,
		LibraryRatio:   req.LibraryRatio,
		IncludeLibrary: req.IncludeLibrary,
		UseHyde:        req.UseHyde,
		UseReranker:    req.UseReranker,
		UseCache:       req.UseCache,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := SearchResponse{
		Results:  resultsToDTO(resp.Results),
		Metadata: resp.Metadata,
		Sources:  engine.Sources(resp.Results),
	}
	if req.FormatContext {
		out.Context = engine.FormatContext(resp.Results, s.maxContextChars)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleChat handles POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "At least one message is required")
		return
	}

	messages := make([]domain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, domain.Message{Role: m.Role, Content: m.Content})
	}

	taskType := req.TaskType
	if taskType == "" {
		taskType = "chat"
	}

	resp, err := s.router.Route(r.Context(), domain.RouteRequest{
		Messages:         messages,
		TaskType:         taskType,
		ProjectID:        req.ProjectID,
		ProjectType:      req.ProjectType,
		ConversationID:   req.ConversationID,
		OverrideProvider: req.Provider,
		OverrideModel:    req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		SystemPrompt:     req.SystemPrompt,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Content:  resp.Content,
		Provider: resp.Provider,
		Model:    resp.Model,
		Usage: UsageDTO{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: resp.FinishReason,
	})
}

// handleUsage handles GET /usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "days must be a positive integer")
			return
		}
		days = parsed
	}

	stats, err := s.router.UsageStats(r.Context(), r.URL.Query().Get("project_id"), days)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	status := http.StatusOK
	if report.Status == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// handleDomainError maps sentinel errors to HTTP statuses.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Query must not be empty")
	case errors.Is(err, domain.ErrProvider), errors.Is(err, domain.ErrNoProvider):
		writeError(w, http.StatusBadGateway, CodeProviderError, err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	default:
		s.logger.Error("Unhandled request error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func resultsToDTO(results []domain.SearchResult) []SearchResultDTO {
	out := make([]SearchResultDTO, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResultDTO{
			Content:         res.Content,
			Metadata:        res.Metadata,
			Score:           res.Score,
			RerankScore:     res.RerankScore,
			Reranked:        res.Reranked,
			IsLibrary:       res.IsLibrary,
			LibraryCategory: res.LibraryCategory,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
