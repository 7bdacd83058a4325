package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kinorium-scraper/adapters"
	"kinorium-scraper/internal/types"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

const (
	defaultResultsLimit = 10
	maxResultsLimit     = 100
)

// Scraper is the scraping surface the API exposes
type Scraper interface {
	ScrapeGenre(ctx context.Context, name string) (*types.GenreListing, error)
	ScrapeFilmDetail(ctx context.Context, name string) (*types.FilmDetailResult, error)
	OpenInteractive(ctx context.Context, name string) (*types.InteractiveAck, error)
}

// History serves stored results
type History interface {
	List(ctx context.Context, skip, limit int) ([]types.PersistedResult, error)
	Count(ctx context.Context) (int, error)
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// HealthResponse is returned by / and /health
type HealthResponse struct {
	Status  string `json:"status"`
	AppName string `json:"app_name"`
	Version string `json:"version"`
}

// GenresResponse lists the accepted genre names
type GenresResponse struct {
	Genres []string `json:"genres"`
	Count  int      `json:"count"`
}

// ResultsResponse is one page of stored results
type ResultsResponse struct {
	Count   int                     `json:"count"`
	Total   int                     `json:"total"`
	Results []types.PersistedResult `json:"results"`
}

// Server holds the API handlers and their collaborators
type Server struct {
	config  *types.Config
	logger  types.Logger
	scraper Scraper
	history History
	genres  *adapters.GenreResolver
	mux     *http.ServeMux
}

// NewServer creates a new API server
func NewServer(config *types.Config, logger types.Logger, scraper Scraper, history History, genres *adapters.GenreResolver) *Server {
	s := &Server{
		config:  config,
		logger:  logger,
		scraper: scraper,
		history: history,
		genres:  genres,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/genres", s.handleGenres)
	s.mux.HandleFunc("GET /api/v1/scrape/genre", s.handleScrapeGenre)
	s.mux.HandleFunc("GET /api/v1/scrape/film/details", s.handleFilmDetails)
	s.mux.HandleFunc("GET /api/v1/scrape/film/open-browser", s.handleOpenBrowser)
	s.mux.HandleFunc("GET /api/v1/results", s.handleResults)
}

// Handler returns the root handler with CORS and request logging applied
func (s *Server) Handler() http.Handler {
	return s.withLogging(s.withCORS(s.mux))
}

// LogRoutes prints the available endpoints
func (s *Server) LogRoutes() {
	s.logger.Info("Available endpoints:")
	s.logger.Info("  GET /health                                   - Health check")
	s.logger.Info("  GET /api/v1/genres                            - Supported genres")
	s.logger.Info("  GET /api/v1/scrape/genre?genre=               - Films of a genre")
	s.logger.Info("  GET /api/v1/scrape/film/details?film_name=    - Film details")
	s.logger.Info("  GET /api/v1/scrape/film/open-browser?film_name= - Show a film page in a visible browser")
	s.logger.Info("  GET /api/v1/results?skip=&limit=              - Stored results")
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Infof("%s %s -> %d (%v)", r.Method, r.URL.RequestURI(), rec.status, time.Since(start))
	})
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		AppName: s.config.AppName,
		Version: Version,
	})
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	names := s.genres.Names()
	s.sendSuccess(w, GenresResponse{Genres: names, Count: len(names)})
}

func (s *Server) handleScrapeGenre(w http.ResponseWriter, r *http.Request) {
	genre, ok := s.requireParam(w, r, "genre")
	if !ok {
		return
	}
	listing, err := s.scraper.ScrapeGenre(r.Context(), genre)
	if err != nil {
		s.sendScrapeError(w, err)
		return
	}
	s.sendSuccess(w, listing)
}

func (s *Server) handleFilmDetails(w http.ResponseWriter, r *http.Request) {
	name, ok := s.requireParam(w, r, "film_name")
	if !ok {
		return
	}
	result, err := s.scraper.ScrapeFilmDetail(r.Context(), name)
	if err != nil {
		s.sendScrapeError(w, err)
		return
	}
	s.sendSuccess(w, result)
}

func (s *Server) handleOpenBrowser(w http.ResponseWriter, r *http.Request) {
	name, ok := s.requireParam(w, r, "film_name")
	if !ok {
		return
	}
	ack, err := s.scraper.OpenInteractive(r.Context(), name)
	if err != nil {
		s.sendScrapeError(w, err)
		return
	}
	s.sendSuccess(w, ack)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	skip, err := intParam(r, "skip", 0)
	if err != nil || skip < 0 {
		s.sendError(w, "skip must be a non-negative integer", "invalid_request", http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", defaultResultsLimit)
	if err != nil || limit < 1 || limit > maxResultsLimit {
		s.sendError(w, "limit must be an integer between 1 and 100", "invalid_request", http.StatusBadRequest)
		return
	}

	results, err := s.history.List(r.Context(), skip, limit)
	if err != nil {
		s.logger.Errorf("Failed to list results: %v", err)
		s.sendError(w, "failed to read stored results", "store_error", http.StatusInternalServerError)
		return
	}
	total, err := s.history.Count(r.Context())
	if err != nil {
		s.logger.Errorf("Failed to count results: %v", err)
		s.sendError(w, "failed to read stored results", "store_error", http.StatusInternalServerError)
		return
	}

	s.sendSuccess(w, ResultsResponse{Count: len(results), Total: total, Results: results})
}

func (s *Server) requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		s.sendError(w, name+" query parameter is required", "invalid_request", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// sendScrapeError maps a classified scrape failure to its response status
func (s *Server) sendScrapeError(w http.ResponseWriter, err error) {
	scrapeErr := types.Classify(err)
	status := scrapeErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError && scrapeErr.Kind != types.KindEnvironmentUnsupported {
		s.logger.Errorf("Scrape failed: %v", scrapeErr)
	}
	s.sendJSON(w, status, APIResponse{
		Error:     scrapeErr.Error(),
		ErrorCode: scrapeErr.Kind.String(),
		Retryable: scrapeErr.Kind.Retryable(),
	})
}

func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message, code string, statusCode int) {
	s.sendJSON(w, statusCode, APIResponse{
		Success:   false,
		Error:     message,
		ErrorCode: code,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}
