// Package console serves the interactive graph view to browsers. Each
// websocket session owns a scene loop; the browser replays the display
// lists it receives onto an HTML canvas.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/logging"
	"github.com/matsen/vulngraph/internal/render"
	"github.com/matsen/vulngraph/internal/scene"
	"github.com/matsen/vulngraph/internal/source"
	"github.com/matsen/vulngraph/internal/viewport"
)

const (
	// DefaultFrameRate bounds frames per second sent to one session.
	DefaultFrameRate = 30

	// DefaultQueryTimeout bounds one graph query.
	DefaultQueryTimeout = 30 * time.Second

	// DefaultSearchK is the number of similar nodes a search returns.
	DefaultSearchK = 10

	maxQueryBody = 64 * 1024
)

// ErrNoSource is returned when a query arrives and no graph source is set.
var ErrNoSource = errors.New("no graph source configured")

// ErrNoSearch is returned when a search arrives and similarity search is
// unavailable.
var ErrNoSearch = errors.New("similarity search not configured")

// Querier runs read-only Cypher and returns the resulting graph.
type Querier interface {
	Query(ctx context.Context, cypher string, params map[string]any) (graph.GraphData, error)
}

// Searcher finds nodes similar to free text.
type Searcher interface {
	Similar(ctx context.Context, text string, k int) (graph.GraphData, []source.Match, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithQuerier enables query messages and POST /api/query.
func WithQuerier(q Querier) Option {
	return func(s *Server) { s.querier = q }
}

// WithSearcher enables search messages.
func WithSearcher(sr Searcher) Option {
	return func(s *Server) { s.searcher = sr }
}

// WithMetrics replaces the default collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithFrameRate bounds frames per second per session.
func WithFrameRate(perSecond float64) Option {
	return func(s *Server) { s.frameRate = perSecond }
}

// WithTickInterval sets the layout tick interval of session loops.
func WithTickInterval(d time.Duration) Option {
	return func(s *Server) { s.tickInterval = d }
}

// WithInitialSize sets the viewport used until a browser reports its own.
func WithInitialSize(size viewport.Size) Option {
	return func(s *Server) { s.initialSize = size }
}

// WithFonts sets the fonts used to measure text for display lists.
func WithFonts(f *render.Fonts) Option {
	return func(s *Server) { s.fonts = f }
}

// Server is the console HTTP server.
type Server struct {
	logger       *zap.Logger
	metrics      *Metrics
	querier      Querier
	searcher     Searcher
	fonts        *render.Fonts
	upgrader     websocket.Upgrader
	frameRate    float64
	tickInterval time.Duration
	initialSize  viewport.Size

	mu       sync.RWMutex
	data     graph.GraphData
	sessions map[string]*session
}

// NewServer creates a server with initial data.
func NewServer(data graph.GraphData, opts ...Option) (*Server, error) {
	s := &Server{
		logger:       zap.NewNop(),
		frameRate:    DefaultFrameRate,
		tickInterval: scene.DefaultTickInterval,
		initialSize:  viewport.Size{Width: 800, Height: 600},
		data:         data,
		sessions:     make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics("vg")
	}
	if s.fonts == nil {
		fonts, err := render.NewFonts()
		if err != nil {
			return nil, fmt.Errorf("loading fonts: %w", err)
		}
		s.fonts = fonts
	}
	return s, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(logging.Middleware(s.logger))
		r.Get("/", s.handlePage)
		r.Get("/healthz", s.handleHealth)
		r.Get("/api/graph", s.handleGraph)
		r.Post("/api/query", s.handleQuery)
	})
	return r
}

// Data returns the shared result set.
func (s *Server) Data() graph.GraphData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// SetData replaces the shared result set and pushes it to every session.
func (s *Server) SetData(ctx context.Context, data graph.GraphData) {
	s.mu.Lock()
	s.data = data
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	s.metrics.DataReloads.Inc()
	s.logger.Info("result set replaced",
		zap.Int("nodes", len(data.Nodes)),
		zap.Int("links", len(data.Links)),
		zap.Int("sessions", len(sessions)))

	for _, sess := range sessions {
		sess.load(ctx, data)
	}
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close ends every open session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.metrics.Sessions.Inc()
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	_, ok := s.sessions[sess.id]
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	if ok {
		s.metrics.Sessions.Dec()
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	html, err := GeneratePage(PageOptions{Title: "vg console", WebSocketPath: "/ws"})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Data())
}

type queryRequest struct {
	Cypher string         `json:"cypher"`
	Params map[string]any `json:"params,omitempty"`
}

type queryResponse struct {
	Report graph.Report    `json:"report"`
	Data   graph.GraphData `json:"data"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if req.Cypher == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("cypher is required"))
		return
	}

	data, err := s.runQuery(r.Context(), req.Cypher, req.Params)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrNoSource) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err)
		return
	}

	s.SetData(r.Context(), data)
	_, report := graph.Sanitize(data)
	s.writeJSON(w, http.StatusOK, queryResponse{Report: report, Data: data})
}

// runQuery executes cypher against the configured querier.
func (s *Server) runQuery(ctx context.Context, cypher string, params map[string]any) (graph.GraphData, error) {
	if s.querier == nil {
		return graph.GraphData{}, ErrNoSource
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	start := time.Now()
	data, err := s.querier.Query(ctx, cypher, params)
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Queries.WithLabelValues("cypher", "error").Inc()
		s.logger.Warn("query failed", zap.Error(err))
		return graph.GraphData{}, err
	}
	s.metrics.Queries.WithLabelValues("cypher", "ok").Inc()
	return data, nil
}

// runSearch executes a similarity search.
func (s *Server) runSearch(ctx context.Context, text string, k int) (graph.GraphData, error) {
	if s.searcher == nil {
		return graph.GraphData{}, ErrNoSearch
	}
	if k <= 0 {
		k = DefaultSearchK
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	start := time.Now()
	data, _, err := s.searcher.Similar(ctx, text, k)
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Queries.WithLabelValues("similar", "error").Inc()
		s.logger.Warn("search failed", zap.Error(err))
		return graph.GraphData{}, err
	}
	s.metrics.Queries.WithLabelValues("similar", "ok").Inc()
	return data, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
