// Package api provides the HTTP server for glitchsite.
//
// It serves the rendered site, the embedded static assets, a small JSON API
// behind the price estimator, a WebSocket for live quotes and the prometheus
// metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/glitchsite/internal/config"
	"github.com/seenimoa/glitchsite/internal/currency"
	"github.com/seenimoa/glitchsite/internal/infra"
	"github.com/seenimoa/glitchsite/internal/logging"
	"github.com/seenimoa/glitchsite/internal/metrics"
	"github.com/seenimoa/glitchsite/internal/site"
	"github.com/seenimoa/glitchsite/pkg/utils"
	"github.com/seenimoa/glitchsite/web"
)

// shutdownTimeout bounds how long in-flight requests may drain.
const shutdownTimeout = 15 * time.Second

// Options carries the collaborators a Server needs besides its config.
type Options struct {
	Resolver *currency.Resolver
	Renderer *site.Renderer // nil parses the embedded templates
	Logger   *logrus.Logger
	Version  string
}

// Server is the HTTP server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	log      *logrus.Logger
	resolver *currency.Resolver
	renderer *site.Renderer
	locale   utils.Locale
	limiter  *infra.KeyedLimiter
	proxies  []netip.Prefix
	wsHub    *WSHub
	version  string
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	if opts.Resolver == nil {
		return nil, errors.New("api: nil currency resolver")
	}

	proxies, err := cfg.Server.TrustedPrefixes()
	if err != nil {
		return nil, err
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer, err = site.NewRenderer(web.TemplatesFS())
		if err != nil {
			return nil, fmt.Errorf("templates: %w", err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	srv := &Server{
		cfg:      cfg,
		log:      log,
		resolver: opts.Resolver,
		renderer: renderer,
		locale:   utils.ParseLocale(cfg.Pricing.Locale),
		proxies:  proxies,
		wsHub:    NewWSHub(),
		version:  version,
	}
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		srv.limiter = infra.NewKeyedLimiter(rl.RPS, rl.Burst, 10*time.Minute)
	}

	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe serves on addr until ctx is cancelled, then tells WebSocket
// clients to go away and drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go s.janitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.wsHub.Close()
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	s.wsHub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// requestTimeout is the per-request deadline, derived from the write timeout.
func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.WriteTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second
}

// janitor sweeps expired state once a minute until ctx is done.
func (s *Server) janitor(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep()
		}
	}
}

// sweep drops idle rate-limit buckets and expired currency resolutions.
func (s *Server) sweep() {
	if s.limiter != nil {
		s.limiter.Cleanup()
	}
	s.resolver.Cleanup()
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(s.realIP)
	r.Use(logging.RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.Timeout(s.requestTimeout()))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.Server.CORSOrigins) > 0 {
		origins = s.cfg.Server.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Site
	r.Get("/", s.handleIndex)
	r.Handle("/static/*", s.staticHandler())

	// Health check
	r.Get("/health", s.handleHealth)

	// Metrics
	r.Handle("/metrics", metrics.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/health", s.handleHealth)

		// Estimator
		r.Get("/catalog", s.handleCatalog)
		r.Get("/currency", s.handleCurrency)
		r.Post("/quote", s.handleQuote)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		// WebSocket
		r.Get("/ws/quote", s.handleWebSocket)
	})

	return r
}

// staticHandler serves the embedded assets. They change only with a new
// binary, so clients may cache them for a day.
func (s *Server) staticHandler() http.Handler {
	fileServer := http.StripPrefix("/static/", http.FileServerFS(web.StaticFS()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(w, r)
	})
}

// rateLimit refuses callers that exceed their per-IP budget with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// realIP lets a trusted proxy name the client through X-Forwarded-For or
// X-Real-IP. Headers from any other peer are ignored.
func (s *Server) realIP(next http.Handler) http.Handler {
	forwarded := middleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.trustedPeer(r.RemoteAddr) {
			forwarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) trustedPeer(remoteAddr string) bool {
	if len(s.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(hostOf(remoteAddr))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientKey is the caller's IP without the port.
func clientKey(r *http.Request) string {
	return hostOf(r.RemoteAddr)
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ============================================================
// Response envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	WebSocketClients int    `json:"websocket_clients"`
	CurrencyEnabled  bool   `json:"currency_enabled"`
	CachedCurrencies int    `json:"cached_currencies"`
	Time             string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:           "ok",
			Version:          s.version,
			WebSocketClients: s.wsHub.ClientCount(),
			CurrencyEnabled:  s.cfg.Currency.Enabled,
			CachedCurrencies: s.resolver.Cached(),
			Time:             time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// Message types exchanged over the quote socket.
const (
	MsgQuote    = "quote"
	MsgPing     = "ping"
	MsgPong     = "pong"
	MsgError    = "error"
	MsgShutdown = "shutdown"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// WSHub tracks the connected quote sockets.
type WSHub struct {
	mu        sync.RWMutex
	clients   map[*WSClient]bool
	closed    bool
	closeOnce sync.Once
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	id   string
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*WSClient]bool)}
}

// Close sends a shutdown message to every client and disconnects them.
// Later registrations are refused.
func (h *WSHub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		for client := range h.clients {
			select {
			case client.send <- WSMessage{Type: MsgShutdown}:
			default:
			}
			h.drop(client)
		}
		h.mu.Unlock()
		metrics.SetWebSocketClients(0)
	})
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. It reports false once the hub is closed.
func (h *WSHub) Register(client *WSClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWebSocketClients(n)
	return true
}

// Unregister removes a client from the hub and closes its send channel.
func (h *WSHub) Unregister(client *WSClient) {
	h.mu.Lock()
	h.drop(client)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWebSocketClients(n)
}

// Send queues a message for one client. It reports false when the client is
// gone or its buffer is full.
func (h *WSHub) Send(client *WSClient, msg WSMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// drop removes a client. h.mu must be held for writing.
func (h *WSHub) drop(client *WSClient) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}
