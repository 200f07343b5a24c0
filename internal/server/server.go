// Package server exposes the chat service over HTTP: the WebSocket
// endpoint plus health, stats and share routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/chat"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/match"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/media"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/ratelimit"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/ws"
)

const (
	shutdownTimeout = 5 * time.Second
	qrSize          = 320

	// sweepInterval is how often idle rate limiter keys are dropped.
	sweepInterval = time.Minute
)

// Server is the main HTTP server for the chat service.
type Server struct {
	addr    string
	router  *mux.Router
	handler http.Handler

	engine   *match.Engine
	hub      *ws.Hub
	sessions *user.SessionStore
	service  *chat.Service

	users          user.Directory
	suggester      media.Suggester
	connOpts       []ws.ConnManagerOption
	messageLimiter *ratelimit.Limiter
	connectLimiter *ratelimit.Limiter
	sessionTTL     time.Duration
	publicURL      string
	origins        []string
	sweepInterval  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithDirectory stores profiles in d instead of in memory.
func WithDirectory(d user.Directory) Option {
	return func(s *Server) {
		s.users = d
	}
}

// WithSuggester enables media suggestions.
func WithSuggester(m media.Suggester) Option {
	return func(s *Server) {
		s.suggester = m
	}
}

// WithConnOptions configures the WebSocket connection manager.
func WithConnOptions(opts ...ws.ConnManagerOption) Option {
	return func(s *Server) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// WithMessageLimiter limits chat messages per user.
func WithMessageLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.messageLimiter = l
	}
}

// WithConnectLimiter limits WebSocket connection attempts per client IP.
func WithConnectLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.connectLimiter = l
	}
}

// WithSessionTTL sets how long a disconnected anonymous identity can be
// resumed. Zero keeps identities forever.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = d
	}
}

// WithPublicURL sets the URL encoded in the share QR code. By default it
// is derived from the request.
func WithPublicURL(u string) Option {
	return func(s *Server) {
		s.publicURL = u
	}
}

// WithAllowedOrigins restricts cross-origin requests to origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New creates a new Server listening on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		router:  mux.NewRouter().StrictSlash(true),
		engine:        match.NewEngine(),
		origins:       []string{"*"},
		sweepInterval: sweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.users == nil {
		s.users = user.NewMemoryDirectory()
	}

	s.hub = ws.NewHub(s.connOpts...)
	s.sessions = user.NewSessionStore(s.sessionTTL)

	var svcOpts []chat.Option
	if s.suggester != nil {
		svcOpts = append(svcOpts, chat.WithSuggester(s.suggester))
	}
	s.service = chat.NewService(s.engine, s.users, s.hub, svcOpts...)

	s.routes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then closes every WebSocket and
// shuts the HTTP server down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepLimiters(ctx)

	errs := make(chan error, 1)
	go func() {
		log.WithField("addr", s.addr).Info("server: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("server: shutting down")
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close closes every WebSocket and stops background work. Run calls it on
// shutdown; servers used only through Handler should call it themselves.
func (s *Server) Close() {
	s.hub.ConnMgr().Shutdown()
	s.sessions.Close()
}

// sweepLimiters drops expired rate limiter keys until ctx is done.
func (s *Server) sweepLimiters(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.messageLimiter.Sweep()
			s.connectLimiter.Sweep()
		}
	}
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/share.png", s.handleShare).Methods(http.MethodGet)
	s.router.Handle("/ws", s.limitConnects(ws.NewHandler(s.hub, s.sessions, s.service,
		ws.WithMessageLimiter(s.messageLimiter)))).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats is the body of GET /api/stats.
type Stats struct {
	match.Stats
	Connections ws.ConnStats `json:"connections"`
	Identities  int          `json:"identities"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Stats{
		Stats:       s.engine.Stats(),
		Connections: s.hub.ConnMgr().Stats(),
		Identities:  s.sessions.Count(),
	})
}

// handleShare renders a QR code pointing at the public URL.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	url := s.publicURL
	if url == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		url = scheme + "://" + r.Host + "/"
	}

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		log.WithError(err).Error("server: qr generation failed")
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// limitConnects rejects WebSocket upgrades from IPs over the connect rate.
func (s *Server) limitConnects(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := clientIP(r); !s.connectLimiter.Allow(ip) {
			log.WithField("remote", ip).Warn("server: connect rate exceeded")
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("server: write response failed")
	}
}
