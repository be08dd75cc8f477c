// Package botapi exposes feed pages over HTTP and provides a client that
// reads them back as a feed.Store.
package botapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/metrics"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

const (
	DefaultLimit = 50
	MaxLimit     = feed.MaxPageSize

	shutdownTimeout = 10 * time.Second
)

// FeedResponse is the body of GET /v1/feed.
type FeedResponse struct {
	Messages []ssb.Message `json:"messages"`
}

type ServerConfig struct {
	Store feed.Store
	// Health reports whether the backing store is usable. Optional.
	Health    func(ctx context.Context) error
	Observer  HTTPObserver
	Gatherer  prometheus.Gatherer
	RateLimit RateLimiterConfig
	Logger    *zap.Logger
}

type Server struct {
	store   feed.Store
	health  func(ctx context.Context) error
	log     *zap.Logger
	limiter *RateLimiter
	router  chi.Router
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("botapi: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RateLimit.Rate == 0 {
		cfg.RateLimit = DefaultRateLimiterConfig()
	}
	log := cfg.Logger.Named("botapi")

	s := &Server{
		store:   cfg.Store,
		health:  cfg.Health,
		log:     log,
		limiter: NewRateLimiter(cfg.RateLimit, log),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(log, cfg.Observer))
	r.Use(recoverer(log))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path)
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)
		r.With(s.limiter.Middleware).Get("/feed", s.handleFeed)
	})
	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the rate limiter.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving bot api", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ListenAndServe is Serve on a new TCP listener.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	strategy, limit, offset, err := parseFeedQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, err.Error())
		return
	}

	msgs, err := s.store.Feed(r.Context(), strategy, limit, offset)
	switch {
	case errors.Is(err, feed.ErrUnknownKind), errors.Is(err, feed.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, err.Error())
		return
	case err != nil:
		s.log.Error("failed to load feed page",
			zap.Stringer("strategy", strategy), zap.Int("offset", offset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to load feed")
		return
	}
	if msgs == nil {
		msgs = []ssb.Message{}
	}
	writeJSON(w, http.StatusOK, FeedResponse{Messages: msgs})
}

// parseFeedQuery reads strategy, identity, seed, root, hashtag, limit and
// offset. The limit
// is clamped to [1, MaxLimit].
func parseFeedQuery(r *http.Request) (feed.Strategy, int, int, error) {
	q := r.URL.Query()

	strategy := feed.DefaultHomeStrategy
	if raw := q.Get("strategy"); raw != "" {
		kind, err := feed.ParseKind(raw)
		if err != nil {
			return feed.Strategy{}, 0, 0, err
		}
		strategy = feed.Strategy{Kind: kind}
	}
	strategy.Identity = ssb.Identity(q.Get("identity"))
	strategy.Root = ssb.MessageKey(q.Get("root"))
	strategy.Hashtag = q.Get("hashtag")
	if raw := q.Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return feed.Strategy{}, 0, 0, fmt.Errorf("invalid seed %q", raw)
		}
		strategy.Seed = seed
	}
	if err := strategy.Validate(); err != nil {
		return feed.Strategy{}, 0, 0, err
	}

	limit := DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return feed.Strategy{}, 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		limit = min(max(n, 1), MaxLimit)
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return feed.Strategy{}, 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
		offset = n
	}
	return strategy, limit, offset, nil
}
