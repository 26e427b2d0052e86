package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hackrange/ctf-engine/internal/catalog"
	"github.com/hackrange/ctf-engine/internal/config"
	"github.com/hackrange/ctf-engine/internal/leaderboard"
	"github.com/hackrange/ctf-engine/internal/progress"
	"github.com/hackrange/ctf-engine/internal/storage"
	"github.com/hackrange/ctf-engine/internal/targets"
)

// Server represents the HTTP API server
type Server struct {
	config         config.Config
	router         *chi.Mux
	catalog        *catalog.Loader
	progress       *progress.Service
	leaderboard    *leaderboard.Service
	targets        *targets.Registry
	repo           storage.Repository
	authMiddleware *AuthMiddleware
	feed           *FeedHub
	submitLimit    *submitLimiter
}

// NewServer creates a new API server
func NewServer(
	cfg config.Config,
	loader *catalog.Loader,
	progressService *progress.Service,
	leaderboardService *leaderboard.Service,
	targetRegistry *targets.Registry,
	repo storage.Repository,
	feed *FeedHub,
) *Server {
	s := &Server{
		config:         cfg,
		catalog:        loader,
		progress:       progressService,
		leaderboard:    leaderboardService,
		targets:        targetRegistry,
		repo:           repo,
		authMiddleware: NewAuthMiddleware(repo),
		feed:           feed,
		submitLimit:    newSubmitLimiter(cfg.RateLimit.SubmitPerMinute, cfg.RateLimit.SubmitBurst),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Challenges
		r.Route("/challenges", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("challenges:read")).Get("/", s.handleListChallenges)
			r.With(s.authMiddleware.RequirePermission("challenges:write")).Post("/reload", s.handleReloadChallenges)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("challenges:read")).Get("/", s.handleGetChallenge)
				r.With(s.authMiddleware.RequirePermission("progress:write")).Post("/submit", s.handleSubmitFlag)
			})
		})

		// Progress
		r.With(s.authMiddleware.RequirePermission("progress:read")).Get("/progress", s.handleGetProgress)

		// Leaderboard
		r.With(s.authMiddleware.RequirePermission("leaderboard:read")).Get("/leaderboard", s.handleGetLeaderboard)

		// Submission audit log
		r.With(s.authMiddleware.RequirePermission("submissions:read")).Get("/submissions", s.handleListSubmissions)

		// Roster
		r.Route("/users", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("users:read")).Get("/", s.handleListUsers)
			r.With(s.authMiddleware.RequirePermission("users:write")).Post("/", s.handleUpsertUser)
		})

		// Live solve feed
		r.With(s.authMiddleware.RequirePermission("leaderboard:read")).Get("/feed", s.handleSolveFeed)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
