package rest

import (
	"dwilive/auth"
	"dwilive/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Dependencies struct {
	Auth          services.IAuthService
	Users         services.IUserService
	Conversations services.IConversationService
	Resolver      *auth.IdentityResolver
	// Socket serves the websocket upgrade; it is mounted behind authentication.
	Socket http.Handler
}

// NewRouter wires HTTP routes to the services.
func NewRouter(deps Dependencies, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authenticated := auth.Middleware(deps.Resolver, log)
	if deps.Socket != nil {
		r.With(authenticated).Get("/ws", deps.Socket.ServeHTTP)
	}

	authHandler := &authHandler{auth: deps.Auth, log: log}
	userHandler := &userHandler{users: deps.Users, log: log}
	conversationHandler := &conversationHandler{conversations: deps.Conversations, log: log}

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/register", authHandler.register)
		api.Post("/auth/login", authHandler.login)

		api.Group(func(private chi.Router) {
			private.Use(authenticated)
			userHandler.RegisterRoutes(private)
			conversationHandler.RegisterRoutes(private)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("HTTP request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
