package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pilot-rag/internal/handlers"
	"pilot-rag/internal/session"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Documents    *handlers.DocumentsHandler
	Chat         *handlers.ChatHandler
	SessionStore session.Store
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Add CORS middleware
	r.Use(CORS)
	r.Use(LoggerMiddleware)
	r.Use(SessionMiddleware(deps.SessionStore))

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", deps.Documents.Upload)
			r.Get("/", deps.Documents.List)
			r.Delete("/{id}", deps.Documents.Delete)
		})

		r.Post("/chat", deps.Chat.Chat)
		r.Post("/chat/clear", deps.Chat.ClearHistory)
		r.Get("/session", deps.Chat.GetSession)
		r.Post("/session/clear", deps.Chat.ClearSession)
		r.Post("/settings/test", deps.Chat.TestSettings)
	})

	return r
}
