package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quarrydocs/quarry/internal/api"
	"github.com/quarrydocs/quarry/internal/api/handlers"
	"github.com/quarrydocs/quarry/internal/api/middleware"
)

type RouterConfig struct {
	APIToken             string
	DocumentHandler      *handlers.DocumentHandler
	SearchHandler        *handlers.SearchHandler
	SettingsHandler      *handlers.SettingsHandler
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.APIToken))

		r.Route("/knowledge-bases", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeBaseHandler.Create)
			r.Get("/", cfg.KnowledgeBaseHandler.List)
			r.Get("/{id}", cfg.KnowledgeBaseHandler.Get)
			r.Post("/{id}/embed", cfg.KnowledgeBaseHandler.Embed)
			r.Delete("/{id}", cfg.KnowledgeBaseHandler.Delete)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Get("/{id}/status", cfg.DocumentHandler.Status)
			r.Get("/{id}/source", cfg.DocumentHandler.SourceDownloadURL)
			r.Post("/{id}/embed", cfg.DocumentHandler.Embed)
			r.Post("/{id}/retry", cfg.DocumentHandler.Retry)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/embedding", cfg.SettingsHandler.GetEmbedding)
			r.Put("/embedding", cfg.SettingsHandler.UpdateEmbedding)
			r.Get("/reranker", cfg.SettingsHandler.GetReranker)
			r.Put("/reranker", cfg.SettingsHandler.UpdateReranker)
		})
	})

	return r
}
