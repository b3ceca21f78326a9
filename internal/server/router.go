package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/replyforge/replyforge/internal/api"
	"github.com/replyforge/replyforge/internal/api/handlers"
	"github.com/replyforge/replyforge/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator       middleware.AuthValidator
	ChatHandler         *handlers.ChatHandler
	SourceHandler       *handlers.SourceHandler
	ConversationHandler *handlers.ConversationHandler
	AnalyticsHandler    *handlers.AnalyticsHandler
	TenantHandler       *handlers.TenantHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Document uploads are the largest requests we accept.
	const maxBodyBytes int64 = 32 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Post("/chat", cfg.ChatHandler.Answer)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", cfg.SourceHandler.List)
			r.Post("/documents", cfg.SourceHandler.UploadDocument)
			r.Post("/websites", cfg.SourceHandler.CreateWebsite)
			r.Post("/faqs", cfg.SourceHandler.CreateFAQ)
			r.Get("/{id}", cfg.SourceHandler.Get)
			r.Get("/{id}/download", cfg.SourceHandler.Download)
			r.Delete("/{id}", cfg.SourceHandler.Delete)
			r.Post("/{id}/reingest", cfg.SourceHandler.Reingest)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", cfg.ConversationHandler.List)
			r.Get("/{id}/messages", cfg.ConversationHandler.Messages)
		})

		r.Route("/escalations", func(r chi.Router) {
			r.Get("/", cfg.ConversationHandler.ListEscalations)
			r.Post("/{id}/resolve", cfg.ConversationHandler.ResolveEscalation)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/stats", cfg.AnalyticsHandler.Stats)
			r.Get("/answers", cfg.AnalyticsHandler.ListAnswers)
		})

		r.Route("/tenant", func(r chi.Router) {
			r.Get("/", cfg.TenantHandler.Me)
			r.Put("/settings", cfg.TenantHandler.UpdateSettings)
			r.Get("/apikeys", cfg.TenantHandler.ListAPIKeys)
			r.Delete("/apikeys/{id}", cfg.TenantHandler.RevokeAPIKey)
		})
	})

	r.Post("/tenants", cfg.TenantHandler.Create)
	r.Post("/apikeys", cfg.TenantHandler.CreateAPIKey)

	return r
}
