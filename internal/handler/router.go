package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/botbridge/chatbridge/internal/handler/webhook"
	middlewarePkg "github.com/botbridge/chatbridge/internal/middleware"
	"github.com/botbridge/chatbridge/pkg/utils"
)

// NewRouter wires HTTP routes to the bridge.
func NewRouter(processor webhook.Processor) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	webhookHandler := webhook.New(processor)
	webhookHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
