// Package gateway exposes the messaging core over one WebSocket
// endpoint for live events and a small REST surface for history and
// summary access.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"chatlink/auth"
	"chatlink/contract"
	"chatlink/routing"
)

// Handler wires HTTP routes to the messaging core.
type Handler struct {
	log          *slog.Logger
	registry     contract.IPresenceRegistry
	router       *routing.Router
	receipts     *routing.ReadReceipts
	broker       contract.ITypingBroker
	index        contract.IConversationIndex
	store        contract.IMessageLog
	upgrader     websocket.Upgrader
	validate     *validator.Validate
	bufferSize   int
	historyLimit int
}

func NewHandler(log *slog.Logger, registry contract.IPresenceRegistry,
	router *routing.Router, receipts *routing.ReadReceipts,
	broker contract.ITypingBroker, index contract.IConversationIndex,
	store contract.IMessageLog, bufferSize, historyLimit int) *Handler {
	return &Handler{
		log:      log,
		registry: registry,
		router:   router,
		receipts: receipts,
		broker:   broker,
		index:    index,
		store:    store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate:     validator.New(),
		bufferSize:   bufferSize,
		historyLimit: historyLimit,
	}
}

// NewRouter builds the HTTP surface. Every route sits behind the
// identity middleware; nothing reaches the core unauthenticated.
func NewRouter(h *Handler, tokens auth.Tokens) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(protected chi.Router) {
		protected.Use(auth.Middleware(tokens))

		protected.Get("/ws", h.HandleWS)

		protected.Route("/api", func(api chi.Router) {
			api.Get("/conversations", h.handleConversations)
			api.Get("/messages/{counterpart}", h.handleHistory)
			api.Put("/messages/{counterpart}/read", h.handleMarkRead)
		})
	})

	return r
}
