package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatlink/auth"
	"chatlink/domain"
	"chatlink/domain/event"
	"chatlink/errors"
)

// wsConnection bridges one WebSocket to the core: it is the Connection
// registered in the presence registry, and its buffered outbound
// channel decouples core pushes from the socket so a slow peer never
// blocks a send path.
type wsConnection struct {
	id       string
	identity domain.Identity
	socket   *websocket.Conn
	outbound chan event.DomainEvent
	log      *slog.Logger
}

func newWSConnection(identity domain.Identity, socket *websocket.Conn,
	bufferSize int, log *slog.Logger) *wsConnection {
	return &wsConnection{
		id:       uuid.NewString(),
		identity: identity,
		socket:   socket,
		outbound: make(chan event.DomainEvent, bufferSize),
		log:      log,
	}
}

func (c *wsConnection) ID() string { return c.id }

// Consume is called by the core (router, broker, broadcast worker).
// It only hands the event to the write pump; if the buffer is full the
// event is dropped, live push is best-effort by contract.
func (c *wsConnection) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case c.outbound <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.log.Warn("Connection buffer full, dropping event",
			"identity", string(c.identity), "kind", e.Kind())
		return nil
	}
}

// writePump drains the outbound channel onto the socket. It owns all
// writes; gorilla sockets allow a single concurrent writer.
func (c *wsConnection) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.socket.WriteJSON(encodeEvent(evt)); err != nil {
				c.log.Debug("Write pump stopping", "identity", string(c.identity), "error", err)
				return
			}
		}
	}
}

// HandleWS upgrades an authenticated request to a live connection and
// services its inbound events until disconnect.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, errors.ErrNotAuthenticated.Error(), http.StatusUnauthorized)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "identity", string(identity), "error", err)
		return
	}
	defer socket.Close()

	conn := newWSConnection(identity, socket, h.bufferSize, h.log)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go conn.writePump(ctx)

	h.registry.Register(identity, conn)
	defer h.registry.Unregister(identity, conn)
	h.log.Info("Identity connected", "identity", string(identity), "connection", conn.ID())

	// Current online set, sent once on connect.
	_ = conn.Consume(ctx, event.PresenceSnapshot{Online: h.registry.Online()})

	h.readLoop(ctx, conn)
	h.log.Info("Identity disconnected", "identity", string(identity), "connection", conn.ID())
}

// readLoop processes one inbound event at a time for this connection.
// Validation and persistence failures are reported to this connection
// only and leave it open; only a transport error ends the loop.
func (h *Handler) readLoop(ctx context.Context, conn *wsConnection) {
	for {
		_, raw, err := conn.socket.ReadMessage()
		if err != nil {
			return
		}

		var frame Inbound
		if err := json.Unmarshal(raw, &frame); err != nil || h.validate.Struct(frame) != nil {
			h.reject(ctx, conn, errors.ErrMalformedEvent.Error())
			continue
		}

		switch frame.Type {
		case "send-message":
			h.onSendMessage(ctx, conn, frame.Payload)
		case "typing-start":
			if counterpart, ok := h.counterpart(ctx, conn, frame.Payload); ok {
				h.broker.Start(conn.identity, counterpart)
			}
		case "typing-stop":
			if counterpart, ok := h.counterpart(ctx, conn, frame.Payload); ok {
				h.broker.Stop(conn.identity, counterpart)
			}
		case "mark-read":
			if counterpart, ok := h.counterpart(ctx, conn, frame.Payload); ok {
				if _, err := h.receipts.MarkRead(ctx, conn.identity, counterpart); err != nil {
					h.reject(ctx, conn, err.Error())
				}
			}
		default:
			h.reject(ctx, conn, errors.ErrMalformedEvent.Error())
		}
	}
}

func (h *Handler) onSendMessage(ctx context.Context, conn *wsConnection, raw json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || h.validate.Struct(payload) != nil {
		h.reject(ctx, conn, errors.ErrMalformedEvent.Error())
		return
	}

	_, err := h.router.Send(ctx, conn, conn.identity,
		domain.Identity(payload.Receiver), payload.Body, payload.Timestamp)
	if err != nil {
		h.reject(ctx, conn, err.Error())
	}
}

func (h *Handler) counterpart(ctx context.Context, conn *wsConnection, raw json.RawMessage) (domain.Identity, bool) {
	var payload CounterpartPayload
	if err := json.Unmarshal(raw, &payload); err != nil || h.validate.Struct(payload) != nil {
		h.reject(ctx, conn, errors.ErrMissingCounterpart.Error())
		return "", false
	}
	return domain.Identity(payload.Counterpart), true
}

func (h *Handler) reject(ctx context.Context, conn *wsConnection, reason string) {
	if err := conn.Consume(ctx, event.SendFailed{To: conn.identity, Reason: reason}); err != nil {
		h.log.Debug("Failure report dropped", "identity", string(conn.identity))
	}
}
