package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
	"chat-backend/internal/receipts"
	"chat-backend/internal/router"
)

// Handler owns the websocket endpoint: it authenticates the handshake,
// upgrades the connection and pumps inbound events into the routing core.
type Handler struct {
	router      *router.Router
	receipts    *receipts.Reconciler
	viewers     presence.ViewerTracker
	authService *auth.Service
}

// NewHandler constructs a Handler.
func NewHandler(rt *router.Router, rc *receipts.Reconciler, viewers presence.ViewerTracker, authService *auth.Service) *Handler {
	return &Handler{router: rt, receipts: rc, viewers: viewers, authService: authService}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts the event loop.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(conn, userID)
	go client.writePump()

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	connectedAt := time.Now()

	observability.IncWSActive()
	observability.IncWSEvent("in", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.connections", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       "ws_connect",
				"conn_id":     client.connID,
				"duration_ms": 0,
				"reason":      "",
			},
			"identity": map[string]interface{}{
				"user_id":   userID,
				"device_id": observability.DeviceIDFromRequest(c.Request),
				"ip":        observability.IPFromRequest(c.Request),
			},
		},
	}, observability.BuildHeaders(requestID, traceID))

	go h.readLoop(client, requestID, traceID, connectedAt)
}

func (h *Handler) readLoop(client *Client, requestID, traceID string, connectedAt time.Time) {
	ctx := context.Background()
	var closeReason string

	defer func() {
		h.router.Disconnect(ctx, client)
		client.Close()
		observability.DecWSActive()
		observability.IncWSEvent("in", "ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.connections", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload: map[string]interface{}{
				"ws": map[string]interface{}{
					"event":       "ws_disconnect",
					"conn_id":     client.connID,
					"duration_ms": time.Since(connectedAt).Milliseconds(),
					"reason":      closeReason,
				},
				"identity": map[string]interface{}{
					"user_id": client.userID,
				},
			},
		}, observability.BuildHeaders(requestID, traceID))
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("in", "ws_error")
			}
			return
		}

		var evt models.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			log.Printf("malformed frame from user %d: %v", client.userID, err)
			continue
		}
		h.dispatch(ctx, client, evt)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, evt models.Event) {
	observability.IncWSEvent("in", evt.Event)

	switch evt.Event {
	case models.EventRegisterUser:
		h.router.Connect(ctx, client.userID, client)

	case models.EventJoinGroupChat:
		var ref models.GroupRef
		if !decode(client, evt, &ref) {
			return
		}
		h.viewers.Join(ref.GroupID, client.userID)

	case models.EventLeaveGroupChat:
		var ref models.GroupRef
		if !decode(client, evt, &ref) {
			return
		}
		h.viewers.Leave(ref.GroupID, client.userID)

	case models.EventSendMessage:
		var req models.DirectSend
		if !decode(client, evt, &req) {
			return
		}
		if _, err := h.router.SendDirect(ctx, client.userID, req.ReceiverID, req.Text, req.Image); err != nil {
			log.Printf("sendMessage from user %d: %v", client.userID, err)
		}

	case models.EventSendGroupMessage:
		var req models.GroupSend
		if !decode(client, evt, &req) {
			return
		}
		if _, err := h.router.SendGroup(ctx, client.userID, req.GroupID, req.Text, req.Image); err != nil {
			log.Printf("sendGroupMessage from user %d: %v", client.userID, err)
		}

	case models.EventMarkRead:
		var req models.MarkRead
		if !decode(client, evt, &req) {
			return
		}
		if err := h.receipts.MarkDirectRead(ctx, req.SenderID, client.userID); err != nil {
			log.Printf("markMessagesAsRead from user %d: %v", client.userID, err)
		}

	case models.EventMarkGroupRead:
		var ref models.GroupRef
		if !decode(client, evt, &ref) {
			return
		}
		if err := h.receipts.MarkGroupRead(ctx, ref.GroupID, client.userID); err != nil {
			log.Printf("markGroupMessagesAsRead from user %d: %v", client.userID, err)
		}

	case models.EventTyping:
		var req models.TypingRef
		if !decode(client, evt, &req) {
			return
		}
		h.receipts.Typing(client.userID, req.ReceiverID)

	case models.EventStopTyping:
		var req models.TypingRef
		if !decode(client, evt, &req) {
			return
		}
		h.receipts.StopTyping(client.userID, req.ReceiverID)

	default:
		log.Printf("unknown event %q from user %d", evt.Event, client.userID)
	}
}

func decode(client *Client, evt models.Event, dst any) bool {
	if err := json.Unmarshal(evt.Data, dst); err != nil {
		log.Printf("bad %s payload from user %d: %v", evt.Event, client.userID, err)
		return false
	}
	return true
}

func (h *Handler) validateToken(header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.authService.ValidateToken(parts[1])
	}
	return 0, fmt.Errorf("invalid token")
}
