package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Client frame event names on the push channel.
const (
	eventJoinGroup   = "join_group"
	eventLeaveGroup  = "leave_group"
	eventSendMessage = "send_message"
)

// clientFrame is one inbound frame on the push channel.
type clientFrame struct {
	Event       string `json:"event"`
	GroupID     string `json:"groupId"`
	Message     string `json:"message"`
	SenderName  string `json:"senderName"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedMap[origin]
		},
	}
}

// HandleWebSocket handles GET /ws. The same channel carries subscription
// control (join_group/leave_group), asynchronous ingress (send_message) and
// fan-out delivery (new_message). send_message is fire-and-forget: failures
// are logged here and never surface to the sender.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := h.Gateway.Register(conn)
	// Transport closure of any kind ends the read loop; Disconnect is the
	// single cleanup path and drops every subscription.
	defer h.Gateway.Disconnect(connID)

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			h.Log.Debug().Str("conn_id", connID).Err(err).Msg("client disconnected")
			return
		}

		switch frame.Event {
		case eventJoinGroup:
			h.Gateway.Join(connID, frame.GroupID)
		case eventLeaveGroup:
			h.Gateway.Leave(connID, frame.GroupID)
		case eventSendMessage:
			if _, err := h.Pipeline.Submit(r.Context(), frame.GroupID, frame.SenderName, frame.Message, frame.IsAnonymous); err != nil {
				h.Log.Warn().Err(err).Str("conn_id", connID).Str("group_id", frame.GroupID).Msg("send_message dropped")
			}
		default:
			h.Log.Debug().Str("conn_id", connID).Str("event", frame.Event).Msg("unknown event ignored")
		}
	}
}
