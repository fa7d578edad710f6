package websocket

import (
	"net/http"
	"time"

	"dockmate/internal/api/http/logger"
	"dockmate/internal/progress"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

type Subscriber interface {
	Subscribe(sessionId string) (<-chan progress.Event, func())
}

func NewRequestHandler(subscriber Subscriber) *Handler {
	return &Handler{
		Subscriber: subscriber,
		Upgrader:   websocket.Upgrader{},
	}
}

type Handler struct {
	Subscriber Subscriber
	Upgrader   websocket.Upgrader
}

// ServeHTTP handles GET /v1/progress/{sessionId} (WebSocket). Every progress
// line published for the session is sent as one JSON text message until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "sessionId")
	if sessionId == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	logger.SetTarget(r.Context(), logger.Target{SessionId: sessionId})

	// a nil CheckOrigin keeps gorilla's same-origin check
	ws, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	events, cancel := h.Subscriber.Subscribe(sessionId)
	defer cancel()

	// the read side only watches for the client closing the stream
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.closeStream(ws, "session closed")
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			h.closeStream(ws, "server shutting down")
			return
		}
	}
}

func (h *Handler) closeStream(ws *websocket.Conn, reason string) {
	_ = ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(1*time.Second),
	)
}
