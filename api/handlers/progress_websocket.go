package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/app"
	"github.com/yourusername/mediahub-go/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressFeed hands out transfer progress subscriptions
type ProgressFeed interface {
	Subscribe() *app.Subscription
	Unsubscribe(sub *app.Subscription)
}

// ProgressMessage is one frame of the progress stream
type ProgressMessage struct {
	Type string               `json:"type"`
	Task *domain.DownloadTask `json:"task"`
}

// ProgressWebSocketHandler streams transfer progress over WebSocket
type ProgressWebSocketHandler struct {
	feed      ProgressFeed
	transfers TransferService
	logger    *zap.Logger
}

// NewProgressWebSocketHandler creates a new progress stream handler
func NewProgressWebSocketHandler(feed ProgressFeed, transfers TransferService, log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		feed:      feed,
		transfers: transfers,
		logger:    log,
	}
}

// HandleWebSocket handles GET /api/v1/downloads/ws
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.feed.Subscribe()
	defer h.feed.Unsubscribe(sub)

	h.logger.Info("Progress client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	for _, task := range h.transfers.ListAll() {
		if err := writeFrame(conn, ProgressMessage{Type: "snapshot", Task: task}); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case task, ok := <-sub.Updates():
			if !ok {
				// Dropped for falling behind
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := writeFrame(conn, ProgressMessage{Type: "update", Task: task}); err != nil {
				h.logger.Debug("Failed to send progress update", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg ProgressMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
