package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webtestflow/recorder/internal/channel"
	"webtestflow/recorder/internal/models"
)

const (
	writeWait      = 10 * time.Second
	stepFeedBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChannelRequest is a popup message sent over the websocket.
type ChannelRequest struct {
	ID   string              `json:"id"`
	Type channel.MessageType `json:"type"`
}

type ChannelResponse struct {
	ID        string       `json:"id"`
	Phase     models.Phase `json:"phase,omitempty"`
	IsPaused  bool         `json:"isPaused"`
	ReviewURL string       `json:"reviewUrl,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// StepPush announces a newly recorded step.
type StepPush struct {
	Type string      `json:"type"`
	Step models.Step `json:"step"`
}

// popupMessages are the types an operator may send; capture traffic never arrives here.
var popupMessages = map[channel.MessageType]bool{
	channel.TypeStart:       true,
	channel.TypeStop:        true,
	channel.TypePauseToggle: true,
	channel.TypeStatus:      true,
}

// ChannelWebSocket carries popup requests to the coordinator and pushes every recorded
// step back to the client.
func (h *Handlers) ChannelWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	// The server's request deadlines outlive the upgrade.
	_ = conn.SetReadDeadline(time.Time{})

	feed, unsubscribe := h.coord.Hub().Subscribe(stepFeedBuffer)
	defer unsubscribe()

	replies := make(chan ChannelResponse, 8)
	g, ctx := errgroup.WithContext(c.Request.Context())

	g.Go(func() error {
		defer conn.Close()
		for {
			var msg interface{}
			select {
			case <-ctx.Done():
				return nil
			case step, ok := <-feed:
				if !ok {
					return nil
				}
				msg = StepPush{Type: "step", Step: step}
			case reply := <-replies:
				msg = reply
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for {
			var req ChannelRequest
			if err := conn.ReadJSON(&req); err != nil {
				return err
			}
			reply := h.answer(ctx, req)
			select {
			case replies <- reply:
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.logger.Debug("Channel closed", zap.Error(err))
	}
}

func (h *Handlers) answer(ctx context.Context, req ChannelRequest) ChannelResponse {
	if !popupMessages[req.Type] {
		return ChannelResponse{ID: req.ID, Error: "unsupported message type " + string(req.Type)}
	}
	resp, err := h.coord.Request(ctx, channel.Message{Type: req.Type})
	if err != nil {
		return ChannelResponse{ID: req.ID, Error: err.Error()}
	}
	return ChannelResponse{ID: req.ID, Phase: resp.Phase, IsPaused: resp.IsPaused, ReviewURL: resp.ReviewURL}
}
