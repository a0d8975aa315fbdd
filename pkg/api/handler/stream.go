package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gm-agent-org/gm-gate/pkg/api/dto"
	"github.com/gm-agent-org/gm-gate/pkg/notify"
)

// Stream is the notification source behind the SSE endpoint.
// *notify.Inbox implements it.
type Stream interface {
	Since(seq uint64) []notify.Notification
	Changed() <-chan struct{}
}

// KeepAlive is the interval between SSE comment lines on an idle stream.
var KeepAlive = 15 * time.Second

// StreamHandler serves notifications as Server-Sent Events.
type StreamHandler struct {
	stream Stream
}

func NewStreamHandler(stream Stream) *StreamHandler {
	return &StreamHandler{stream: stream}
}

// SSE godoc
// @Summary      Notification stream
// @Description  Server-Sent Events stream of pending requests and their resolutions
// @Tags         permission
// @Produce      text/event-stream
// @Param        after query int false "Sequence cursor"
// @Failure      400 {object} dto.ErrorResponse
// @Router       /api/v1/notification/stream [get]
func (h *StreamHandler) SSE(c *gin.Context) {
	var last uint64
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid cursor"})
			return
		}
		last = n
	}

	// Set SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	_, _ = c.Writer.Write([]byte("event: connected\ndata: {}\n\n"))
	c.Writer.Flush()

	for {
		// Take the signal channel before reading so nothing published in
		// between is missed.
		changed := h.stream.Changed()
		items := h.stream.Since(last)
		for _, n := range items {
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", n.Seq, n.Kind, data)
			last = n.Seq
		}
		if len(items) > 0 {
			c.Writer.Flush()
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-ticker.C:
			_, _ = c.Writer.Write([]byte(": keep-alive\n\n"))
			c.Writer.Flush()
		}
	}
}
