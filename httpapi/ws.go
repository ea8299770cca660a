package httpapi

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteWait    = 10 * time.Second
	wsMaxMessage   = 1 << 20
)

// handleWebSocket 每个文本帧是一条 MCP JSON-RPC 消息，按顺序处理并回写响应；通知没有响应。
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var writeMu sync.Mutex
	write := func(msgType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(msgType, data)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	s.log.Info("mcp websocket session opened", zap.String("remote", c.ClientIP()))
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("mcp websocket read failed", zap.Error(err))
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		resp := s.mcp.HandleMessage(ctx, json.RawMessage(message))
		if resp == nil {
			continue
		}
		body, err := json.Marshal(resp)
		if err != nil {
			s.log.Warn("encode mcp response failed", zap.Error(err))
			continue
		}
		if err := write(websocket.TextMessage, body); err != nil {
			s.log.Warn("mcp websocket write failed", zap.Error(err))
			break
		}
	}
	s.log.Info("mcp websocket session closed", zap.String("remote", c.ClientIP()))
}
