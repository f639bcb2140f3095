package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 瀏覽器端的單頁客戶端跨埠連入
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribe 即時訂閱：把變更事件推給 websocket 客戶端
// 訂閱句柄在每一條離開路徑都會被 Release (defer)
func (s *Server) subscribe(c *gin.Context) {
	kind := c.Query("kind")
	status := c.Query("status")
	var filter func(pubsub.Event) bool
	if kind != "" || status != "" {
		filter = func(evt pubsub.Event) bool {
			if kind != "" && evt.Kind != kind {
				return false
			}
			if status != "" && evt.Status != status {
				return false
			}
			return true
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已經回應過錯誤
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(filter)
	defer sub.Release()

	// 讀取端只用來偵測客戶端斷線
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
