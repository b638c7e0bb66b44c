package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studynet-go/internal/model"
	"studynet-go/internal/service"
	"studynet-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 流式问答连接。
type ChatHandler struct {
	ragService service.RAGService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(ragService service.RAGService) *ChatHandler {
	return &ChatHandler{ragService: ragService}
}

// wsChunkWriter 把生成的文本块写成 WebSocket 文本消息。
type wsChunkWriter struct {
	conn *websocket.Conn
}

func (w *wsChunkWriter) WriteChunk(chunk []byte) error {
	msg, _ := json.Marshal(gin.H{"type": "chunk", "content": string(chunk)})
	return w.conn.WriteMessage(websocket.TextMessage, msg)
}

func writeEvent(conn *websocket.Conn, event string, fields gin.H) {
	payload := gin.H{"type": event}
	for k, v := range fields {
		payload[k] = v
	}
	msg, _ := json.Marshal(payload)
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Warnf("[ChatHandler] 写入 WebSocket 消息失败: %v", err)
	}
}

// Handle 处理一个传入的 WebSocket 连接。每条文本消息是一个问题,
// 回答以 chunk 消息流式返回, 以 done 消息收尾。
func (h *ChatHandler) Handle(c *gin.Context) {
	sessionID := c.Param("session_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[ChatHandler] WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	log.Infof("[ChatHandler] WebSocket 连接已建立, session: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[ChatHandler] 读取 WebSocket 消息失败: %v", err)
			break
		}

		query := strings.TrimSpace(string(message))
		if query == "" {
			writeEvent(conn, "error", gin.H{"code": "invalid_query", "message": "empty query"})
			continue
		}

		req := model.QueryRequest{Query: query, SessionID: sessionID}
		writer := &wsChunkWriter{conn: conn}
		if err := h.ragService.StreamQuery(c.Request.Context(), req, writer); err != nil {
			log.Errorf("[ChatHandler] 流式问答失败: %v", err)
			writeEvent(conn, "error", gin.H{"code": "generation_error", "message": "failed to generate answer"})
			continue
		}
		writeEvent(conn, "done", gin.H{"session_id": sessionID})
	}
}
