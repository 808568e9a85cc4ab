package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/relevohq/relevo/internal/services"
	"github.com/relevohq/relevo/internal/utils"
)

// WSHandler carries the dictation ingest path (client audio chunks in) and
// the live fan-out path (transcription results and privacy state changes
// out) over one socket per session.
type WSHandler struct {
	dictation services.DictationService
	redis     *redis.Client
	stream    string
	upgrader  websocket.Upgrader
}

func NewWSHandler(dictation services.DictationService, rdb *redis.Client, stream string) *WSHandler {
	if stream == "" {
		stream = "dictation:stream"
	}
	return &WSHandler{
		dictation: dictation,
		redis:     rdb,
		stream:    stream,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type        string `json:"type"`
	ChunkIndex  int64  `json:"chunk_index"`
	AudioBase64 string `json:"audio_base64"`
	AudioURL    string `json:"audio_url"`
	MimeType    string `json:"mime_type"`
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
	Lang        string `json:"lang"`
	IsFinal     bool   `json:"is_final"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (h *WSHandler) HandoffWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.HandoffWS", "missing session_id", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe Redis -> WS
	sttCh := "session:" + sessionID + ":stt"
	statusCh := "session:" + sessionID + ":status"
	privacyCh := "session:" + sessionID + ":privacy"

	pubsub := h.redis.Subscribe(ctx, sttCh, statusCh, privacyCh)
	defer pubsub.Close()

	// reader: WS -> chunk buffer + Redis stream
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}

			switch msg.Type {
			case "audio_chunk":
				h.ingestChunk(ctx, wc, sessionID, msg)

			case "end_dictation":
				_ = h.redis.Publish(ctx, statusCh, `{"type":"status","status":"ended","message":"dictation ended"}`).Err()
				return

			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			// forward as-is (payload expected JSON string)
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}

func (h *WSHandler) ingestChunk(ctx context.Context, wc *wsConn, sessionID string, msg wsClientMsg) {
	if msg.ChunkIndex <= 0 {
		_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"chunk_index must be > 0"}`))
		return
	}

	var audioBase64Ptr, audioURLPtr *string
	if msg.AudioBase64 != "" {
		audioBase64Ptr = &msg.AudioBase64
	}
	if msg.AudioURL != "" {
		audioURLPtr = &msg.AudioURL
	}
	if audioBase64Ptr == nil && audioURLPtr == nil {
		_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"audio_base64 or audio_url required"}`))
		return
	}

	doc, err := h.dictation.InsertChunk(ctx, services.InsertChunkInput{
		SessionID:   sessionID,
		ChunkIndex:  msg.ChunkIndex,
		AudioURL:    audioURLPtr,
		AudioBase64: audioBase64Ptr,
		MimeType:    msg.MimeType,
		StartMs:     msg.StartMs,
		EndMs:       msg.EndMs,
		Lang:        msg.Lang,
	})
	if err != nil {
		_ = wc.writeText([]byte(`{"type":"error","code":"INTERNAL","message":"failed to stage chunk"}`))
		return
	}

	fields := map[string]any{
		"session_id":  sessionID,
		"chunk_index": strconv.FormatInt(msg.ChunkIndex, 10),
		"mime_type":   msg.MimeType,
		"start_ms":    strconv.FormatInt(msg.StartMs, 10),
		"end_ms":      strconv.FormatInt(msg.EndMs, 10),
		"lang":        msg.Lang,
		"is_final":    strconv.FormatBool(msg.IsFinal),
		"ts_unix":     strconv.FormatInt(time.Now().UTC().Unix(), 10),
	}
	// forward the stored form: oversized inline audio may have been offloaded
	// to object storage and replaced by a signed URL
	if doc.AudioBase64 != nil {
		fields["audio_base64"] = *doc.AudioBase64
	}
	if doc.AudioURL != nil {
		fields["audio_url"] = *doc.AudioURL
	}

	if err := h.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: h.stream,
		Values: fields,
	}).Err(); err != nil {
		_ = wc.writeText([]byte(`{"type":"error","code":"UNAVAILABLE","message":"failed to enqueue audio"}`))
		return
	}

	statusCh := "session:" + sessionID + ":status"
	_ = h.redis.Publish(ctx, statusCh, `{"type":"status","status":"processing","message":"audio chunk queued","chunk_index":`+strconv.FormatInt(msg.ChunkIndex, 10)+`}`).Err()
}
