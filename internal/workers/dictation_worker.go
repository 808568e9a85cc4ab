package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/providers/stt"
	"github.com/relevohq/relevo/internal/services"
)

// DictationWorkerPool drains staged audio chunks off the dictation stream,
// transcribes them, and records the result on the chunk buffer. Viewers
// listening on the session channels see per-chunk status and final text.
type DictationWorkerPool struct {
	Redis      *redis.Client
	Dictation  services.DictationService
	STT        stt.Provider
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *DictationWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Dictation == nil || p.STT == nil {
		return errors.New("DictationWorkerPool missing dependency: Redis/Dictation/STT must be set")
	}
	if p.Stream == "" {
		p.Stream = "dictation:stream"
	}
	if p.Group == "" {
		p.Group = "dictation-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *DictationWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func normalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "", "en", "en-US":
		return "en-US"
	default:
		return v
	}
}

func (p *DictationWorkerPool) publishStatus(ctx context.Context, ch, status, message string, chunkIndex int64) {
	payload, _ := json.Marshal(map[string]any{
		"type":        "status",
		"status":      status,
		"message":     message,
		"chunk_index": chunkIndex,
	})
	_ = p.Redis.Publish(ctx, ch, string(payload)).Err()
}

func (p *DictationWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}
	getInt := func(k string) int64 {
		n, _ := strconv.ParseInt(getStr(k), 10, 64)
		return n
	}

	sessionID := getStr("session_id")
	chunkIndex := getInt("chunk_index")
	if sessionID == "" || chunkIndex <= 0 {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    msg.ID,
		"session_id":  sessionID,
		"chunk_index": chunkIndex,
	})

	respCh := "session:" + sessionID + ":stt"
	statusCh := "session:" + sessionID + ":status"

	// Fetch audio
	var audioBytes []byte
	if b64 := getStr("audio_base64"); b64 != "" {
		raw := b64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			log.WithError(err).Warn("base64 decode failed")
			p.publishStatus(ctx, statusCh, "failed", "invalid audio_base64", chunkIndex)
			return
		}
		audioBytes = decoded
	} else if url := getStr("audio_url"); url != "" {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.WithError(err).Warn("audio_url fetch failed")
			p.publishStatus(ctx, statusCh, "failed", "failed to fetch audio_url", chunkIndex)
			return
		}
		defer resp.Body.Close()

		const maxBytes = 10 << 20
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
		if len(body) == 0 {
			p.publishStatus(ctx, statusCh, "failed", "empty audio", chunkIndex)
			return
		}
		audioBytes = body
	} else {
		return
	}

	_ = p.Dictation.MarkSTT(ctx, sessionID, chunkIndex, "", 0, "processing")
	p.publishStatus(ctx, statusCh, "processing", "stt processing", chunkIndex)

	results, err := p.STT.Transcribe(ctx, stt.Request{
		Audio:    audioBytes,
		MimeType: getStr("mime_type"),
		StartMs:  getInt("start_ms"),
		EndMs:    getInt("end_ms"),
		Lang:     normalizeLanguage(getStr("lang")),
	})
	if err != nil {
		log.WithError(err).Error("stt failed")
		_ = p.Dictation.MarkSTT(ctx, sessionID, chunkIndex, "", 0, "failed")
		p.publishStatus(ctx, statusCh, "failed", "stt failed", chunkIndex)
		return
	}

	text, conf := flatten(results)
	if err := p.Dictation.MarkSTT(ctx, sessionID, chunkIndex, text, conf, "done"); err != nil {
		log.WithError(err).Error("failed to record stt result")
		p.publishStatus(ctx, statusCh, "failed", "failed to record stt result", chunkIndex)
		return
	}

	sttPayload, _ := json.Marshal(map[string]any{
		"type":        "stt_result",
		"chunk_index": chunkIndex,
		"text":        text,
		"confidence":  conf,
		"is_final":    true,
	})
	_ = p.Redis.Publish(ctx, respCh, string(sttPayload)).Err()
	p.publishStatus(ctx, statusCh, "done", "chunk transcribed", chunkIndex)
}

// flatten joins multi-result recognition output into the single text and
// mean confidence the chunk buffer stores.
func flatten(results []models.TimedText) (string, float64) {
	if len(results) == 0 {
		return "", 0
	}
	parts := make([]string, 0, len(results))
	var sum float64
	for _, r := range results {
		parts = append(parts, r.Text)
		sum += r.Confidence
	}
	return strings.Join(parts, " "), sum / float64(len(results))
}
