package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/relevohq/relevo/internal/models"
	mongorepo "github.com/relevohq/relevo/internal/repositories/mongo"
	"github.com/relevohq/relevo/internal/storage"
	"github.com/relevohq/relevo/internal/utils"
)

// DictationService buffers staged audio chunks and their transcription state.
// Chunks are TTL-bounded in the backing collection; completed chunk texts are
// assembled in chunk order into the timed-text form the segmenter normalizes.
type DictationService interface {
	InsertChunk(ctx context.Context, in InsertChunkInput) (*models.DictationChunk, error)
	MarkSTT(ctx context.Context, sessionID string, chunkIndex int64, text string, confidence float64, status string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.DictationChunk, error)
	TimedTexts(ctx context.Context, sessionID string) ([]models.TimedText, error)
	DropSession(ctx context.Context, sessionID string) error
}

type InsertChunkInput struct {
	SessionID   string
	ChunkIndex  int64
	AudioURL    *string
	AudioBase64 *string
	MimeType    string
	StartMs     int64
	EndMs       int64
	Lang        string
}

// ObjectStore is the offload target for oversized inline audio. Both halves
// are satisfied by the GCS client.
type ObjectStore interface {
	storage.Uploader
	storage.Signer
}

type dictationService struct {
	chunks    mongorepo.ChunkRepository
	ttl       time.Duration
	objects   ObjectStore // nil keeps everything inline
	inlineMax int64
}

// NewDictationService builds the chunk buffer service. A nil objects store
// keeps all audio inline; with one set, inline chunks above inlineMax decoded
// bytes are uploaded and replaced by a signed fetch URL.
func NewDictationService(chunks mongorepo.ChunkRepository, ttl time.Duration, objects ObjectStore, inlineMax int64) DictationService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if inlineMax <= 0 {
		inlineMax = 262_144
	}
	return &dictationService{chunks: chunks, ttl: ttl, objects: objects, inlineMax: inlineMax}
}

func (s *dictationService) InsertChunk(ctx context.Context, in InsertChunkInput) (*models.DictationChunk, error) {
	const op = "DictationService.InsertChunk"

	if in.SessionID == "" || in.ChunkIndex <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required and chunk_index must be > 0", nil)
	}
	if in.AudioURL == nil && in.AudioBase64 == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio_url or audio_base64 is required", nil)
	}

	audioURL, audioBase64, err := s.offload(ctx, in)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &models.DictationChunk{
		SessionID:   in.SessionID,
		ChunkIndex:  in.ChunkIndex,
		AudioURL:    audioURL,
		AudioBase64: audioBase64,
		MimeType:    in.MimeType,
		StartMs:     in.StartMs,
		EndMs:       in.EndMs,
		Lang:        in.Lang,

		STTStatus: "pending",

		Timestamp: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.chunks.InsertChunk(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert dictation chunk", err)
	}
	return doc, nil
}

// offload moves oversized inline audio into object storage so neither the
// chunk buffer nor the Redis stream carries megabyte payloads. The signed URL
// lives exactly as long as the chunk does.
func (s *dictationService) offload(ctx context.Context, in InsertChunkInput) (*string, *string, error) {
	const op = "DictationService.InsertChunk"

	if s.objects == nil || in.AudioBase64 == nil {
		return in.AudioURL, in.AudioBase64, nil
	}

	raw := *in.AudioBase64
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "invalid audio_base64", err)
	}
	if int64(len(decoded)) <= s.inlineMax {
		return in.AudioURL, in.AudioBase64, nil
	}

	object := fmt.Sprintf("chunks/%s/%d", in.SessionID, in.ChunkIndex)
	contentType := in.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.objects.Upload(ctx, object, contentType, bytes.NewReader(decoded)); err != nil {
		return nil, nil, utils.E(utils.CodeUnavailable, op, "audio offload failed", err)
	}
	url, err := s.objects.SignedGetURL(ctx, object, s.ttl)
	if err != nil {
		return nil, nil, utils.E(utils.CodeUnavailable, op, "failed to sign audio url", err)
	}
	return &url, nil, nil
}

func (s *dictationService) MarkSTT(ctx context.Context, sessionID string, chunkIndex int64, text string, confidence float64, status string) error {
	const op = "DictationService.MarkSTT"

	if sessionID == "" || chunkIndex <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, chunk_index (>0), and status are required", nil)
	}
	if err := s.chunks.UpdateSTT(ctx, sessionID, chunkIndex, text, confidence, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update stt fields", err)
	}
	return nil
}

func (s *dictationService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.DictationChunk, error) {
	const op = "DictationService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.chunks.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list dictation chunks", err)
	}
	return out, nil
}

func (s *dictationService) TimedTexts(ctx context.Context, sessionID string) ([]models.TimedText, error) {
	chunks, err := s.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]models.TimedText, 0, len(chunks))
	for _, c := range chunks {
		if c.STTStatus != "done" || c.Text == "" {
			continue
		}
		out = append(out, models.TimedText{
			Text:       c.Text,
			StartMs:    c.StartMs,
			EndMs:      c.EndMs,
			Confidence: c.Confidence,
		})
	}
	return out, nil
}

func (s *dictationService) DropSession(ctx context.Context, sessionID string) error {
	const op = "DictationService.DropSession"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if _, err := s.chunks.DeleteBySession(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to drop session chunks", err)
	}
	return nil
}
