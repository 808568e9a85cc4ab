package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimedText is the shape the ASR provider boundary returns for one
// recognized span. The segmenter accepts a list of these as an input
// equivalent to raw manual text.
type TimedText struct {
	Text       string  `json:"text"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence"`
}

// DictationChunk is one staged audio chunk at the dictation (ASR) boundary.
// Chunks carry their transcription state and expire via a Mongo TTL index on
// ExpiresAt; they never outlive the session buffer window.
type DictationChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID  string             `bson:"session_id" json:"session_id"`
	ChunkIndex int64              `bson:"chunk_index" json:"chunk_index"`

	AudioURL    *string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	AudioBase64 *string `bson:"audio_base64,omitempty" json:"audio_base64,omitempty"`
	MimeType    string  `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	Lang        string  `bson:"lang,omitempty" json:"lang,omitempty"`
	StartMs     int64   `bson:"start_ms" json:"start_ms"`
	EndMs       int64   `bson:"end_ms" json:"end_ms"`

	Text       string  `bson:"text,omitempty" json:"text,omitempty"`
	Confidence float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
	STTStatus  string  `bson:"stt_status" json:"stt_status"` // pending|processing|done|failed

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
