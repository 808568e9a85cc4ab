// Package stt is the ASR provider boundary. Real speech recognition is an
// external, swappable service; the rest of the system only ever sees timed
// text spans, which the segmenter normalizes into the same RawSegment form
// that typed transcripts take.
package stt

import (
	"context"

	"github.com/relevohq/relevo/internal/models"
)

// Request describes one staged audio chunk.
type Request struct {
	Audio    []byte
	MimeType string
	StartMs  int64
	EndMs    int64
	Lang     string
}

type Provider interface {
	// Transcribe returns the recognized spans for one chunk, offset so that
	// StartMs/EndMs are relative to the session, not the chunk.
	Transcribe(ctx context.Context, req Request) ([]models.TimedText, error)
	Close() error
}
