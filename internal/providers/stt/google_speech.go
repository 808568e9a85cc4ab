package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/relevohq/relevo/internal/models"
)

type GoogleSpeech struct {
	c *speech.Client

	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		SampleRateHz: 16000,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, req Request) ([]models.TimedText, error) {
	lang := req.Lang
	if lang == "" {
		lang = "en-US"
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingFor(req.MimeType),
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	})
	if err != nil {
		return nil, err
	}

	var out []models.TimedText
	prevEnd := req.StartMs
	for _, r := range resp.Results {
		alt := bestAlternative(r)
		if alt == nil || alt.Transcript == "" {
			continue
		}
		end := req.StartMs + r.ResultEndTime.AsDuration().Milliseconds()
		if end <= prevEnd {
			end = prevEnd + 1
		}
		out = append(out, models.TimedText{
			Text:       alt.Transcript,
			StartMs:    prevEnd,
			EndMs:      end,
			Confidence: float64(alt.Confidence),
		})
		prevEnd = end
	}
	return out, nil
}

func bestAlternative(r *speechpb.SpeechRecognitionResult) *speechpb.SpeechRecognitionAlternative {
	var best *speechpb.SpeechRecognitionAlternative
	for _, alt := range r.Alternatives {
		if best == nil || alt.Confidence > best.Confidence {
			best = alt
		}
	}
	return best
}

func encodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(mimeType, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(mimeType, "flac"):
		return speechpb.RecognitionConfig_FLAC
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
