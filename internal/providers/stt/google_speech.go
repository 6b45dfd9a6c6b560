package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// recognitionConfig leaves the sample rate unset for WAV and FLAC so the
// service reads it from the header. Opus streams from browsers are 48 kHz.
func recognitionConfig(format Format, language string) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	switch format {
	case FormatWAV:
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
	case FormatFLAC:
		cfg.Encoding = speechpb.RecognitionConfig_FLAC
	case FormatOGG:
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case FormatWebM:
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	}
	return cfg
}

// Transcribe joins the best alternative of every result segment; a long answer
// comes back as several consecutive segments. Confidence is the mean.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, format Format, language string) (Transcript, error) {
	if language == "" {
		language = "zh-CN"
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(format, language),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Transcript{}, err
	}

	var parts []string
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		confSum += float64(r.Alternatives[0].Confidence)
	}

	out := Transcript{Text: strings.Join(parts, "")}
	if len(parts) > 0 {
		out.Confidence = confSum / float64(len(parts))
	}
	return out, nil
}
