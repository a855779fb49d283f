package speech

import (
	"context"
	"fmt"
	"mime"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const DefaultLanguage = "es-US"

type GoogleSpeech struct {
	client   *speech.Client
	language string
}

var _ domain.Transcriber = (*GoogleSpeech)(nil)

// NewGoogleSpeech uses Application Default Credentials.
func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Google speech client: %w", err)
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &GoogleSpeech{client: client, language: language}, nil
}

// Transcribe runs a synchronous recognition over a short clip and joins the
// best alternative of every result.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	config, err := recognitionConfig(contentType, g.language)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognizing speech: %w", err)
	}

	transcript := joinTranscripts(resp.GetResults())
	log.WithCtx(ctx).Debug("speech recognized",
		zap.Int("audio_bytes", len(audio)),
		zap.Int("results", len(resp.GetResults())))
	return transcript, nil
}

func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}

func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// recognitionConfig maps a request content type to an encoding. WAV and FLAC
// carry their own headers; raw PCM is assumed to be 16 kHz mono.
func recognitionConfig(contentType, language string) (*speechpb.RecognitionConfig, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && contentType != "" {
		return nil, fmt.Errorf("%w: invalid content type %q: %w", domain.ErrUnsupportedAudio, contentType, err)
	}

	config := &speechpb.RecognitionConfig{
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		config.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	case "audio/flac", "audio/x-flac":
		config.Encoding = speechpb.RecognitionConfig_FLAC
	case "audio/ogg", "audio/opus":
		config.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		config.SampleRateHertz = 48000
	case "audio/webm":
		config.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		config.SampleRateHertz = 48000
	case "audio/l16", "audio/pcm", "application/octet-stream", "":
		config.Encoding = speechpb.RecognitionConfig_LINEAR16
		config.SampleRateHertz = 16000
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAudio, mediaType)
	}
	return config, nil
}
