package speech

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralrestaurante/amigo-central/domain"
)

func TestRecognitionConfig(t *testing.T) {
	cases := map[string]struct {
		encoding   speechpb.RecognitionConfig_AudioEncoding
		sampleRate int32
	}{
		"audio/wav":                {speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0},
		"audio/flac":               {speechpb.RecognitionConfig_FLAC, 0},
		"audio/ogg; codecs=opus":   {speechpb.RecognitionConfig_OGG_OPUS, 48000},
		"audio/webm":               {speechpb.RecognitionConfig_WEBM_OPUS, 48000},
		"application/octet-stream": {speechpb.RecognitionConfig_LINEAR16, 16000},
		"":                         {speechpb.RecognitionConfig_LINEAR16, 16000},
	}
	for contentType, want := range cases {
		config, err := recognitionConfig(contentType, "es-US")
		require.NoError(t, err, contentType)
		assert.Equal(t, want.encoding, config.Encoding, contentType)
		assert.Equal(t, want.sampleRate, config.SampleRateHertz, contentType)
		assert.Equal(t, "es-US", config.LanguageCode)
	}

	_, err := recognitionConfig("video/mp4", "es-US")
	assert.ErrorIs(t, err, domain.ErrUnsupportedAudio)

	_, err = recognitionConfig("audio/", "es-US")
	assert.ErrorIs(t, err, domain.ErrUnsupportedAudio)
}

func TestJoinTranscripts(t *testing.T) {
	got := joinTranscripts([]*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "Quiero reservar "}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "para cuatro"}, {Transcript: "para cuarto"}}},
	})
	assert.Equal(t, "Quiero reservar para cuatro", got)
}
