package domain

import (
	"context"
	"errors"
)

// ErrUnsupportedAudio is returned by a Transcriber for audio it cannot decode.
var ErrUnsupportedAudio = errors.New("unsupported audio format")

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Synthesizer turns a reply into playable audio (MP3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
