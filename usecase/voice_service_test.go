package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/domain/domaintest"
)

func TestVoiceTalk(t *testing.T) {
	f := newChatFixture(t, echoChat)
	userID := newTestUser(t, f.store, "ana")
	transcriber := &domaintest.Transcriber{Transcript: " quiero reservar "}
	voice := NewVoiceService(f.svc, transcriber, &domaintest.Synthesizer{Audio: []byte("mp3")})

	reply, err := voice.Talk(context.Background(), VoiceRequest{
		Audio: []byte{1, 2, 3}, ContentType: "audio/wav", SessionID: "s1", UserID: &userID,
	})
	require.NoError(t, err)
	assert.Equal(t, "quiero reservar", reply.Transcript)
	assert.Equal(t, "ok", reply.Response)
	assert.Equal(t, []byte("mp3"), reply.Audio)
}

func TestVoiceTalkSynthesisFailureKeepsText(t *testing.T) {
	f := newChatFixture(t, echoChat)
	userID := newTestUser(t, f.store, "ana")
	voice := NewVoiceService(f.svc, &domaintest.Transcriber{Transcript: "hola"}, &domaintest.Synthesizer{Err: errors.New("quota")})

	reply, err := voice.Talk(context.Background(), VoiceRequest{Audio: []byte{1}, SessionID: "s1", UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Response)
	assert.Empty(t, reply.Audio)
}

func TestVoiceTalkRejections(t *testing.T) {
	f := newChatFixture(t, echoChat)
	userID := newTestUser(t, f.store, "ana")

	transcriber := &domaintest.Transcriber{Transcript: "hola"}
	voice := NewVoiceService(f.svc, transcriber, &domaintest.Synthesizer{})
	_, err := voice.Talk(context.Background(), VoiceRequest{Audio: []byte{1}, SessionID: "s1"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, transcriber.Calls)

	_, err = voice.Talk(context.Background(), VoiceRequest{SessionID: "s1", UserID: &userID})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	silent := NewVoiceService(f.svc, &domaintest.Transcriber{Transcript: "  "}, &domaintest.Synthesizer{})
	_, err = silent.Talk(context.Background(), VoiceRequest{Audio: []byte{1}, SessionID: "s1", UserID: &userID})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	broken := NewVoiceService(f.svc, &domaintest.Transcriber{Err: errors.New("unavailable")}, &domaintest.Synthesizer{})
	_, err = broken.Talk(context.Background(), VoiceRequest{Audio: []byte{1}, SessionID: "s1", UserID: &userID})
	assert.ErrorIs(t, err, ErrSpeechUnavailable)
}

func TestVoiceTalkUnsupportedAudio(t *testing.T) {
	f := newChatFixture(t, echoChat)
	userID := newTestUser(t, f.store, "ana")
	transcriber := &domaintest.Transcriber{Err: fmt.Errorf("%w: %q", domain.ErrUnsupportedAudio, "video/mp4")}
	voice := NewVoiceService(f.svc, transcriber, &domaintest.Synthesizer{})

	_, err := voice.Talk(context.Background(), VoiceRequest{
		Audio:       []byte{1},
		ContentType: "video/mp4",
		SessionID:   "s1",
		UserID:      &userID,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.NotErrorIs(t, err, ErrSpeechUnavailable)
	assert.Equal(t, 0, f.llm.StartCount())
}
