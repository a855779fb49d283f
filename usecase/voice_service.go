package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

type VoiceRequest struct {
	Audio       []byte
	ContentType string
	SessionID   string
	UserID      *int64
}

type VoiceReply struct {
	SessionID  string
	Transcript string
	Response   string
	// Audio is the spoken reply; empty when synthesis failed.
	Audio []byte
}

// VoiceService wraps ChatService with speech recognition and synthesis.
type VoiceService struct {
	chat        *ChatService
	transcriber domain.Transcriber
	synthesizer domain.Synthesizer
}

func NewVoiceService(chat *ChatService, transcriber domain.Transcriber, synthesizer domain.Synthesizer) *VoiceService {
	return &VoiceService{chat: chat, transcriber: transcriber, synthesizer: synthesizer}
}

func (v *VoiceService) Talk(ctx context.Context, req VoiceRequest) (*VoiceReply, error) {
	if req.UserID == nil || *req.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("%w: audio body is empty", ErrInvalidRequest)
	}

	transcript, err := v.transcriber.Transcribe(ctx, req.Audio, req.ContentType)
	if errors.Is(err, domain.ErrUnsupportedAudio) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpeechUnavailable, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("%w: no speech was recognized", ErrInvalidRequest)
	}

	reply, err := v.chat.Chat(ctx, ChatRequest{
		Message:   transcript,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, err
	}

	out := &VoiceReply{
		SessionID:  reply.SessionID,
		Transcript: transcript,
		Response:   reply.Response,
	}
	audio, err := v.synthesizer.Synthesize(ctx, reply.Response)
	if err != nil {
		log.WithCtx(ctx).Warn("speech synthesis failed, replying with text only", zap.Error(err))
		return out, nil
	}
	out.Audio = audio
	return out, nil
}
