package usecase

import "errors"

var (
	// ErrUnauthenticated is returned when the caller supplied no user id.
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrInvalidRequest  = errors.New("invalid request")
	// ErrSessionOwnership is returned when a session id is already bound to
	// another user.
	ErrSessionOwnership = errors.New("session belongs to another user")
	ErrUnknownTool      = errors.New("unknown tool")
	// ErrToolLoopExhausted is returned when the model keeps calling tools past
	// the iteration cap.
	ErrToolLoopExhausted = errors.New("tool loop exceeded the maximum number of iterations")
	ErrModelUnavailable  = errors.New("language model unavailable")
	ErrSpeechUnavailable = errors.New("speech service unavailable")
)
