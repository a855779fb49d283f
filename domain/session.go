package domain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Conversation is one live chat, bound at creation to a user, a system
// instruction and the tool schema. It only lives in process memory.
type Conversation struct {
	ID         string
	UserID     int64
	Chat       ChatSession
	PromptHash string
	CreatedAt  time.Time

	// turns on the same conversation must not interleave provider history
	mu    sync.Mutex
	ended atomic.Bool
}

func (c *Conversation) Lock()   { c.mu.Lock() }
func (c *Conversation) Unlock() { c.mu.Unlock() }

// End marks the conversation as torn down. Only the first call returns true.
func (c *Conversation) End() bool { return c.ended.CompareAndSwap(false, true) }

func (c *Conversation) Ended() bool { return c.ended.Load() }

// ConversationFactory builds the conversation for a session id seen for the
// first time.
type ConversationFactory func(ctx context.Context) (*Conversation, error)

// SessionDirectory maps opaque session ids to live conversations.
type SessionDirectory interface {
	// GetOrCreate returns the conversation for sessionID, calling create at
	// most once per id even under concurrent first messages.
	GetOrCreate(ctx context.Context, sessionID string, create ConversationFactory) (*Conversation, error)
	Remove(sessionID string) bool
	Len() int
}

type TeardownReason string

const (
	TeardownExpired TeardownReason = "expired"
	TeardownEvicted TeardownReason = "evicted"
	TeardownRemoved TeardownReason = "removed"
)

// TeardownFunc runs when a conversation leaves the directory.
type TeardownFunc func(conv *Conversation, reason TeardownReason)
