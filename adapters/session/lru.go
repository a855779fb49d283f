// Package session keeps live conversations in a bounded, expiring directory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = 30 * time.Minute

	// DefaultCreateTimeout bounds a conversation factory once it no longer
	// follows the caller that started it.
	DefaultCreateTimeout = time.Minute
)

// Directory is an LRU of conversations with a sliding idle TTL. Every hit
// pushes the expiry forward; the least recently used entry is dropped once
// the capacity is reached.
type Directory struct {
	lru           *expirable.LRU[string, *domain.Conversation]
	ttl           time.Duration
	createTimeout time.Duration
	group         singleflight.Group
	teardown      domain.TeardownFunc

	mu        sync.Mutex
	deadlines map[string]time.Time
	removing  map[string]struct{}
	now       func() time.Time
}

var _ domain.SessionDirectory = (*Directory)(nil)

// NewDirectory builds a directory. teardown may be nil. It runs while the
// directory holds its internal lock and must not call back into it.
func NewDirectory(capacity int, ttl time.Duration, teardown domain.TeardownFunc) *Directory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d := &Directory{
		ttl:           ttl,
		createTimeout: DefaultCreateTimeout,
		teardown:      teardown,
		deadlines:     make(map[string]time.Time),
		removing:      make(map[string]struct{}),
		now:           time.Now,
	}
	d.lru = expirable.NewLRU[string, *domain.Conversation](capacity, d.onEvict, ttl)
	return d
}

// GetOrCreate returns the live conversation for sessionID or builds one.
// Concurrent first messages share a single factory call. The factory runs
// detached from the caller that started it, so a caller giving up does not
// fail the others waiting on the same session.
func (d *Directory) GetOrCreate(ctx context.Context, sessionID string, create domain.ConversationFactory) (*domain.Conversation, error) {
	if conv, ok := d.touch(sessionID); ok {
		return conv, nil
	}

	ch := d.group.DoChan(sessionID, func() (any, error) {
		if conv, ok := d.touch(sessionID); ok {
			return conv, nil
		}
		createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.createTimeout)
		defer cancel()

		conv, err := create(createCtx)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, errors.New("conversation factory returned nil")
		}
		conv.ID = sessionID
		d.store(sessionID, conv)
		log.WithCtx(ctx).Info("session created", zap.Int("sessions", d.lru.Len()))
		return conv, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Conversation), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// touch returns a live conversation and slides its expiry. An entry torn
// down between the lookup and the re-insert is dropped again and reported as
// a miss.
func (d *Directory) touch(sessionID string) (*domain.Conversation, bool) {
	conv, ok := d.lru.Get(sessionID)
	if !ok || conv.Ended() {
		return nil, false
	}
	d.store(sessionID, conv)
	if conv.Ended() {
		if cur, ok := d.lru.Peek(sessionID); ok && cur == conv {
			d.lru.Remove(sessionID)
		}
		return nil, false
	}
	return conv, true
}

func (d *Directory) store(sessionID string, conv *domain.Conversation) {
	d.mu.Lock()
	d.deadlines[sessionID] = d.now().Add(d.ttl)
	d.mu.Unlock()
	d.lru.Add(sessionID, conv)
}

// Remove drops the conversation and runs the teardown.
func (d *Directory) Remove(sessionID string) bool {
	d.mu.Lock()
	d.removing[sessionID] = struct{}{}
	d.mu.Unlock()

	ok := d.lru.Remove(sessionID)

	d.mu.Lock()
	delete(d.removing, sessionID)
	d.mu.Unlock()
	return ok
}

func (d *Directory) Len() int {
	return d.lru.Len()
}

// Close tears every conversation down.
func (d *Directory) Close() {
	for _, id := range d.lru.Keys() {
		d.Remove(id)
	}
}

func (d *Directory) onEvict(sessionID string, conv *domain.Conversation) {
	if !conv.End() {
		d.mu.Lock()
		delete(d.deadlines, sessionID)
		d.mu.Unlock()
		return
	}
	d.mu.Lock()
	reason := domain.TeardownEvicted
	if _, ok := d.removing[sessionID]; ok {
		reason = domain.TeardownRemoved
	} else if deadline, ok := d.deadlines[sessionID]; ok && !d.now().Before(deadline) {
		reason = domain.TeardownExpired
	}
	delete(d.deadlines, sessionID)
	d.mu.Unlock()

	log.With(zap.String("session_id", sessionID), zap.String("reason", string(reason))).
		Info("session torn down")
	if d.teardown != nil {
		d.teardown(conv, reason)
	}
}
