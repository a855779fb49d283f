package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralrestaurante/amigo-central/domain"
)

type teardownRecorder struct {
	mu      sync.Mutex
	reasons map[string]domain.TeardownReason
	counts  map[string]int
}

func newRecorder() *teardownRecorder {
	return &teardownRecorder{reasons: map[string]domain.TeardownReason{}, counts: map[string]int{}}
}

func (r *teardownRecorder) record(conv *domain.Conversation, reason domain.TeardownReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons[conv.ID] = reason
	r.counts[conv.ID]++
}

func (r *teardownRecorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

func (r *teardownRecorder) reason(id string) (domain.TeardownReason, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.reasons[id]
	return v, ok
}

func factory(userID int64) domain.ConversationFactory {
	return func(context.Context) (*domain.Conversation, error) {
		return &domain.Conversation{UserID: userID, CreatedAt: time.Now()}, nil
	}
}

func TestGetOrCreateReturnsSameConversation(t *testing.T) {
	d := NewDirectory(10, time.Minute, nil)
	ctx := context.Background()

	a, err := d.GetOrCreate(ctx, "s1", factory(1))
	require.NoError(t, err)
	b, err := d.GetOrCreate(ctx, "s1", factory(2))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "s1", a.ID)
	assert.Equal(t, int64(1), b.UserID)
	assert.Equal(t, 1, d.Len())
}

func TestGetOrCreateConcurrentFirstMessage(t *testing.T) {
	d := NewDirectory(10, time.Minute, nil)
	var calls atomic.Int32
	create := func(context.Context) (*domain.Conversation, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &domain.Conversation{UserID: 1}, nil
	}

	const n = 16
	got := make([]*domain.Conversation, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := d.GetOrCreate(context.Background(), "shared", create)
			assert.NoError(t, err)
			got[i] = conv
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, conv := range got {
		assert.Same(t, got[0], conv)
	}
}

func TestGetOrCreateSurvivesCancelledFirstCaller(t *testing.T) {
	d := NewDirectory(10, time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	create := func(ctx context.Context) (*domain.Conversation, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return &domain.Conversation{UserID: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := d.GetOrCreate(firstCtx, "s1", create)
		firstErr <- err
	}()
	<-started

	type result struct {
		conv *domain.Conversation
		err  error
	}
	second := make(chan result, 1)
	go func() {
		conv, err := d.GetOrCreate(context.Background(), "s1", create)
		second <- result{conv, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, int64(1), res.conv.UserID)
	assert.Equal(t, int32(1), calls.Load())

	again, err := d.GetOrCreate(context.Background(), "s1", factory(2))
	require.NoError(t, err)
	assert.Same(t, res.conv, again)
}

func TestTornDownConversationIsNotRevived(t *testing.T) {
	rec := newRecorder()
	d := NewDirectory(10, time.Minute, rec.record)
	ctx := context.Background()

	old, err := d.GetOrCreate(ctx, "s1", factory(1))
	require.NoError(t, err)
	require.True(t, d.Remove("s1"))
	assert.True(t, old.Ended())

	// a hit racing the teardown put the dead entry back
	d.lru.Add("s1", old)

	fresh, err := d.GetOrCreate(ctx, "s1", factory(2))
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, int64(2), fresh.UserID)
	assert.False(t, fresh.Ended())
	assert.Equal(t, 1, rec.count("s1"))

	require.True(t, d.Remove("s1"))
	assert.Equal(t, 2, rec.count("s1"))
	assert.True(t, fresh.Ended())
}

func TestTearDownRunsOnce(t *testing.T) {
	rec := newRecorder()
	d := NewDirectory(10, time.Minute, rec.record)

	conv, err := d.GetOrCreate(context.Background(), "s1", factory(1))
	require.NoError(t, err)
	require.True(t, d.Remove("s1"))

	d.lru.Add("s1", conv)
	require.True(t, d.Remove("s1"))

	assert.Equal(t, 1, rec.count("s1"))
	assert.Equal(t, 0, d.Len())
}

func TestGetOrCreateFactoryError(t *testing.T) {
	d := NewDirectory(10, time.Minute, nil)
	boom := errors.New("boom")

	_, err := d.GetOrCreate(context.Background(), "s1", func(context.Context) (*domain.Conversation, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, d.Len())

	_, err = d.GetOrCreate(context.Background(), "s1", factory(1))
	assert.NoError(t, err)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	rec := newRecorder()
	d := NewDirectory(2, time.Minute, rec.record)
	ctx := context.Background()

	_, _ = d.GetOrCreate(ctx, "a", factory(1))
	_, _ = d.GetOrCreate(ctx, "b", factory(1))
	_, _ = d.GetOrCreate(ctx, "a", factory(1))
	_, _ = d.GetOrCreate(ctx, "c", factory(1))

	assert.Equal(t, 2, d.Len())
	reason, ok := rec.reason("b")
	require.True(t, ok)
	assert.Equal(t, domain.TeardownEvicted, reason)
	_, aGone := rec.reason("a")
	assert.False(t, aGone)
}

func TestIdleConversationExpires(t *testing.T) {
	rec := newRecorder()
	d := NewDirectory(10, 50*time.Millisecond, rec.record)

	_, err := d.GetOrCreate(context.Background(), "idle", factory(1))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		reason, ok := rec.reason("idle")
		return ok && reason == domain.TeardownExpired
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, d.Len())
}

func TestHitSlidesExpiry(t *testing.T) {
	d := NewDirectory(10, 150*time.Millisecond, nil)
	ctx := context.Background()

	first, err := d.GetOrCreate(ctx, "busy", factory(1))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		time.Sleep(60 * time.Millisecond)
		conv, err := d.GetOrCreate(ctx, "busy", factory(1))
		require.NoError(t, err)
		require.Same(t, first, conv)
	}
}

func TestRemoveRunsTeardown(t *testing.T) {
	rec := newRecorder()
	d := NewDirectory(10, time.Minute, rec.record)

	_, _ = d.GetOrCreate(context.Background(), "s1", factory(1))
	assert.True(t, d.Remove("s1"))
	assert.False(t, d.Remove("s1"))

	reason, ok := rec.reason("s1")
	require.True(t, ok)
	assert.Equal(t, domain.TeardownRemoved, reason)
}

func TestCloseTearsDownAll(t *testing.T) {
	rec := newRecorder()
	d := NewDirectory(10, time.Minute, rec.record)
	_, _ = d.GetOrCreate(context.Background(), "a", factory(1))
	_, _ = d.GetOrCreate(context.Background(), "b", factory(1))

	d.Close()
	assert.Equal(t, 0, d.Len())
	_, ok := rec.reason("b")
	assert.True(t, ok)
}
