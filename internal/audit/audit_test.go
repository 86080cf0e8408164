package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verify-gateway/internal/platform/logger"
)

func TestPublisher_EmitFillsDefaults(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, 4)

	sessionID := uuid.New()
	err := p.Emit(context.Background(), Event{
		Action:    ActionSessionCreated,
		SessionID: sessionID,
		AppID:     "app_serenity_dev",
	})
	require.NoError(t, err)

	events, err := p.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_StreamIsBestEffort(t *testing.T) {
	p := NewPublisher(NewInMemoryStore(), 1)

	// Fill the buffer; the second emit must not block even with no consumer.
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Emit(context.Background(), Event{Action: ActionWidgetOpened}))
	}

	// The store kept every copy.
	events, err := p.List(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

type fakeProducer struct {
	mu        sync.Mutex
	published [][]byte
	fail      bool
}

func (f *fakeProducer) Publish(_ context.Context, _ string, _, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return assert.AnError
	}
	f.published = append(f.published, value)
	return nil
}

func TestWorker_PublishesStream(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, 8)
	fp := &fakeProducer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(fp, "verify.audit", p.Events(), logger.New())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Emit(ctx, Event{Action: ActionVerificationSucceeded, SessionID: uuid.New()}))

	require.Eventually(t, func() bool {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		return len(fp.published) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorker_PublishFailureDoesNotStopIt(t *testing.T) {
	p := NewPublisher(NewInMemoryStore(), 8)
	fp := &fakeProducer{fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(fp, "verify.audit", p.Events(), logger.New())
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, p.Emit(ctx, Event{Action: ActionWidgetDismissed}))

	// Recover and keep consuming.
	fp.mu.Lock()
	fp.fail = false
	fp.mu.Unlock()

	require.NoError(t, p.Emit(ctx, Event{Action: ActionWidgetOpened}))
	require.Eventually(t, func() bool {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		return len(fp.published) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
