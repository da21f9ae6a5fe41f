package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famfin/internal/model"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	results map[string]error
}

func (f *fakeSender) Send(ctx context.Context, sub *model.PushSubscription, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.results[sub.Endpoint]; err != nil {
		return err
	}
	f.sent = append(f.sent, sub.Endpoint)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSubs struct {
	mu      sync.Mutex
	byUser  map[int64][]model.PushSubscription
	deleted []string
}

func (f *fakeSubs) ListByUser(userID int64) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PushSubscription(nil), f.byUser[userID]...), nil
}

func (f *fakeSubs) DeleteByEndpoint(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func TestSendToUserDeletesExpired(t *testing.T) {
	sender := &fakeSender{results: map[string]error{
		"https://push.example/gone":   ErrExpired,
		"https://push.example/broken": errors.New("boom"),
	}}
	subs := &fakeSubs{byUser: map[int64][]model.PushSubscription{
		9: {
			{UserID: 9, Endpoint: "https://push.example/ok"},
			{UserID: 9, Endpoint: "https://push.example/gone"},
			{UserID: 9, Endpoint: "https://push.example/broken"},
		},
	}}

	d := NewDispatcher(sender, subs, slog.Default())
	n := d.SendToUser(context.Background(), 9, Payload{Title: "Budget Shared"})

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"https://push.example/ok"}, sender.sent)
	assert.Equal(t, []string{"https://push.example/gone"}, subs.deleted)
}

func TestSendToUserNoSubscriptions(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, &fakeSubs{}, nil)
	assert.Equal(t, 0, d.SendToUser(context.Background(), 1, Payload{}))
}

func TestDispatcherWorker(t *testing.T) {
	sender := &fakeSender{}
	subs := &fakeSubs{byUser: map[int64][]model.PushSubscription{
		9: {{UserID: 9, Endpoint: "https://push.example/a"}},
	}}

	d := NewDispatcher(sender, subs, nil)
	d.Start(context.Background())
	defer d.Stop()

	require.True(t, d.Enqueue(9, Payload{Title: "x"}))
	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEnqueueFullQueue(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, &fakeSubs{}, nil)
	// Not started, so nothing drains the queue.
	for i := 0; i < queueSize; i++ {
		require.True(t, d.Enqueue(1, Payload{}))
	}
	assert.False(t, d.Enqueue(1, Payload{}))
}

func TestNilDispatcherEnqueue(t *testing.T) {
	var d *Dispatcher
	assert.False(t, d.Enqueue(1, Payload{}))
}

func TestStopWithoutStart(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, &fakeSubs{}, nil)
	d.Stop()
}
