package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/famfin/internal/model"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the subset of store.PushStore the dispatcher needs.
type SubscriptionStore interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type job struct {
	userID  int64
	payload Payload
}

const queueSize = 64

// Dispatcher sends push notifications off the request path. Jobs are queued
// with Enqueue and drained by a single worker between Start and Stop.
type Dispatcher struct {
	mu     sync.RWMutex
	sender Sender
	subs   SubscriptionStore
	logger *slog.Logger
	queue  chan job
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a push dispatcher.
func NewDispatcher(sender Sender, subs SubscriptionStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		subs:   subs,
		logger: logger.With("component", "push"),
		queue:  make(chan job, queueSize),
	}
}

// Start begins the worker loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-d.queue:
				d.SendToUser(ctx, j.userID, j.payload)
			}
		}
	}()
}

// Stop gracefully stops the worker. Queued jobs that have not started are dropped.
func (d *Dispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	done := d.done
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Enqueue schedules a push to every subscription of userID. It never blocks;
// it returns false when the queue is full or the dispatcher is nil.
func (d *Dispatcher) Enqueue(userID int64, payload Payload) bool {
	if d == nil {
		return false
	}
	select {
	case d.queue <- job{userID: userID, payload: payload}:
		return true
	default:
		d.logger.Warn("push queue full, dropping notification", "user_id", userID)
		return false
	}
}

// SendToUser pushes payload to each of userID's subscriptions and returns
// how many accepted it. Expired subscriptions are deleted.
func (d *Dispatcher) SendToUser(ctx context.Context, userID int64, payload Payload) int {
	subs, err := d.subs.ListByUser(userID)
	if err != nil {
		d.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return 0
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		if err := d.sender.Send(ctx, sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := d.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					d.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			d.logger.Warn("send push", "user_id", userID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
