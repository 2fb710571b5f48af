// Package subscription forwards an ordered stream of values (and errors) from a producer
// goroutine, such as the ledger window fetcher, to a consumer channel.
package subscription

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
)

// SubscriptionBufferSize is how many values the producer can send ahead of the consumer.
var SubscriptionBufferSize = 8

// Subscription is the producer side of a stream.
type Subscription[T any] struct {
	out  chan<- T
	in   chan T
	errc chan error

	completeOnce sync.Once
	stopOnce     sync.Once
	stop         chan struct{} // closed to stop forwarding
	stopped      chan struct{} // closed when the forwarding loop has returned
}

func NewSubscription[T any](out chan<- T) *Subscription[T] {
	s := &Subscription[T]{
		out:     out,
		in:      make(chan T, SubscriptionBufferSize),
		errc:    make(chan error, SubscriptionBufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *Subscription[T]) forward() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stop:
			return
		case value, ok := <-s.in:
			if !ok {
				return
			}
			select {
			case s.out <- value:
			case <-s.stop:
				return
			}
		}
	}
}

// Send queues value for delivery. It fails with errs.Closed once the subscription is closed.
func (s *Subscription[T]) Send(ctx context.Context, value T) error {
	return send(ctx, s, s.in, value)
}

// SendError queues err on the error channel.
func (s *Subscription[T]) SendError(ctx context.Context, err error) error {
	return send(ctx, s, s.errc, err)
}

func send[T, V any](ctx context.Context, s *Subscription[T], ch chan<- V, v V) error {
	if s.IsClosed() {
		return errors.Wrap(errs.Closed, "subscription is closed")
	}
	select {
	case ch <- v:
		return nil
	case <-s.stopped:
		return errors.Wrap(errs.Closed, "subscription is closed")
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// Complete ends the stream after the values already sent are delivered. Send must not be called afterwards.
func (s *Subscription[T]) Complete() {
	s.completeOnce.Do(func() { close(s.in) })
}

// Unsubscribe stops forwarding right away, undelivered values are dropped.
func (s *Subscription[T]) Unsubscribe() {
	_ = s.UnsubscribeWithContext(context.Background())
}

// UnsubscribeWithContext is Unsubscribe bounded by ctx while waiting for the forwarding loop to return.
func (s *Subscription[T]) UnsubscribeWithContext(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func (s *Subscription[T]) Err() <-chan error { return s.errc }

// Done is closed when no more values will be delivered.
func (s *Subscription[T]) Done() <-chan struct{} { return s.stopped }

func (s *Subscription[T]) IsClosed() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

// Client returns the consumer view of the subscription.
func (s *Subscription[T]) Client() *ClientSubscription[T] {
	return &ClientSubscription[T]{s: s}
}

// ClientSubscription is the consumer side of a stream: it can observe and cancel, not send.
type ClientSubscription[T any] struct {
	s *Subscription[T]
}

func (c *ClientSubscription[T]) Unsubscribe() { c.s.Unsubscribe() }

func (c *ClientSubscription[T]) UnsubscribeWithContext(ctx context.Context) error {
	return c.s.UnsubscribeWithContext(ctx)
}

func (c *ClientSubscription[T]) Err() <-chan error { return c.s.Err() }

func (c *ClientSubscription[T]) Done() <-chan struct{} { return c.s.Done() }

func (c *ClientSubscription[T]) IsClosed() bool { return c.s.IsClosed() }
