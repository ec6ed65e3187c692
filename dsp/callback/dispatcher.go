// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package callback sends protocol messages to the peer, and maps incoming messages back to the
// records they are about.
package callback

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gammazero/deque"
	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	initialQueueSize = 100
	tickInterval     = 10 * time.Millisecond
	defaultWorkers   = 2

	defaultMaxAttempts  = 50
	defaultMaxElapsed   = 1 * time.Minute
	defaultInitialRetry = 500 * time.Millisecond
	multiplier          = 1.5
	randomizationFactor = 0.5
)

var dispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dsp_dispatch_total",
		Help: "Tracks outbound protocol messages by message type and outcome.",
	}, []string{"message_type", "outcome"},
)

// Notifier accepts outbound messages for delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification is a single outbound protocol message.
type Notification struct {
	// MessageType is the @type of the body, used for logs and metrics.
	MessageType string
	Method      string
	URL         *url.URL
	Body        []byte
	// Details end up in the audit events about this delivery.
	Details map[string]any
	// OnResponse is called with the response body after a successful delivery.
	OnResponse func(ctx context.Context, body []byte) error
}

type operation struct {
	ctx         context.Context
	submitted   time.Time
	nextAttempt time.Time
	attempts    int
	backoff     *backoff.ExponentialBackOff
	n           Notification
}

// Dispatcher delivers notifications in the background, retrying failed deliveries with an
// exponential backoff. A delivery that still fails when the backoff gives up is logged and
// audited, nothing is rolled back.
type Dispatcher struct {
	ctx     context.Context
	c       chan operation
	r       shared.Requester
	sink    audit.Sink
	q       *deque.Deque[operation]
	pending atomic.Int64

	workers      int
	initialRetry time.Duration
	maxElapsed   time.Duration
	maxAttempts  uint64

	WaitGroup sync.WaitGroup
	sync.Mutex
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) { d.workers = n }
}

// WithBackoff overrides the first retry interval, the total time spent retrying, and the
// maximum amount of attempts.
func WithBackoff(initial, maxElapsed time.Duration, maxAttempts uint64) Option {
	return func(d *Dispatcher) {
		d.initialRetry = initial
		d.maxElapsed = maxElapsed
		d.maxAttempts = maxAttempts
	}
}

func NewDispatcher(ctx context.Context, r shared.Requester, sink audit.Sink, opts ...Option) *Dispatcher {
	q := &deque.Deque[operation]{}
	q.Grow(initialQueueSize)
	d := &Dispatcher{
		ctx:          ctx,
		c:            make(chan operation),
		r:            r,
		sink:         sink,
		q:            q,
		workers:      defaultWorkers,
		initialRetry: defaultInitialRetry,
		maxElapsed:   defaultMaxElapsed,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run starts the manager and the workers, they stop when the context is cancelled.
func (d *Dispatcher) Run() {
	d.WaitGroup.Add(1 + d.workers)
	go d.manager()
	for range d.workers {
		go d.worker()
	}
}

// Notify queues a notification. The context is only used for its values, cancelling it does
// not cancel the delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if n.Method == "" {
		n.Method = http.MethodPost
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialRetry
	b.Multiplier = multiplier
	b.RandomizationFactor = randomizationFactor
	b.MaxElapsedTime = d.maxElapsed
	b.Reset()

	now := time.Now()
	d.pending.Add(1)
	d.Lock()
	defer d.Unlock()
	d.q.PushBack(operation{
		ctx:         context.WithoutCancel(ctx),
		submitted:   now,
		nextAttempt: now,
		backoff:     b,
		n:           n,
	})
}

// Pending returns the amount of notifications that are queued or being delivered.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

func (d *Dispatcher) manager() {
	defer d.WaitGroup.Done()
	// A ticker keeps the manager from spinning on a queue of operations that aren't due yet.
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ops := d.due()
			for i, op := range ops {
				select {
				case d.c <- op:
				case <-d.ctx.Done():
					d.requeue(ops[i:])
					return
				}
			}
		case <-d.ctx.Done():
			return
		}
	}
}

// due pops all operations whose next attempt has passed.
func (d *Dispatcher) due() []operation {
	d.Lock()
	defer d.Unlock()
	now := time.Now()
	var ops []operation
	for range d.q.Len() {
		op := d.q.PopFront()
		if now.Before(op.nextAttempt) {
			d.q.PushBack(op)
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

// requeue puts operations that were due but not handed out back at the front of the queue,
// so they stay pending.
func (d *Dispatcher) requeue(ops []operation) {
	d.Lock()
	defer d.Unlock()
	for i := len(ops) - 1; i >= 0; i-- {
		d.q.PushFront(ops[i])
	}
}

func (d *Dispatcher) worker() {
	defer d.WaitGroup.Done()
	dLogger := logging.Extract(d.ctx)
	dLogger.Info("Starting dispatch worker")
	for {
		select {
		case op := <-d.c:
			d.deliver(op)
		case <-d.ctx.Done():
			dLogger.Info("Context done called, exiting.")
			return
		}
	}
}

func (d *Dispatcher) deliver(op operation) {
	op.attempts++
	ctx, logger := logging.InjectLabels(op.ctx,
		"message_type", op.n.MessageType,
		"method", op.n.Method,
		"url", op.n.URL.String(),
		"attempt", op.attempts,
	)
	logger.Info("Delivering message")

	body, err := d.r.SendHTTPRequest(ctx, op.n.Method, op.n.URL, op.n.Body)
	if err != nil {
		d.handleError(ctx, op, err)
		return
	}
	defer d.pending.Add(-1)
	dispatchTotal.WithLabelValues(op.n.MessageType, "delivered").Inc()
	d.sink.Publish(ctx, audit.NewEvent(audit.EventDispatchSucceeded, "Message delivered", d.details(op)))
	if op.n.OnResponse != nil {
		if err := op.n.OnResponse(ctx, body); err != nil {
			logger.Error("Could not process response", "err", err)
		}
	}
}

func (d *Dispatcher) handleError(ctx context.Context, op operation, err error) {
	logger := logging.Extract(ctx).With("err", err, "submitted", op.submitted)
	next := backoff.Stop
	if !permanent(err) && uint64(op.attempts) < d.maxAttempts {
		next = op.backoff.NextBackOff()
	}
	if next == backoff.Stop {
		d.giveUp(ctx, op, err)
		return
	}
	op.nextAttempt = time.Now().Add(next)
	logger.Warn("Delivery failed, requeuing", "next_attempt", op.nextAttempt)
	dispatchTotal.WithLabelValues(op.n.MessageType, "retried").Inc()
	d.Lock()
	defer d.Unlock()
	d.q.PushBack(op)
}

func (d *Dispatcher) giveUp(ctx context.Context, op operation, err error) {
	defer d.pending.Add(-1)
	logging.Extract(ctx).Error("Giving up on delivery", "err", err, "submitted", op.submitted)
	dispatchTotal.WithLabelValues(op.n.MessageType, "failed").Inc()
	details := d.details(op)
	details["error"] = err.Error()
	d.sink.Publish(ctx, audit.NewEvent(audit.EventDispatchFailed, "Message could not be delivered", details))
}

func (d *Dispatcher) details(op operation) map[string]any {
	details := make(map[string]any, len(op.n.Details)+3)
	maps.Copy(details, op.n.Details)
	details["message_type"] = op.n.MessageType
	details["url"] = op.n.URL.String()
	details["attempts"] = op.attempts
	return details
}

// permanent returns true for errors a retry can't fix, the peer rejecting the message.
func permanent(err error) bool {
	var se *shared.StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}
