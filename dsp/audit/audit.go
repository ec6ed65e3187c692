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

// Package audit publishes audit events for every state change the engines make.
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

type EventType string

const (
	EventTransition         EventType = "transition"
	EventTransitionRejected EventType = "transition_rejected"
	EventDispatchFailed     EventType = "dispatch_failed"
	EventDispatchSucceeded  EventType = "dispatch_succeeded"
)

const (
	publishTimeout     = 10 * time.Second
	defaultMaxInFlight = 64
)

// Event is a single audit record.
type Event struct {
	Type    EventType      `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
	Time    time.Time      `json:"time"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(t EventType, msg string, details map[string]any) Event {
	return Event{
		Type:    t,
		Message: msg,
		Details: details,
		Time:    time.Now().UTC(),
	}
}

// Sink receives audit events. Publish must not block the caller on I/O, and failures are
// the sink's own to log.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// LogSink writes events to the logger found in the context.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, ev Event) {
	args := []any{"audit_type", string(ev.Type)}
	for k, v := range ev.Details {
		args = append(args, k, v)
	}
	logging.Extract(ctx).Info(ev.Message, args...)
}

// HTTPSink POSTs events as JSON to an event sink in the background. At most maxInFlight
// publications run at once, events beyond that are dropped and counted.
type HTTPSink struct {
	url       *url.URL
	requester shared.Requester
	slots     chan struct{}
	dropped   atomic.Uint64
	wg        sync.WaitGroup
}

type HTTPSinkOption func(*HTTPSink)

// WithMaxInFlight sets how many events may be in flight to the event sink.
func WithMaxInFlight(n int) HTTPSinkOption {
	return func(s *HTTPSink) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

func NewHTTPSink(u *url.URL, requester shared.Requester, opts ...HTTPSinkOption) *HTTPSink {
	s := &HTTPSink{
		url:       u,
		requester: requester,
		slots:     make(chan struct{}, defaultMaxInFlight),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *HTTPSink) Publish(ctx context.Context, ev Event) {
	logger := logging.Extract(ctx)
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Could not encode audit event", "err", err)
		return
	}
	select {
	case s.slots <- struct{}{}:
	default:
		s.dropped.Add(1)
		logger.Warn("Audit sink saturated, dropping event", "audit_type", string(ev.Type))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		defer cancel()
		if _, err := s.requester.SendHTTPRequest(ctx, http.MethodPost, s.url, body); err != nil {
			logger.Warn("Could not publish audit event", "audit_type", string(ev.Type), "err", err)
		}
	}()
}

// Dropped returns how many events were dropped because the sink was saturated.
func (s *HTTPSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Wait blocks until all started publications have finished.
func (s *HTTPSink) Wait() {
	s.wg.Wait()
}

// Multi publishes to every sink in order.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}
