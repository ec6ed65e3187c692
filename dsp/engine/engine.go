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

// Package engine drives contract negotiations and transfer processes. Every transition is
// checked against the state machine and the role rules, saved as a new version of the record,
// audited, and, when the protocol calls for it, sent to the peer.
package engine

import (
	"context"
	"errors"
	"maps"
	"net/url"

	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/callback"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/go-dataspace/dsp-engine/odrl"
)

const maxConflictRetries = 5

// Gate is the policy check a transfer has to pass.
type Gate interface {
	CheckFormat(ctx context.Context, datasetID, format string) error
	CheckAgreement(ctx context.Context, agreement *odrl.Agreement) error
}

type options struct {
	autoProgress  bool
	participantID string
}

type Option func(*options)

// WithAutoProgress makes the engine take the next protocol step itself after each incoming
// message, as long as that step is one this party originates.
func WithAutoProgress(enabled bool) Option {
	return func(o *options) { o.autoProgress = enabled }
}

// WithParticipantID sets the ID this party uses as the assigner of the agreements it creates.
func WithParticipantID(id string) Option {
	return func(o *options) { o.participantID = id }
}

type base struct {
	store    persistence.StorageProvider
	resolver *callback.Resolver
	notifier callback.Notifier
	sink     audit.Sink
	self     *url.URL
	options
}

func newBase(
	store persistence.StorageProvider, notifier callback.Notifier, sink audit.Sink, self *url.URL, opts []Option,
) base {
	b := base{
		store:    store,
		resolver: callback.NewResolver(store),
		notifier: notifier,
		sink:     sink,
		self:     self,
	}
	for _, o := range opts {
		o(&b.options)
	}
	return b
}

// withRetry reruns fn while it fails on a version conflict, fn has to reload what it changes.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if !errors.Is(err, persistence.ErrVersionConflict) || attempt >= maxConflictRetries {
			return v, err
		}
		logging.Extract(ctx).Debug("Version conflict, retrying", "attempt", attempt)
	}
}

func transitionDetails(
	kind string, role, actor constants.DataspaceRole, consumerPID, providerPID, from, to string,
) map[string]any {
	return map[string]any{
		"process":     kind,
		"role":        role.String(),
		"actor":       actor.String(),
		"consumerPid": consumerPID,
		"providerPid": providerPID,
		"from":        from,
		"to":          to,
	}
}

func (b base) auditTransition(ctx context.Context, details map[string]any) {
	b.sink.Publish(ctx, audit.NewEvent(audit.EventTransition, "State transition", details))
}

// rejected publishes the rejection of an InvalidState or InvalidFormat error and returns
// err unchanged. Every such error leaves the engines through here. Other errors pass through
// without an audit event.
func (b base) rejected(ctx context.Context, details map[string]any, err error) error {
	var e *Error
	if !errors.As(err, &e) || (e.kind != KindInvalidState && e.kind != KindInvalidFormat) {
		return err
	}
	logging.Extract(ctx).Info("Rejecting transition", "reason", e.reason)
	d := maps.Clone(details)
	if d == nil {
		d = make(map[string]any, 1)
	}
	d["reason"] = e.reason
	b.sink.Publish(ctx, audit.NewEvent(audit.EventTransitionRejected, "State transition rejected", d))
	return err
}
