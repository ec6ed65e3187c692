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

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/callback"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	contractopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/contract"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/google/uuid"
)

// negotiationOriginators lists which role may originate a transition into a state.
// TERMINATED is open to both.
var negotiationOriginators = map[contract.State]constants.DataspaceRole{
	contract.States.REQUESTED: constants.DataspaceConsumer,
	contract.States.OFFERED:   constants.DataspaceProvider,
	contract.States.ACCEPTED:  constants.DataspaceConsumer,
	contract.States.AGREED:    constants.DataspaceProvider,
	contract.States.VERIFIED:  constants.DataspaceConsumer,
	contract.States.FINALIZED: constants.DataspaceProvider,
}

// MayOriginateNegotiation returns whether actor may originate the transition into target.
func MayOriginateNegotiation(actor constants.DataspaceRole, target contract.State) bool {
	if target == contract.States.TERMINATED {
		return true
	}
	r, ok := negotiationOriginators[target]
	return ok && r == actor
}

// NegotiationEngine runs both sides of contract negotiations.
type NegotiationEngine struct {
	base
}

func NewNegotiationEngine(
	store persistence.StorageProvider,
	notifier callback.Notifier,
	sink audit.Sink,
	self *url.URL,
	opts ...Option,
) *NegotiationEngine {
	return &NegotiationEngine{base: newBase(store, notifier, sink, self, opts)}
}

type negotiationStep struct {
	role   constants.DataspaceRole
	actor  constants.DataspaceRole
	target contract.State
	// PIDs as known by the caller, for error messages.
	consumerPID string
	providerPID string
	load        func(ctx context.Context) (*contract.Negotiation, error)
	// change adds what the transition introduces to the new record.
	change func(ctx context.Context, n *contract.Negotiation) (*contract.Negotiation, error)
	// message builds the notification for the peer, if any.
	message func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error)
	// conflicts reports whether a record already in the target state disagrees with the
	// message, a repeat with other terms is rejected instead of ignored.
	conflicts func(n *contract.Negotiation) bool
}

func negotiationDetails(n *contract.Negotiation, actor constants.DataspaceRole, from, to string) map[string]any {
	return transitionDetails(
		"negotiation", n.GetRole(), actor, n.GetConsumerPID().URN(), n.GetProviderPID().URN(), from, to)
}

// apply runs a single transition. It returns false if the record was already in the target
// state, in which case nothing was saved, audited or sent.
func (e *NegotiationEngine) apply(ctx context.Context, s negotiationStep) (*contract.Negotiation, bool, error) {
	var (
		notification *callback.Notification
		details      map[string]any
		changed      bool
	)
	saved, err := withRetry(ctx, func() (*contract.Negotiation, error) {
		changed = false
		cur, err := s.load(ctx)
		if err != nil {
			return nil, negotiationLookupError(err, s.consumerPID, s.providerPID)
		}
		ctx, logger := logging.InjectLabels(ctx, cur.GetLogFields("")...)
		state := cur.GetState()
		if state == s.target || (s.target == contract.States.TERMINATED && state.IsTerminal()) {
			if s.conflicts != nil && s.conflicts(cur) {
				details = negotiationDetails(cur, s.actor, state.String(), s.target.String())
				return nil, e.reject(ctx, cur, details,
					fmt.Sprintf("negotiation already in %s with other terms", state))
			}
			logger.Info("Negotiation already in target state", "target", s.target.String())
			return cur, nil
		}

		details = negotiationDetails(cur, s.actor, state.String(), s.target.String())
		if !MayOriginateNegotiation(s.actor, s.target) {
			return nil, e.reject(ctx, cur, details, fmt.Sprintf("%s may not move a negotiation to %s", s.actor, s.target))
		}
		next, err := cur.Transit(s.target, s.actor)
		if err != nil {
			return nil, e.reject(ctx, cur, details, err.Error())
		}
		if s.change != nil {
			if next, err = s.change(ctx, next); err != nil {
				return nil, e.rejected(ctx, details, err)
			}
		}
		notification = nil
		if s.message != nil {
			if notification, err = s.message(ctx, next); err != nil {
				return nil, e.rejected(ctx, details, err)
			}
		}
		saved, err := e.store.PutNegotiation(ctx, next)
		if err != nil {
			return nil, err
		}
		changed = true
		return saved, nil
	})
	if err != nil {
		return nil, false, asNegotiationError(err, s.consumerPID, s.providerPID)
	}
	if changed {
		e.auditTransition(ctx, details)
		if notification != nil {
			e.notifier.Notify(ctx, *notification)
		}
	}
	return saved, changed, nil
}

// create saves a new negotiation.
func (e *NegotiationEngine) create(
	ctx context.Context,
	n *contract.Negotiation,
	message func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error),
) (*contract.Negotiation, error) {
	var notification *callback.Notification
	if message != nil {
		var err error
		if notification, err = message(ctx, n); err != nil {
			return nil, err
		}
	}
	saved, err := e.store.PutNegotiation(ctx, n)
	if err != nil {
		return nil, err
	}
	e.auditTransition(ctx, negotiationDetails(saved, saved.GetActor(), "", saved.GetState().String()))
	if notification != nil {
		e.notifier.Notify(ctx, *notification)
	}
	return saved, nil
}

func (e *NegotiationEngine) reject(
	ctx context.Context, n *contract.Negotiation, details map[string]any, reason string,
) error {
	return e.rejected(ctx, details, negotiationError(
		KindInvalidState, reason, n.GetConsumerPID().URN(), n.GetProviderPID().URN(), contract.ErrInvalidTransition))
}

func negotiationLookupError(err error, consumerPID, providerPID string) error {
	if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, callback.ErrPIDMismatch) {
		return negotiationError(KindNotFound, "negotiation not found", consumerPID, providerPID, err)
	}
	return negotiationError(KindInternal, "could not load negotiation", consumerPID, providerPID, err)
}

func asNegotiationError(err error, consumerPID, providerPID string) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return negotiationError(KindInternal, "could not save negotiation", consumerPID, providerPID, err)
}

func (e *NegotiationEngine) resolve(
	role constants.DataspaceRole, pid shared.NegotiationPID, consumerPID, providerPID string,
) func(ctx context.Context) (*contract.Negotiation, error) {
	return func(ctx context.Context) (*contract.Negotiation, error) {
		return e.resolver.Negotiation(ctx, role, pid, consumerPID, providerPID)
	}
}

func (e *NegotiationEngine) local(
	role constants.DataspaceRole, pid shared.NegotiationPID,
) func(ctx context.Context) (*contract.Negotiation, error) {
	return func(ctx context.Context) (*contract.Negotiation, error) {
		return e.store.GetNegotiation(ctx, role, pid)
	}
}

// localNegotiationPIDs places the local PID in the right field for error messages.
func localNegotiationPIDs(role constants.DataspaceRole, pid shared.NegotiationPID) (string, string) {
	if role == constants.DataspaceProvider {
		return "", pid.URN()
	}
	return pid.URN(), ""
}

// peerNegotiationURL returns the endpoint of the peer for this negotiation.
func peerNegotiationURL(n *contract.Negotiation, elems ...string) (*url.URL, error) {
	if n.GetCallback() == nil || n.GetRemotePID().IsZero() {
		return nil, negotiationError(KindInvalidState, "counterpart of the negotiation is not known yet",
			n.GetConsumerPID().URN(), n.GetProviderPID().URN(), nil)
	}
	return callback.NegotiationURL(n.GetCallback(), n.GetRole().Other(), n.GetRemotePID().URN(), elems...), nil
}

func (e *NegotiationEngine) notification(
	ctx context.Context, n *contract.Negotiation, messageType string, u *url.URL, msg any,
) (*callback.Notification, error) {
	body, err := shared.ValidateAndMarshal(ctx, msg)
	if err != nil {
		return nil, negotiationError(KindInternal, "could not build message",
			n.GetConsumerPID().URN(), n.GetProviderPID().URN(), err)
	}
	return &callback.Notification{
		MessageType: messageType,
		URL:         u,
		Body:        body,
		Details: map[string]any{
			"process":     "negotiation",
			"role":        n.GetRole().String(),
			"consumerPid": n.GetConsumerPID().URN(),
			"providerPid": n.GetProviderPID().URN(),
		},
	}, nil
}

func (e *NegotiationEngine) callbackAddress() string {
	if e.self == nil {
		return ""
	}
	return e.self.String()
}

func parseCallback(s string) (*url.URL, error) {
	if s == "" {
		return nil, errors.New("callback address missing")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("callback address %s is not absolute", s)
	}
	return u, nil
}

// StartNegotiation handles a contract request on the provider side. Without a provider PID
// it opens a new negotiation, with one it is a counter request on an existing negotiation.
func (e *NegotiationEngine) StartNegotiation(
	ctx context.Context, msg shared.ContractRequestMessage,
) (*contract.Negotiation, error) {
	ctx, _ = logging.InjectLabels(ctx, "consumerPID", msg.ConsumerPID, "providerPID", msg.ProviderPID)
	if msg.ProviderPID != "" {
		pid, err := shared.ParseNegotiationPID(msg.ProviderPID)
		if err != nil {
			return nil, negotiationError(KindNotFound, "invalid provider PID", msg.ConsumerPID, msg.ProviderPID, err)
		}
		return e.HandleCounterOffer(ctx, constants.DataspaceProvider, pid, msg.ConsumerPID, msg.ProviderPID, msg.Offer)
	}

	details := transitionDetails("negotiation", constants.DataspaceProvider, constants.DataspaceConsumer,
		msg.ConsumerPID, "", "", contract.States.REQUESTED.String())
	consumerPID, err := shared.ParseNegotiationPID(msg.ConsumerPID)
	if err != nil || consumerPID.IsZero() {
		return nil, e.rejected(ctx, details,
			negotiationError(KindInvalidState, "invalid consumer PID", msg.ConsumerPID, "", err))
	}
	cb, err := parseCallback(msg.CallbackAddress)
	if err != nil {
		return nil, e.rejected(ctx, details,
			negotiationError(KindInvalidState, "invalid callback address", msg.ConsumerPID, "", err))
	}
	neg := contract.New(
		ctx, constants.DataspaceProvider,
		shared.NewNegotiationPID(), consumerPID,
		contract.States.REQUESTED,
		odrl.Offer{MessageOffer: msg.Offer},
		cb, e.self,
	).WithActor(constants.DataspaceConsumer)
	saved, err := e.create(ctx, neg, nil)
	if errors.Is(err, persistence.ErrDuplicate) {
		return e.existing(ctx, constants.DataspaceProvider, contract.States.REQUESTED,
			contractopts.WithConsumerPID(consumerPID))
	}
	if err != nil {
		return nil, asNegotiationError(err, msg.ConsumerPID, "")
	}
	e.progress(ctx, saved)
	return saved, nil
}

// existing returns the live record a repeated opening message already created.
func (e *NegotiationEngine) existing(
	ctx context.Context, role constants.DataspaceRole, state contract.State, opts ...contractopts.NegotiationOption,
) (*contract.Negotiation, error) {
	neg, err := e.store.FindNegotiation(ctx, append(opts, contractopts.WithRole(role))...)
	if err != nil {
		return nil, negotiationLookupError(err, "", "")
	}
	if neg.GetState() != state {
		return nil, e.rejected(ctx, negotiationDetails(neg, role.Other(), neg.GetState().String(), state.String()),
			negotiationError(KindInvalidState, "negotiation already exists",
				neg.GetConsumerPID().URN(), neg.GetProviderPID().URN(), persistence.ErrDuplicate))
	}
	logging.Extract(ctx).Info("Repeated opening message", neg.GetLogFields("")...)
	return neg, nil
}

// HandleOffer handles a contract offer on the consumer side. Without a consumer PID it opens
// a new negotiation, with one it is a counter offer on an existing negotiation.
func (e *NegotiationEngine) HandleOffer(
	ctx context.Context, msg shared.ContractOfferMessage,
) (*contract.Negotiation, error) {
	ctx, _ = logging.InjectLabels(ctx, "consumerPID", msg.ConsumerPID, "providerPID", msg.ProviderPID)
	if msg.ConsumerPID != "" {
		pid, err := shared.ParseNegotiationPID(msg.ConsumerPID)
		if err != nil {
			return nil, negotiationError(KindNotFound, "invalid consumer PID", msg.ConsumerPID, msg.ProviderPID, err)
		}
		return e.HandleCounterOffer(ctx, constants.DataspaceConsumer, pid, msg.ConsumerPID, msg.ProviderPID, msg.Offer)
	}

	details := transitionDetails("negotiation", constants.DataspaceConsumer, constants.DataspaceProvider,
		"", msg.ProviderPID, "", contract.States.OFFERED.String())
	providerPID, err := shared.ParseNegotiationPID(msg.ProviderPID)
	if err != nil || providerPID.IsZero() {
		return nil, e.rejected(ctx, details,
			negotiationError(KindInvalidState, "invalid provider PID", "", msg.ProviderPID, err))
	}
	cb, err := parseCallback(msg.CallbackAddress)
	if err != nil {
		return nil, e.rejected(ctx, details,
			negotiationError(KindInvalidState, "invalid callback address", "", msg.ProviderPID, err))
	}
	neg := contract.New(
		ctx, constants.DataspaceConsumer,
		providerPID, shared.NewNegotiationPID(),
		contract.States.OFFERED,
		odrl.Offer{MessageOffer: msg.Offer},
		cb, e.self,
	).WithActor(constants.DataspaceProvider)
	saved, err := e.create(ctx, neg, nil)
	if errors.Is(err, persistence.ErrDuplicate) {
		return e.existing(ctx, constants.DataspaceConsumer, contract.States.OFFERED,
			contractopts.WithProviderPID(providerPID))
	}
	if err != nil {
		return nil, asNegotiationError(err, "", msg.ProviderPID)
	}
	e.progress(ctx, saved)
	return saved, nil
}

// HandleCounterOffer applies new terms proposed by the peer. A provider held negotiation
// moves to REQUESTED, a consumer held one to OFFERED.
func (e *NegotiationEngine) HandleCounterOffer(
	ctx context.Context,
	role constants.DataspaceRole,
	pid shared.NegotiationPID,
	consumerPID, providerPID string,
	offer odrl.MessageOffer,
) (*contract.Negotiation, error) {
	target := contract.States.OFFERED
	if role == constants.DataspaceProvider {
		target = contract.States.REQUESTED
	}
	return e.inbound(ctx, negotiationStep{
		role:        role,
		actor:       role.Other(),
		target:      target,
		consumerPID: consumerPID,
		providerPID: providerPID,
		load:        e.resolve(role, pid, consumerPID, providerPID),
		change: func(_ context.Context, n *contract.Negotiation) (*contract.Negotiation, error) {
			return n.WithOffer(odrl.Offer{MessageOffer: offer}), nil
		},
		conflicts: otherTerms(offer),
	})
}

// otherTerms returns a conflict check for repeated offers, comparing the terms by their wire
// form.
func otherTerms(offer odrl.MessageOffer) func(n *contract.Negotiation) bool {
	want, err := json.Marshal(offer)
	return func(n *contract.Negotiation) bool {
		if err != nil {
			return true
		}
		have, hErr := json.Marshal(n.GetOffer().MessageOffer)
		return hErr != nil || !bytes.Equal(want, have)
	}
}

// HandleEvent handles a negotiation event, the provider accepts ACCEPTED events and the
// consumer FINALIZED events.
func (e *NegotiationEngine) HandleEvent(
	ctx context.Context, role constants.DataspaceRole, pid shared.NegotiationPID, msg shared.ContractNegotiationEventMessage,
) (*contract.Negotiation, error) {
	if role == constants.DataspaceProvider {
		return e.HandleAcceptedEvent(ctx, pid, msg)
	}
	return e.HandleFinalizeEvent(ctx, pid, msg)
}

// HandleAcceptedEvent handles the consumer accepting the offer.
func (e *NegotiationEngine) HandleAcceptedEvent(
	ctx context.Context, pid shared.NegotiationPID, msg shared.ContractNegotiationEventMessage,
) (*contract.Negotiation, error) {
	return e.handleEvent(ctx, constants.DataspaceProvider, pid, msg, contract.States.ACCEPTED)
}

// HandleFinalizeEvent handles the provider finalizing the negotiation.
func (e *NegotiationEngine) HandleFinalizeEvent(
	ctx context.Context, pid shared.NegotiationPID, msg shared.ContractNegotiationEventMessage,
) (*contract.Negotiation, error) {
	return e.handleEvent(ctx, constants.DataspaceConsumer, pid, msg, contract.States.FINALIZED)
}

func (e *NegotiationEngine) handleEvent(
	ctx context.Context,
	role constants.DataspaceRole,
	pid shared.NegotiationPID,
	msg shared.ContractNegotiationEventMessage,
	target contract.State,
) (*contract.Negotiation, error) {
	if msg.EventType != target.String() {
		reason := fmt.Sprintf("%s can't handle event %s", role, msg.EventType)
		return nil, e.rejected(ctx,
			transitionDetails("negotiation", role, role.Other(), msg.ConsumerPID, msg.ProviderPID, "", msg.EventType),
			negotiationError(KindInvalidState, reason, msg.ConsumerPID, msg.ProviderPID, nil))
	}
	return e.inbound(ctx, negotiationStep{
		role:        role,
		actor:       role.Other(),
		target:      target,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(role, pid, msg.ConsumerPID, msg.ProviderPID),
	})
}

// HandleAgreement stores the agreement the provider sent and moves the consumer held
// negotiation to AGREED.
func (e *NegotiationEngine) HandleAgreement(
	ctx context.Context, pid shared.NegotiationPID, msg shared.ContractAgreementMessage,
) (*contract.Negotiation, error) {
	agreement := msg.Agreement
	return e.inbound(ctx, negotiationStep{
		role:        constants.DataspaceConsumer,
		actor:       constants.DataspaceProvider,
		target:      contract.States.AGREED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(constants.DataspaceConsumer, pid, msg.ConsumerPID, msg.ProviderPID),
		change: func(ctx context.Context, n *contract.Negotiation) (*contract.Negotiation, error) {
			if err := e.storeAgreement(ctx, n, &agreement); err != nil {
				return nil, err
			}
			return n.WithAgreement(&agreement), nil
		},
	})
}

// HandleVerification moves the provider held negotiation to VERIFIED.
func (e *NegotiationEngine) HandleVerification(
	ctx context.Context, pid shared.NegotiationPID, msg shared.ContractAgreementVerificationMessage,
) (*contract.Negotiation, error) {
	return e.inbound(ctx, negotiationStep{
		role:        constants.DataspaceProvider,
		actor:       constants.DataspaceConsumer,
		target:      contract.States.VERIFIED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(constants.DataspaceProvider, pid, msg.ConsumerPID, msg.ProviderPID),
	})
}

// HandleTermination terminates the negotiation on request of the peer. Terminating a
// negotiation that already ended is not an error.
func (e *NegotiationEngine) HandleTermination(
	ctx context.Context,
	role constants.DataspaceRole,
	pid shared.NegotiationPID,
	msg shared.ContractNegotiationTerminationMessage,
) (*contract.Negotiation, error) {
	logging.Extract(ctx).Info("Peer terminates negotiation",
		"code", msg.Code, "reason", shared.ReasonStrings(msg.Reason))
	return e.inbound(ctx, negotiationStep{
		role:        role,
		actor:       role.Other(),
		target:      contract.States.TERMINATED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(role, pid, msg.ConsumerPID, msg.ProviderPID),
	})
}

func (e *NegotiationEngine) inbound(ctx context.Context, s negotiationStep) (*contract.Negotiation, error) {
	saved, changed, err := e.apply(ctx, s)
	if err != nil {
		return nil, err
	}
	if changed {
		e.progress(ctx, saved)
	}
	return saved, nil
}

// progress takes the next step this party originates, when auto progress is enabled.
func (e *NegotiationEngine) progress(ctx context.Context, n *contract.Negotiation) {
	if !e.autoProgress {
		return
	}
	var err error
	state := n.GetState()
	switch n.GetRole() {
	case constants.DataspaceProvider:
		switch state {
		case contract.States.REQUESTED, contract.States.ACCEPTED:
			_, err = e.SendAgreement(ctx, n.GetProviderPID())
		case contract.States.VERIFIED:
			_, err = e.Finalize(ctx, n.GetProviderPID())
		}
	case constants.DataspaceConsumer:
		switch state {
		case contract.States.OFFERED:
			_, err = e.AcceptOffer(ctx, n.GetConsumerPID())
		case contract.States.AGREED:
			_, err = e.VerifyAgreement(ctx, n.GetConsumerPID())
		}
	}
	if err != nil {
		logging.Extract(ctx).Error("Could not progress negotiation", "err", err)
	}
}

func (e *NegotiationEngine) storeAgreement(ctx context.Context, n *contract.Negotiation, a *odrl.Agreement) error {
	err := e.store.PutAgreement(ctx, a)
	if errors.Is(err, persistence.ErrDuplicate) {
		// A retried transition stores the same agreement again.
		logging.Extract(ctx).Debug("Agreement already stored", "agreement_id", a.ID)
		return nil
	}
	if err != nil {
		return negotiationError(KindInternal, "could not store agreement",
			n.GetConsumerPID().URN(), n.GetProviderPID().URN(), err)
	}
	return nil
}

// adopt returns a response handler that stores the remote PID from the state the peer
// answered an opening message with.
func (e *NegotiationEngine) adopt(
	role constants.DataspaceRole, pid shared.NegotiationPID,
) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		state, err := shared.UnmarshalAndValidate(ctx, body, shared.ContractNegotiation{})
		if err != nil {
			return err
		}
		remoteStr := state.ProviderPID
		if role == constants.DataspaceProvider {
			remoteStr = state.ConsumerPID
		}
		remote, err := shared.ParseNegotiationPID(remoteStr)
		if err != nil || remote.IsZero() {
			return fmt.Errorf("%w: peer sent no usable PID", callback.ErrPIDMismatch)
		}
		_, err = withRetry(ctx, func() (*contract.Negotiation, error) {
			n, err := e.store.GetNegotiation(ctx, role, pid)
			if err != nil {
				return nil, err
			}
			switch n.GetRemotePID() {
			case remote:
				return n, nil
			case shared.NegotiationPID{}:
			default:
				return nil, fmt.Errorf("%w: peer answered with %s", callback.ErrPIDMismatch, remote)
			}
			if role == constants.DataspaceProvider {
				n = n.WithConsumerPID(remote)
			} else {
				n = n.WithProviderPID(remote)
			}
			return e.store.PutNegotiation(ctx, n)
		})
		return err
	}
}

// RequestContract opens a negotiation with the provider at providerAddress.
func (e *NegotiationEngine) RequestContract(
	ctx context.Context, providerAddress *url.URL, offer odrl.Offer,
) (*contract.Negotiation, error) {
	neg := contract.New(
		ctx, constants.DataspaceConsumer,
		shared.NegotiationPID{}, shared.NewNegotiationPID(),
		contract.States.REQUESTED, offer,
		providerAddress, e.self,
	)
	saved, err := e.create(ctx, neg, func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
		nt, err := e.notification(ctx, n, "dspace:ContractRequestMessage",
			callback.NegotiationRequestURL(providerAddress),
			shared.ContractRequestMessage{
				Context:         shared.GetDSPContext(),
				Type:            "dspace:ContractRequestMessage",
				ConsumerPID:     n.GetConsumerPID().URN(),
				Offer:           n.GetOffer().MessageOffer,
				CallbackAddress: e.callbackAddress(),
			})
		if err != nil {
			return nil, err
		}
		nt.OnResponse = e.adopt(constants.DataspaceConsumer, n.GetConsumerPID())
		return nt, nil
	})
	if err != nil {
		return nil, asNegotiationError(err, "", "")
	}
	return saved, nil
}

// CounterRequest sends new terms in reply to an offer.
func (e *NegotiationEngine) CounterRequest(
	ctx context.Context, pid shared.NegotiationPID, offer odrl.Offer,
) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(constants.DataspaceConsumer, pid)
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        constants.DataspaceConsumer,
		actor:       constants.DataspaceConsumer,
		target:      contract.States.REQUESTED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(constants.DataspaceConsumer, pid),
		change: func(_ context.Context, n *contract.Negotiation) (*contract.Negotiation, error) {
			return n.WithOffer(offer), nil
		},
		conflicts: otherTerms(offer.MessageOffer),
		message: func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
			u, err := peerNegotiationURL(n, "request")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, n, "dspace:ContractRequestMessage", u, shared.ContractRequestMessage{
				Context:         shared.GetDSPContext(),
				Type:            "dspace:ContractRequestMessage",
				ProviderPID:     n.GetProviderPID().URN(),
				ConsumerPID:     n.GetConsumerPID().URN(),
				Offer:           n.GetOffer().MessageOffer,
				CallbackAddress: e.callbackAddress(),
			})
		},
	})
	return saved, err
}

// OfferContract opens a negotiation by offering terms to the consumer at consumerAddress.
func (e *NegotiationEngine) OfferContract(
	ctx context.Context, consumerAddress *url.URL, offer odrl.Offer,
) (*contract.Negotiation, error) {
	neg := contract.New(
		ctx, constants.DataspaceProvider,
		shared.NewNegotiationPID(), shared.NegotiationPID{},
		contract.States.OFFERED, offer,
		consumerAddress, e.self,
	)
	saved, err := e.create(ctx, neg, func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
		nt, err := e.notification(ctx, n, "dspace:ContractOfferMessage",
			callback.NegotiationOfferURL(consumerAddress),
			shared.ContractOfferMessage{
				Context:         shared.GetDSPContext(),
				Type:            "dspace:ContractOfferMessage",
				ProviderPID:     n.GetProviderPID().URN(),
				Offer:           n.GetOffer().MessageOffer,
				CallbackAddress: e.callbackAddress(),
			})
		if err != nil {
			return nil, err
		}
		nt.OnResponse = e.adopt(constants.DataspaceProvider, n.GetProviderPID())
		return nt, nil
	})
	if err != nil {
		return nil, asNegotiationError(err, "", "")
	}
	return saved, nil
}

// CounterOffer sends new terms in reply to a request.
func (e *NegotiationEngine) CounterOffer(
	ctx context.Context, pid shared.NegotiationPID, offer odrl.Offer,
) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(constants.DataspaceProvider, pid)
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        constants.DataspaceProvider,
		actor:       constants.DataspaceProvider,
		target:      contract.States.OFFERED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(constants.DataspaceProvider, pid),
		change: func(_ context.Context, n *contract.Negotiation) (*contract.Negotiation, error) {
			return n.WithOffer(offer), nil
		},
		conflicts: otherTerms(offer.MessageOffer),
		message: func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
			u, err := peerNegotiationURL(n, "offers")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, n, "dspace:ContractOfferMessage", u, shared.ContractOfferMessage{
				Context:         shared.GetDSPContext(),
				Type:            "dspace:ContractOfferMessage",
				ProviderPID:     n.GetProviderPID().URN(),
				ConsumerPID:     n.GetConsumerPID().URN(),
				Offer:           n.GetOffer().MessageOffer,
				CallbackAddress: e.callbackAddress(),
			})
		},
	})
	return saved, err
}

func (e *NegotiationEngine) eventMessage(eventType contract.State) func(
	ctx context.Context, n *contract.Negotiation,
) (*callback.Notification, error) {
	return func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
		u, err := peerNegotiationURL(n, "events")
		if err != nil {
			return nil, err
		}
		return e.notification(ctx, n, "dspace:ContractNegotiationEventMessage", u,
			shared.ContractNegotiationEventMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:ContractNegotiationEventMessage",
				ProviderPID: n.GetProviderPID().URN(),
				ConsumerPID: n.GetConsumerPID().URN(),
				EventType:   eventType.String(),
			})
	}
}

// AcceptOffer accepts the current offer.
func (e *NegotiationEngine) AcceptOffer(ctx context.Context, pid shared.NegotiationPID) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(constants.DataspaceConsumer, pid)
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        constants.DataspaceConsumer,
		actor:       constants.DataspaceConsumer,
		target:      contract.States.ACCEPTED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(constants.DataspaceConsumer, pid),
		message:     e.eventMessage(contract.States.ACCEPTED),
	})
	return saved, err
}

// SendAgreement creates the agreement from the current offer and sends it to the consumer.
func (e *NegotiationEngine) SendAgreement(ctx context.Context, pid shared.NegotiationPID) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(constants.DataspaceProvider, pid)
	// One ID for all attempts, so a retried transition doesn't leave stray agreements.
	agreementID := uuid.New().URN()
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        constants.DataspaceProvider,
		actor:       constants.DataspaceProvider,
		target:      contract.States.AGREED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(constants.DataspaceProvider, pid),
		change: func(ctx context.Context, n *contract.Negotiation) (*contract.Negotiation, error) {
			agreement := odrl.NewAgreement(agreementID, n.GetOffer(), e.participantID, "", time.Now())
			if err := e.storeAgreement(ctx, n, &agreement); err != nil {
				return nil, err
			}
			return n.WithAgreement(&agreement), nil
		},
		message: func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
			u, err := peerNegotiationURL(n, "agreement")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, n, "dspace:ContractAgreementMessage", u, shared.ContractAgreementMessage{
				Context:         shared.GetDSPContext(),
				Type:            "dspace:ContractAgreementMessage",
				ProviderPID:     n.GetProviderPID().URN(),
				ConsumerPID:     n.GetConsumerPID().URN(),
				Agreement:       *n.GetAgreement(),
				CallbackAddress: e.callbackAddress(),
			})
		},
	})
	return saved, err
}

// VerifyAgreement confirms the agreement to the provider.
func (e *NegotiationEngine) VerifyAgreement(
	ctx context.Context, pid shared.NegotiationPID,
) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(constants.DataspaceConsumer, pid)
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        constants.DataspaceConsumer,
		actor:       constants.DataspaceConsumer,
		target:      contract.States.VERIFIED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(constants.DataspaceConsumer, pid),
		message: func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
			u, err := peerNegotiationURL(n, "agreement", "verification")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, n, "dspace:ContractAgreementVerificationMessage", u,
				shared.ContractAgreementVerificationMessage{
					Context:     shared.GetDSPContext(),
					Type:        "dspace:ContractAgreementVerificationMessage",
					ProviderPID: n.GetProviderPID().URN(),
					ConsumerPID: n.GetConsumerPID().URN(),
				})
		},
	})
	return saved, err
}

// Finalize finalizes a verified negotiation.
func (e *NegotiationEngine) Finalize(ctx context.Context, pid shared.NegotiationPID) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(constants.DataspaceProvider, pid)
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        constants.DataspaceProvider,
		actor:       constants.DataspaceProvider,
		target:      contract.States.FINALIZED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(constants.DataspaceProvider, pid),
		message:     e.eventMessage(contract.States.FINALIZED),
	})
	return saved, err
}

// Terminate terminates the negotiation and tells the peer, if it is known. Terminating a
// negotiation that already ended is not an error.
func (e *NegotiationEngine) Terminate(
	ctx context.Context, role constants.DataspaceRole, pid shared.NegotiationPID, code string, reasons []string,
) (*contract.Negotiation, error) {
	cPID, pPID := localNegotiationPIDs(role, pid)
	saved, _, err := e.apply(ctx, negotiationStep{
		role:        role,
		actor:       role,
		target:      contract.States.TERMINATED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(role, pid),
		message: func(ctx context.Context, n *contract.Negotiation) (*callback.Notification, error) {
			u, err := peerNegotiationURL(n, "termination")
			if err != nil {
				logging.Extract(ctx).Warn("Peer can't be told about the termination", "err", err)
				return nil, nil //nolint:nilnil
			}
			return e.notification(ctx, n, "dspace:ContractNegotiationTerminationMessage", u,
				shared.ContractNegotiationTerminationMessage{
					Context:     shared.GetDSPContext(),
					Type:        "dspace:ContractNegotiationTerminationMessage",
					ProviderPID: n.GetProviderPID().URN(),
					ConsumerPID: n.GetConsumerPID().URN(),
					Code:        code,
					Reason:      shared.NewReasons(reasons...),
				})
		},
	})
	return saved, err
}

// GetNegotiation returns the negotiation held in role by its local PID.
func (e *NegotiationEngine) GetNegotiation(
	ctx context.Context, role constants.DataspaceRole, pid shared.NegotiationPID,
) (*contract.Negotiation, error) {
	n, err := e.store.GetNegotiation(ctx, role, pid)
	if err != nil {
		cPID, pPID := localNegotiationPIDs(role, pid)
		return nil, negotiationLookupError(err, cPID, pPID)
	}
	return n, nil
}

// ListNegotiations returns all negotiations matching the options.
func (e *NegotiationEngine) ListNegotiations(
	ctx context.Context, opts ...contractopts.NegotiationOption,
) ([]*contract.Negotiation, error) {
	negs, err := e.store.ListNegotiations(ctx, opts...)
	if err != nil {
		return nil, negotiationError(KindInternal, "could not list negotiations", "", "", err)
	}
	return negs, nil
}
