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
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/callback"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	contractopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/contract"
	transferopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/transfer"
	"github.com/go-dataspace/dsp-engine/dsp/policy"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/go-dataspace/dsp-engine/odrl"
)

// MayOriginateTransfer returns whether actor may move a transfer from one state to the next.
// Only the consumer starts a requested transfer, the provider applies the start when the
// consumer's message arrives.
func MayOriginateTransfer(actor constants.DataspaceRole, from, to transfer.State) bool {
	if from == transfer.States.REQUESTED && to == transfer.States.STARTED {
		return actor == constants.DataspaceConsumer
	}
	return true
}

// TransferEngine runs both sides of transfer processes.
type TransferEngine struct {
	base
	gate Gate
}

func NewTransferEngine(
	store persistence.StorageProvider,
	notifier callback.Notifier,
	sink audit.Sink,
	gate Gate,
	self *url.URL,
	opts ...Option,
) *TransferEngine {
	return &TransferEngine{
		base: newBase(store, notifier, sink, self, opts),
		gate: gate,
	}
}

type transferStep struct {
	role        constants.DataspaceRole
	actor       constants.DataspaceRole
	target      transfer.State
	consumerPID string
	providerPID string
	load        func(ctx context.Context) (*transfer.Process, error)
	// transit replaces the plain state change, Start uses it to swap the data address.
	transit func(p *transfer.Process) (*transfer.Process, error)
	// check runs after the role and state checks, a failure is a rejected transition.
	check   func(ctx context.Context, p *transfer.Process) error
	message func(ctx context.Context, p *transfer.Process) (*callback.Notification, error)
}

func transferDetails(p *transfer.Process, actor constants.DataspaceRole, from, to string) map[string]any {
	d := transitionDetails(
		"transfer", p.GetRole(), actor, p.GetConsumerPID().URN(), p.GetProviderPID().URN(), from, to)
	d["agreementId"] = p.GetAgreementID()
	return d
}

//nolint:dupl
func (e *TransferEngine) apply(ctx context.Context, s transferStep) (*transfer.Process, error) {
	var (
		notification *callback.Notification
		details      map[string]any
		changed      bool
	)
	saved, err := withRetry(ctx, func() (*transfer.Process, error) {
		changed = false
		cur, err := s.load(ctx)
		if err != nil {
			return nil, transferLookupError(err, s.consumerPID, s.providerPID)
		}
		ctx, logger := logging.InjectLabels(ctx, cur.GetLogFields("")...)
		state := cur.GetState()
		if state == s.target || (s.target == transfer.States.TERMINATED && state.IsTerminal()) {
			logger.Info("Transfer already in target state", "target", s.target.String())
			return cur, nil
		}

		details = transferDetails(cur, s.actor, state.String(), s.target.String())
		if !MayOriginateTransfer(s.actor, state, s.target) {
			return nil, e.reject(ctx, cur, details, KindInvalidState,
				fmt.Sprintf("%s may not move a transfer from %s to %s", s.actor, state, s.target), nil)
		}
		var next *transfer.Process
		if s.transit != nil {
			next, err = s.transit(cur)
		} else {
			next, err = cur.Transit(s.target, s.actor)
		}
		if err != nil {
			return nil, e.reject(ctx, cur, details, KindInvalidState, err.Error(), err)
		}
		if s.check != nil {
			if err := s.check(ctx, cur); err != nil {
				var engineErr *Error
				if errors.As(err, &engineErr) {
					return nil, e.rejected(ctx, details, err)
				}
				return nil, e.reject(ctx, cur, details, KindInvalidState, err.Error(), err)
			}
		}
		notification = nil
		if s.message != nil {
			if notification, err = s.message(ctx, next); err != nil {
				return nil, e.rejected(ctx, details, err)
			}
		}
		saved, err := e.store.PutTransfer(ctx, next)
		if err != nil {
			return nil, err
		}
		changed = true
		return saved, nil
	})
	if err != nil {
		return nil, asTransferError(err, s.consumerPID, s.providerPID)
	}
	if changed {
		e.auditTransition(ctx, details)
		if notification != nil {
			e.notifier.Notify(ctx, *notification)
		}
	}
	return saved, nil
}

func (e *TransferEngine) reject(
	ctx context.Context, p *transfer.Process, details map[string]any, kind Kind, reason string, err error,
) error {
	if err == nil {
		err = transfer.ErrInvalidTransition
	}
	return e.rejected(ctx, details,
		transferError(kind, reason, p.GetConsumerPID().URN(), p.GetProviderPID().URN(), err))
}

func transferLookupError(err error, consumerPID, providerPID string) error {
	if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, callback.ErrPIDMismatch) {
		return transferError(KindNotFound, "transfer not found", consumerPID, providerPID, err)
	}
	return transferError(KindInternal, "could not load transfer", consumerPID, providerPID, err)
}

func asTransferError(err error, consumerPID, providerPID string) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return transferError(KindInternal, "could not save transfer", consumerPID, providerPID, err)
}

func localTransferPIDs(role constants.DataspaceRole, pid shared.TransferPID) (string, string) {
	if role == constants.DataspaceProvider {
		return "", pid.URN()
	}
	return pid.URN(), ""
}

func peerTransferURL(p *transfer.Process, elems ...string) (*url.URL, error) {
	if p.GetCallback() == nil || p.GetRemotePID().IsZero() {
		return nil, transferError(KindInvalidState, "counterpart of the transfer is not known yet",
			p.GetConsumerPID().URN(), p.GetProviderPID().URN(), nil)
	}
	return callback.TransferURL(p.GetCallback(), p.GetRole().Other(), p.GetRemotePID().URN(), elems...), nil
}

func (e *TransferEngine) notification(
	ctx context.Context, p *transfer.Process, messageType string, u *url.URL, msg any,
) (*callback.Notification, error) {
	body, err := shared.ValidateAndMarshal(ctx, msg)
	if err != nil {
		return nil, transferError(KindInternal, "could not build message",
			p.GetConsumerPID().URN(), p.GetProviderPID().URN(), err)
	}
	return &callback.Notification{
		MessageType: messageType,
		URL:         u,
		Body:        body,
		Details: map[string]any{
			"process":     "transfer",
			"role":        p.GetRole().String(),
			"consumerPid": p.GetConsumerPID().URN(),
			"providerPid": p.GetProviderPID().URN(),
		},
	}, nil
}

func (e *TransferEngine) resolve(
	role constants.DataspaceRole, pid shared.TransferPID, consumerPID, providerPID string,
) func(ctx context.Context) (*transfer.Process, error) {
	return func(ctx context.Context) (*transfer.Process, error) {
		return e.resolver.Transfer(ctx, role, pid, consumerPID, providerPID)
	}
}

func (e *TransferEngine) local(
	role constants.DataspaceRole, pid shared.TransferPID,
) func(ctx context.Context) (*transfer.Process, error) {
	return func(ctx context.Context) (*transfer.Process, error) {
		return e.store.GetTransfer(ctx, role, pid)
	}
}

// finalizedAgreement returns the agreement and checks the negotiation that produced it on
// the role's side is finalized.
func (e *TransferEngine) finalizedAgreement(
	ctx context.Context, role constants.DataspaceRole, agreementID string,
) (*odrl.Agreement, error) {
	agreement, err := e.store.GetAgreement(ctx, agreementID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, transferError(KindNotFound, "agreement not found", "", "", err)
		}
		return nil, transferError(KindInternal, "could not load agreement", "", "", err)
	}
	neg, err := e.store.FindNegotiation(ctx,
		contractopts.WithAgreementID(agreementID),
		contractopts.WithRole(role),
	)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, transferError(KindNotFound, "no negotiation for agreement", "", "", err)
		}
		return nil, transferError(KindInternal, "could not load negotiation", "", "", err)
	}
	if neg.GetState() != contract.States.FINALIZED {
		return nil, transferError(KindNotFound, "negotiation for agreement not finalized", "", "", nil)
	}
	return agreement, nil
}

// checkAgreement runs the agreement validity check of the policy gate.
func (e *TransferEngine) checkAgreement(ctx context.Context, p *transfer.Process) error {
	agreement, err := e.store.GetAgreement(ctx, p.GetAgreementID())
	if err != nil {
		return transferError(KindInternal, "could not load agreement",
			p.GetConsumerPID().URN(), p.GetProviderPID().URN(), err)
	}
	return e.gate.CheckAgreement(ctx, agreement)
}

// InitiateTransfer handles a transfer request on the provider side.
func (e *TransferEngine) InitiateTransfer(
	ctx context.Context, msg shared.TransferRequestMessage,
) (*transfer.Process, error) {
	ctx, logger := logging.InjectLabels(ctx,
		"consumerPID", msg.ConsumerPID, "agreementID", msg.AgreementID, "format", msg.Format)
	details := transitionDetails("transfer", constants.DataspaceProvider, constants.DataspaceConsumer,
		msg.ConsumerPID, "", "", transfer.States.REQUESTED.String())
	details["agreementId"] = msg.AgreementID
	consumerPID, err := shared.ParseTransferPID(msg.ConsumerPID)
	if err != nil || consumerPID.IsZero() {
		return nil, e.rejected(ctx, details,
			transferError(KindInvalidState, "invalid consumer PID", msg.ConsumerPID, "", err))
	}
	cb, err := parseCallback(msg.CallbackAddress)
	if err != nil {
		return nil, e.rejected(ctx, details,
			transferError(KindInvalidState, "invalid callback address", msg.ConsumerPID, "", err))
	}
	agreement, err := e.finalizedAgreement(ctx, constants.DataspaceProvider, msg.AgreementID)
	if err != nil {
		var engineErr *Error
		if errors.As(err, &engineErr) {
			engineErr.consumerPID = msg.ConsumerPID
		}
		return nil, err
	}

	if err := e.gate.CheckFormat(ctx, agreement.Target, msg.Format); err != nil {
		if errors.Is(err, policy.ErrUnsupportedFormat) {
			return nil, e.rejected(ctx, details,
				transferError(KindInvalidFormat, err.Error(), msg.ConsumerPID, "", err))
		}
		return nil, transferError(KindInternal, "could not check format", msg.ConsumerPID, "", err)
	}
	if err := e.gate.CheckAgreement(ctx, agreement); err != nil {
		return nil, e.rejected(ctx, details,
			transferError(KindInvalidState, "agreement not valid", msg.ConsumerPID, "", err))
	}

	proc := transfer.New(
		ctx, constants.DataspaceProvider,
		shared.NewTransferPID(), consumerPID,
		transfer.States.REQUESTED,
		msg.AgreementID, agreement.Target, msg.Format, msg.DataAddress,
		cb, e.self,
	).WithActor(constants.DataspaceConsumer)
	saved, err := e.create(ctx, proc, nil)
	if errors.Is(err, persistence.ErrDuplicate) {
		existing, ferr := e.store.FindTransfer(ctx,
			transferopts.WithConsumerPID(consumerPID),
			transferopts.WithRole(constants.DataspaceProvider),
		)
		if ferr != nil {
			return nil, transferLookupError(ferr, msg.ConsumerPID, "")
		}
		if existing.GetState() != transfer.States.REQUESTED || existing.GetAgreementID() != msg.AgreementID {
			return nil, e.rejected(ctx,
				transferDetails(existing, constants.DataspaceConsumer, existing.GetState().String(),
					transfer.States.REQUESTED.String()),
				transferError(KindInvalidState, "transfer already exists",
					existing.GetConsumerPID().URN(), existing.GetProviderPID().URN(), err))
		}
		logger.Info("Repeated transfer request", existing.GetLogFields("")...)
		return existing, nil
	}
	if err != nil {
		return nil, asTransferError(err, msg.ConsumerPID, "")
	}
	return saved, nil
}

func (e *TransferEngine) create(
	ctx context.Context,
	p *transfer.Process,
	message func(ctx context.Context, p *transfer.Process) (*callback.Notification, error),
) (*transfer.Process, error) {
	var notification *callback.Notification
	if message != nil {
		var err error
		if notification, err = message(ctx, p); err != nil {
			return nil, err
		}
	}
	saved, err := e.store.PutTransfer(ctx, p)
	if err != nil {
		return nil, err
	}
	e.auditTransition(ctx, transferDetails(saved, saved.GetActor(), "", saved.GetState().String()))
	if notification != nil {
		e.notifier.Notify(ctx, *notification)
	}
	return saved, nil
}

// StartTransfer applies a start message, the data address in it replaces the old one.
func (e *TransferEngine) StartTransfer(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, msg shared.TransferStartMessage,
) (*transfer.Process, error) {
	actor := role.Other()
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       actor,
		target:      transfer.States.STARTED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(role, pid, msg.ConsumerPID, msg.ProviderPID),
		transit: func(p *transfer.Process) (*transfer.Process, error) {
			return p.Start(actor, msg.DataAddress)
		},
		check: e.checkAgreement,
	})
}

// CompleteTransfer applies a completion message.
func (e *TransferEngine) CompleteTransfer(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, msg shared.TransferCompletionMessage,
) (*transfer.Process, error) {
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       role.Other(),
		target:      transfer.States.COMPLETED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(role, pid, msg.ConsumerPID, msg.ProviderPID),
	})
}

// SuspendTransfer applies a suspension message.
func (e *TransferEngine) SuspendTransfer(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, msg shared.TransferSuspensionMessage,
) (*transfer.Process, error) {
	logging.Extract(ctx).Info("Peer suspends transfer",
		"code", msg.Code, "reason", shared.ReasonStrings(msg.Reason))
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       role.Other(),
		target:      transfer.States.SUSPENDED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(role, pid, msg.ConsumerPID, msg.ProviderPID),
	})
}

// TerminateTransfer applies a termination message. Terminating a transfer that already
// ended is not an error.
func (e *TransferEngine) TerminateTransfer(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, msg shared.TransferTerminationMessage,
) (*transfer.Process, error) {
	logging.Extract(ctx).Info("Peer terminates transfer",
		"code", msg.Code, "reason", shared.ReasonStrings(msg.Reason))
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       role.Other(),
		target:      transfer.States.TERMINATED,
		consumerPID: msg.ConsumerPID,
		providerPID: msg.ProviderPID,
		load:        e.resolve(role, pid, msg.ConsumerPID, msg.ProviderPID),
	})
}

// adopt stores the provider PID the provider answered the transfer request with.
func (e *TransferEngine) adopt(pid shared.TransferPID) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		state, err := shared.UnmarshalAndValidate(ctx, body, shared.TransferProcess{})
		if err != nil {
			return err
		}
		remote, err := shared.ParseTransferPID(state.ProviderPID)
		if err != nil || remote.IsZero() {
			return fmt.Errorf("%w: peer sent no usable PID", callback.ErrPIDMismatch)
		}
		_, err = withRetry(ctx, func() (*transfer.Process, error) {
			p, err := e.store.GetTransfer(ctx, constants.DataspaceConsumer, pid)
			if err != nil {
				return nil, err
			}
			switch p.GetProviderPID() {
			case remote:
				return p, nil
			case shared.TransferPID{}:
			default:
				return nil, fmt.Errorf("%w: peer answered with %s", callback.ErrPIDMismatch, remote)
			}
			return e.store.PutTransfer(ctx, p.WithProviderPID(remote))
		})
		return err
	}
}

// RequestTransfer asks the provider of a finalized agreement for a transfer.
func (e *TransferEngine) RequestTransfer(
	ctx context.Context, agreementID, format string, dataAddress *shared.DataAddress,
) (*transfer.Process, error) {
	agreement, err := e.finalizedAgreement(ctx, constants.DataspaceConsumer, agreementID)
	if err != nil {
		return nil, err
	}
	neg, err := e.store.FindNegotiation(ctx,
		contractopts.WithAgreementID(agreementID),
		contractopts.WithRole(constants.DataspaceConsumer),
	)
	if err != nil {
		return nil, transferError(KindInternal, "could not load negotiation", "", "", err)
	}
	if neg.GetCallback() == nil {
		details := transitionDetails("transfer", constants.DataspaceConsumer, constants.DataspaceConsumer,
			"", "", "", transfer.States.REQUESTED.String())
		details["agreementId"] = agreementID
		return nil, e.rejected(ctx, details,
			transferError(KindInvalidState, "provider address unknown", "", "", nil))
	}
	provider := neg.GetCallback()

	proc := transfer.New(
		ctx, constants.DataspaceConsumer,
		shared.TransferPID{}, shared.NewTransferPID(),
		transfer.States.REQUESTED,
		agreementID, agreement.Target, format, dataAddress,
		provider, e.self,
	)
	saved, err := e.create(ctx, proc, func(ctx context.Context, p *transfer.Process) (*callback.Notification, error) {
		cb := ""
		if e.self != nil {
			cb = e.self.String()
		}
		nt, err := e.notification(ctx, p, "dspace:TransferRequestMessage",
			callback.TransferRequestURL(provider),
			shared.TransferRequestMessage{
				Context:         shared.GetDSPContext(),
				Type:            "dspace:TransferRequestMessage",
				AgreementID:     agreementID,
				Format:          format,
				DataAddress:     dataAddress,
				CallbackAddress: cb,
				ConsumerPID:     p.GetConsumerPID().URN(),
			})
		if err != nil {
			return nil, err
		}
		nt.OnResponse = e.adopt(p.GetConsumerPID())
		return nt, nil
	})
	if err != nil {
		return nil, asTransferError(err, "", "")
	}
	return saved, nil
}

// SendStart starts or resumes the transfer and tells the peer.
func (e *TransferEngine) SendStart(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, dataAddress *shared.DataAddress,
) (*transfer.Process, error) {
	cPID, pPID := localTransferPIDs(role, pid)
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       role,
		target:      transfer.States.STARTED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(role, pid),
		transit: func(p *transfer.Process) (*transfer.Process, error) {
			return p.Start(role, dataAddress)
		},
		check: e.checkAgreement,
		message: func(ctx context.Context, p *transfer.Process) (*callback.Notification, error) {
			u, err := peerTransferURL(p, "start")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, p, "dspace:TransferStartMessage", u, shared.TransferStartMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:TransferStartMessage",
				ProviderPID: p.GetProviderPID().URN(),
				ConsumerPID: p.GetConsumerPID().URN(),
				DataAddress: p.GetDataAddress(),
			})
		},
	})
}

// SendCompletion completes the transfer and tells the peer.
func (e *TransferEngine) SendCompletion(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID,
) (*transfer.Process, error) {
	cPID, pPID := localTransferPIDs(role, pid)
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       role,
		target:      transfer.States.COMPLETED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(role, pid),
		message: func(ctx context.Context, p *transfer.Process) (*callback.Notification, error) {
			u, err := peerTransferURL(p, "completion")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, p, "dspace:TransferCompletionMessage", u, shared.TransferCompletionMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:TransferCompletionMessage",
				ProviderPID: p.GetProviderPID().URN(),
				ConsumerPID: p.GetConsumerPID().URN(),
			})
		},
	})
}

// SendSuspension suspends the transfer. Only a consumer held suspension is sent to the peer,
// on the provider it is a local change.
func (e *TransferEngine) SendSuspension(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, code string, reasons []string,
) (*transfer.Process, error) {
	cPID, pPID := localTransferPIDs(role, pid)
	step := transferStep{
		role:        role,
		actor:       role,
		target:      transfer.States.SUSPENDED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(role, pid),
	}
	if role == constants.DataspaceConsumer {
		step.message = func(ctx context.Context, p *transfer.Process) (*callback.Notification, error) {
			u, err := peerTransferURL(p, "suspension")
			if err != nil {
				return nil, err
			}
			return e.notification(ctx, p, "dspace:TransferSuspensionMessage", u, shared.TransferSuspensionMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:TransferSuspensionMessage",
				ProviderPID: p.GetProviderPID().URN(),
				ConsumerPID: p.GetConsumerPID().URN(),
				Code:        code,
				Reason:      shared.NewReasons(reasons...),
			})
		}
	}
	return e.apply(ctx, step)
}

// SendTermination terminates the transfer and tells the peer, if it is known.
func (e *TransferEngine) SendTermination(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, code string, reasons []string,
) (*transfer.Process, error) {
	cPID, pPID := localTransferPIDs(role, pid)
	return e.apply(ctx, transferStep{
		role:        role,
		actor:       role,
		target:      transfer.States.TERMINATED,
		consumerPID: cPID,
		providerPID: pPID,
		load:        e.local(role, pid),
		message: func(ctx context.Context, p *transfer.Process) (*callback.Notification, error) {
			u, err := peerTransferURL(p, "termination")
			if err != nil {
				logging.Extract(ctx).Warn("Peer can't be told about the termination", "err", err)
				return nil, nil //nolint:nilnil
			}
			return e.notification(ctx, p, "dspace:TransferTerminationMessage", u, shared.TransferTerminationMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:TransferTerminationMessage",
				ProviderPID: p.GetProviderPID().URN(),
				ConsumerPID: p.GetConsumerPID().URN(),
				Code:        code,
				Reason:      shared.NewReasons(reasons...),
			})
		},
	})
}

// IsTransferStarted reports whether a transfer with this PID pair is running. A missing
// transfer is not started.
func (e *TransferEngine) IsTransferStarted(
	ctx context.Context, consumerPID, providerPID shared.TransferPID,
) bool {
	procs, err := e.store.ListTransfers(ctx,
		transferopts.WithConsumerPID(consumerPID),
		transferopts.WithProviderPID(providerPID),
		transferopts.WithState(transfer.States.STARTED),
	)
	if err != nil {
		logging.Extract(ctx).Error("Could not look up transfer", "err", err)
		return false
	}
	return len(procs) > 0
}

// GetTransfer returns the transfer held in role by its local PID.
func (e *TransferEngine) GetTransfer(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID,
) (*transfer.Process, error) {
	p, err := e.store.GetTransfer(ctx, role, pid)
	if err != nil {
		cPID, pPID := localTransferPIDs(role, pid)
		return nil, transferLookupError(err, cPID, pPID)
	}
	return p, nil
}

// ListTransfers returns all transfers matching the options.
func (e *TransferEngine) ListTransfers(
	ctx context.Context, opts ...transferopts.TransferOption,
) ([]*transfer.Process, error) {
	procs, err := e.store.ListTransfers(ctx, opts...)
	if err != nil {
		return nil, transferError(KindInternal, "could not list transfers", "", "", err)
	}
	return procs, nil
}
