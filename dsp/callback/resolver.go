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

package callback

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/logging"
)

// ErrPIDMismatch is returned when the PIDs in a message don't belong to the same record.
var ErrPIDMismatch = errors.New("process IDs don't match")

// Resolver maps an incoming message to the record it is about. The local PID, taken from the
// request path, picks the record. The PIDs in the message have to agree with it, and a remote
// PID the record doesn't know yet is adopted.
type Resolver struct {
	store persistence.StorageProvider
}

func NewResolver(store persistence.StorageProvider) *Resolver {
	return &Resolver{store: store}
}

// Negotiation resolves a negotiation held in role. The returned record carries an adopted
// remote PID, which is only stored when the record is saved.
//
//nolint:dupl
func (r *Resolver) Negotiation(
	ctx context.Context, role constants.DataspaceRole, localPID shared.NegotiationPID, consumerPID, providerPID string,
) (*contract.Negotiation, error) {
	cPID, err := shared.ParseNegotiationPID(consumerPID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPIDMismatch, err)
	}
	pPID, err := shared.ParseNegotiationPID(providerPID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPIDMismatch, err)
	}
	msgLocal, msgRemote := pPID, cPID
	if role == constants.DataspaceConsumer {
		msgLocal, msgRemote = cPID, pPID
	}
	if !msgLocal.IsZero() && msgLocal != localPID {
		return nil, fmt.Errorf("%w: path %s, message %s", ErrPIDMismatch, localPID, msgLocal)
	}

	neg, err := r.store.GetNegotiation(ctx, role, localPID)
	if err != nil {
		return nil, err
	}
	remote := neg.GetRemotePID()
	switch {
	case msgRemote.IsZero() || msgRemote == remote:
		return neg, nil
	case remote.IsZero():
		logging.Extract(ctx).Info("Adopting remote PID", "remote_pid", msgRemote.String())
		if role == constants.DataspaceProvider {
			return neg.WithConsumerPID(msgRemote), nil
		}
		return neg.WithProviderPID(msgRemote), nil
	default:
		return nil, fmt.Errorf("%w: known remote %s, message %s", ErrPIDMismatch, remote, msgRemote)
	}
}

// Transfer resolves a transfer process held in role.
//
//nolint:dupl
func (r *Resolver) Transfer(
	ctx context.Context, role constants.DataspaceRole, localPID shared.TransferPID, consumerPID, providerPID string,
) (*transfer.Process, error) {
	cPID, err := shared.ParseTransferPID(consumerPID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPIDMismatch, err)
	}
	pPID, err := shared.ParseTransferPID(providerPID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPIDMismatch, err)
	}
	msgLocal, msgRemote := pPID, cPID
	if role == constants.DataspaceConsumer {
		msgLocal, msgRemote = cPID, pPID
	}
	if !msgLocal.IsZero() && msgLocal != localPID {
		return nil, fmt.Errorf("%w: path %s, message %s", ErrPIDMismatch, localPID, msgLocal)
	}

	proc, err := r.store.GetTransfer(ctx, role, localPID)
	if err != nil {
		return nil, err
	}
	remote := proc.GetRemotePID()
	switch {
	case msgRemote.IsZero() || msgRemote == remote:
		return proc, nil
	case remote.IsZero():
		logging.Extract(ctx).Info("Adopting remote PID", "remote_pid", msgRemote.String())
		if role == constants.DataspaceProvider {
			return proc.WithConsumerPID(msgRemote), nil
		}
		return proc.WithProviderPID(msgRemote), nil
	default:
		return nil, fmt.Errorf("%w: known remote %s, message %s", ErrPIDMismatch, remote, msgRemote)
	}
}
