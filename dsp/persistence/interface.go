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

// Package persistence contains the storage interfaces of the engines.
package persistence

import (
	"context"
	"errors"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	contractopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/contract"
	transferopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/transfer"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/odrl"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when the stored version differs from the version of the
	// record being saved. The caller should reload and retry.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when saving would create a second live record for the same PID,
	// or a second agreement with the same ID.
	ErrDuplicate = errors.New("duplicate")
	// ErrAmbiguous is returned by the Find calls when more than one record matches.
	ErrAmbiguous = errors.New("more than one record matches")
)

// StorageProvider is the full storage backend.
type StorageProvider interface {
	NegotiationSaver
	AgreementSaver
	TransferSaver
	Close() error
}

type NegotiationSaver interface {
	// GetNegotiation gets the negotiation held in role by its local PID.
	GetNegotiation(
		ctx context.Context, role constants.DataspaceRole, pid shared.NegotiationPID,
	) (*contract.Negotiation, error)
	// FindNegotiation returns the single negotiation matching all the options.
	FindNegotiation(ctx context.Context, opts ...contractopts.NegotiationOption) (*contract.Negotiation, error)
	// ListNegotiations returns all negotiations matching all the options.
	ListNegotiations(ctx context.Context, opts ...contractopts.NegotiationOption) ([]*contract.Negotiation, error)
	// PutNegotiation saves a negotiation. A record with version 0 is created, any other record
	// is only written if the stored version is equal to its version. It returns the saved
	// record, carrying its new version.
	PutNegotiation(ctx context.Context, negotiation *contract.Negotiation) (*contract.Negotiation, error)
}

type AgreementSaver interface {
	// GetAgreement gets an agreement by ID.
	GetAgreement(ctx context.Context, id string) (*odrl.Agreement, error)
	// PutAgreement stores an agreement, agreements are write-once.
	PutAgreement(ctx context.Context, agreement *odrl.Agreement) error
}

type TransferSaver interface {
	GetTransfer(ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID) (*transfer.Process, error)
	FindTransfer(ctx context.Context, opts ...transferopts.TransferOption) (*transfer.Process, error)
	ListTransfers(ctx context.Context, opts ...transferopts.TransferOption) ([]*transfer.Process, error)
	// PutTransfer has the same versioning semantics as PutNegotiation.
	PutTransfer(ctx context.Context, process *transfer.Process) (*transfer.Process, error)
}
