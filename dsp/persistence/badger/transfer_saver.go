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

package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	transferopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/transfer"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/logging"
)

const transferCollection = "transfer"

// Many transfers can run under one agreement, so the agreement index is not unique.
var transfers = collection[*transfer.Process]{
	name:     transferCollection,
	decode:   transfer.FromBytes,
	terminal: func(p *transfer.Process) bool { return p.GetState().IsTerminal() },
	indexes: func(p *transfer.Process) []indexEntry {
		var idx []indexEntry
		if !p.GetProviderPID().IsZero() {
			idx = append(idx, indexEntry{
				key:    indexKey(transferCollection, p.GetRole(), "provider", p.GetProviderPID().String()),
				unique: true,
			})
		}
		if !p.GetConsumerPID().IsZero() {
			idx = append(idx, indexEntry{
				key:    indexKey(transferCollection, p.GetRole(), "consumer", p.GetConsumerPID().String()),
				unique: true,
			})
		}
		if p.GetAgreementID() != "" {
			idx = append(idx, indexEntry{
				key: indexKey(
					transferCollection, p.GetRole(), "agreement", p.GetAgreementID()+"/"+p.GetID().String()),
			})
		}
		return idx
	},
	persisted: func(p *transfer.Process, v uint64) *transfer.Process { return p.Persisted(v) },
}

// GetTransfer gets the transfer held in role by its local PID.
func (sp *StorageProvider) GetTransfer(
	ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID,
) (*transfer.Process, error) {
	key := transfers.indexKey(role, pidKind(role), pid.String())
	p, err := transfers.byIndex(sp.db, key)
	if err != nil {
		logging.Extract(ctx).Debug("could not get transfer", "key", string(key), "err", err)
		return nil, err
	}
	return p, nil
}

func (sp *StorageProvider) FindTransfer(
	ctx context.Context, opts ...transferopts.TransferOption,
) (*transfer.Process, error) {
	recs, err := sp.ListTransfers(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return single(recs)
}

func (sp *StorageProvider) ListTransfers(
	ctx context.Context, opts ...transferopts.TransferOption,
) ([]*transfer.Process, error) {
	q := transferopts.NewQuery(opts...)
	var candidates []*transfer.Process
	var err error
	switch {
	case q.ProviderPID != nil:
		candidates, err = sp.transfersByIndex(q.Role, "provider", q.ProviderPID.String())
	case q.ConsumerPID != nil:
		candidates, err = sp.transfersByIndex(q.Role, "consumer", q.ConsumerPID.String())
	case q.AgreementID != nil:
		for _, r := range roles(q.Role) {
			var recs []*transfer.Process
			recs, err = transfers.byIndexPrefix(sp.db, transfers.indexPrefix(r, "agreement", *q.AgreementID))
			if err != nil {
				break
			}
			candidates = append(candidates, recs...)
		}
	default:
		candidates, err = transfers.all(sp.db)
	}
	if err != nil {
		return nil, fmt.Errorf("could not list transfers: %w", err)
	}
	return filter(candidates, q.Matches), nil
}

func (sp *StorageProvider) transfersByIndex(
	role *constants.DataspaceRole, kind, value string,
) ([]*transfer.Process, error) {
	var recs []*transfer.Process
	for _, r := range roles(role) {
		p, err := transfers.byIndex(sp.db, transfers.indexKey(r, kind, value))
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, p)
	}
	return recs, nil
}

// PutTransfer saves the transfer with an optimistic version check.
func (sp *StorageProvider) PutTransfer(ctx context.Context, process *transfer.Process) (*transfer.Process, error) {
	ctx, _ = logging.InjectLabels(ctx, process.GetLogFields("")...)
	return transfers.put(ctx, sp, process)
}
