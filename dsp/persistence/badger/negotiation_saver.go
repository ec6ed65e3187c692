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
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	contractopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/contract"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

const negotiationCollection = "negotiation"

var negotiations = collection[*contract.Negotiation]{
	name:     negotiationCollection,
	decode:   contract.FromBytes,
	terminal: func(n *contract.Negotiation) bool { return n.GetState().IsTerminal() },
	indexes: func(n *contract.Negotiation) []indexEntry {
		var idx []indexEntry
		if !n.GetProviderPID().IsZero() {
			idx = append(idx, indexEntry{
				key:    indexKey(negotiationCollection, n.GetRole(), "provider", n.GetProviderPID().String()),
				unique: true,
			})
		}
		if !n.GetConsumerPID().IsZero() {
			idx = append(idx, indexEntry{
				key:    indexKey(negotiationCollection, n.GetRole(), "consumer", n.GetConsumerPID().String()),
				unique: true,
			})
		}
		if a := n.GetAgreement(); a != nil {
			idx = append(idx, indexEntry{
				key:    indexKey(negotiationCollection, n.GetRole(), "agreement", a.ID),
				unique: true,
			})
		}
		return idx
	},
	persisted: func(n *contract.Negotiation, v uint64) *contract.Negotiation { return n.Persisted(v) },
}

func pidKind(role constants.DataspaceRole) string {
	if role == constants.DataspaceProvider {
		return "provider"
	}
	return "consumer"
}

// GetNegotiation gets the negotiation held in role by its local PID.
func (sp *StorageProvider) GetNegotiation(
	ctx context.Context, role constants.DataspaceRole, pid shared.NegotiationPID,
) (*contract.Negotiation, error) {
	key := negotiations.indexKey(role, pidKind(role), pid.String())
	n, err := negotiations.byIndex(sp.db, key)
	if err != nil {
		logging.Extract(ctx).Debug("could not get negotiation", "key", string(key), "err", err)
		return nil, err
	}
	return n, nil
}

func (sp *StorageProvider) FindNegotiation(
	ctx context.Context, opts ...contractopts.NegotiationOption,
) (*contract.Negotiation, error) {
	recs, err := sp.ListNegotiations(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return single(recs)
}

func (sp *StorageProvider) ListNegotiations(
	ctx context.Context, opts ...contractopts.NegotiationOption,
) ([]*contract.Negotiation, error) {
	q := contractopts.NewQuery(opts...)
	var candidates []*contract.Negotiation
	var err error
	switch {
	case q.ProviderPID != nil:
		candidates, err = sp.negotiationsByIndex(q.Role, "provider", q.ProviderPID.String())
	case q.ConsumerPID != nil:
		candidates, err = sp.negotiationsByIndex(q.Role, "consumer", q.ConsumerPID.String())
	case q.AgreementID != nil:
		candidates, err = sp.negotiationsByIndex(q.Role, "agreement", *q.AgreementID)
	default:
		candidates, err = negotiations.all(sp.db)
	}
	if err != nil {
		return nil, fmt.Errorf("could not list negotiations: %w", err)
	}
	return filter(candidates, q.Matches), nil
}

func (sp *StorageProvider) negotiationsByIndex(
	role *constants.DataspaceRole, kind, value string,
) ([]*contract.Negotiation, error) {
	var recs []*contract.Negotiation
	for _, r := range roles(role) {
		n, err := negotiations.byIndex(sp.db, negotiations.indexKey(r, kind, value))
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, n)
	}
	return recs, nil
}

// PutNegotiation saves the negotiation with an optimistic version check.
func (sp *StorageProvider) PutNegotiation(
	ctx context.Context, negotiation *contract.Negotiation,
) (*contract.Negotiation, error) {
	ctx, _ = logging.InjectLabels(ctx, negotiation.GetLogFields("")...)
	return negotiations.put(ctx, sp, negotiation)
}
