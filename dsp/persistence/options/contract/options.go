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

// Package contract contains the query options for negotiations.
package contract

import (
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
)

type NegotiationQuery interface {
	SetConsumerPID(shared.NegotiationPID)
	SetProviderPID(shared.NegotiationPID)
	SetAgreementID(string)
	SetRole(constants.DataspaceRole)
	SetState(contract.State)
}

type NegotiationOption func(NegotiationQuery)

func WithConsumerPID(pid shared.NegotiationPID) NegotiationOption {
	return func(nq NegotiationQuery) { nq.SetConsumerPID(pid) }
}

func WithProviderPID(pid shared.NegotiationPID) NegotiationOption {
	return func(nq NegotiationQuery) { nq.SetProviderPID(pid) }
}

// WithRolePID selects by the PID minted by the given role.
func WithRolePID(pid shared.NegotiationPID, role constants.DataspaceRole) NegotiationOption {
	switch role {
	case constants.DataspaceConsumer:
		return WithConsumerPID(pid)
	case constants.DataspaceProvider:
		return WithProviderPID(pid)
	default:
		panic("Undefined dataspace role given")
	}
}

func WithAgreementID(id string) NegotiationOption {
	return func(nq NegotiationQuery) { nq.SetAgreementID(id) }
}

func WithRole(role constants.DataspaceRole) NegotiationOption {
	return func(nq NegotiationQuery) { nq.SetRole(role) }
}

func WithState(state contract.State) NegotiationOption {
	return func(nq NegotiationQuery) { nq.SetState(state) }
}

// Query is a NegotiationQuery that backends can match records against.
type Query struct {
	ConsumerPID *shared.NegotiationPID
	ProviderPID *shared.NegotiationPID
	AgreementID *string
	Role        *constants.DataspaceRole
	State       *contract.State
}

// NewQuery applies the options to an empty query.
func NewQuery(opts ...NegotiationOption) *Query {
	q := &Query{}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Query) SetConsumerPID(p shared.NegotiationPID) { q.ConsumerPID = &p }
func (q *Query) SetProviderPID(p shared.NegotiationPID) { q.ProviderPID = &p }
func (q *Query) SetAgreementID(id string)               { q.AgreementID = &id }
func (q *Query) SetRole(r constants.DataspaceRole)      { q.Role = &r }
func (q *Query) SetState(s contract.State)              { q.State = &s }

// Matches returns true if the negotiation satisfies every set criterium.
func (q *Query) Matches(n *contract.Negotiation) bool {
	if q.ConsumerPID != nil && n.GetConsumerPID() != *q.ConsumerPID {
		return false
	}
	if q.ProviderPID != nil && n.GetProviderPID() != *q.ProviderPID {
		return false
	}
	if q.AgreementID != nil && (n.GetAgreement() == nil || n.GetAgreement().ID != *q.AgreementID) {
		return false
	}
	if q.Role != nil && n.GetRole() != *q.Role {
		return false
	}
	if q.State != nil && n.GetState() != *q.State {
		return false
	}
	return true
}
