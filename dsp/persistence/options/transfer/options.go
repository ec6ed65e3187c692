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

// Package transfer contains the query options for transfer processes.
package transfer

import (
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
)

type TransferQuery interface {
	SetConsumerPID(shared.TransferPID)
	SetProviderPID(shared.TransferPID)
	SetAgreementID(string)
	SetRole(constants.DataspaceRole)
	SetState(transfer.State)
}

type TransferOption func(TransferQuery)

func WithConsumerPID(pid shared.TransferPID) TransferOption {
	return func(tq TransferQuery) { tq.SetConsumerPID(pid) }
}

func WithProviderPID(pid shared.TransferPID) TransferOption {
	return func(tq TransferQuery) { tq.SetProviderPID(pid) }
}

func WithRolePID(pid shared.TransferPID, role constants.DataspaceRole) TransferOption {
	if role == constants.DataspaceProvider {
		return WithProviderPID(pid)
	}
	return WithConsumerPID(pid)
}

func WithAgreementID(id string) TransferOption {
	return func(tq TransferQuery) { tq.SetAgreementID(id) }
}

func WithRole(role constants.DataspaceRole) TransferOption {
	return func(tq TransferQuery) { tq.SetRole(role) }
}

func WithState(state transfer.State) TransferOption {
	return func(tq TransferQuery) { tq.SetState(state) }
}

// Query is a TransferQuery that backends can match records against.
type Query struct {
	ConsumerPID *shared.TransferPID
	ProviderPID *shared.TransferPID
	AgreementID *string
	Role        *constants.DataspaceRole
	State       *transfer.State
}

func NewQuery(opts ...TransferOption) *Query {
	q := &Query{}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Query) SetConsumerPID(p shared.TransferPID) { q.ConsumerPID = &p }
func (q *Query) SetProviderPID(p shared.TransferPID) { q.ProviderPID = &p }
func (q *Query) SetAgreementID(id string)            { q.AgreementID = &id }
func (q *Query) SetRole(r constants.DataspaceRole)   { q.Role = &r }
func (q *Query) SetState(s transfer.State)           { q.State = &s }

func (q *Query) Matches(p *transfer.Process) bool {
	if q.ConsumerPID != nil && p.GetConsumerPID() != *q.ConsumerPID {
		return false
	}
	if q.ProviderPID != nil && p.GetProviderPID() != *q.ProviderPID {
		return false
	}
	if q.AgreementID != nil && p.GetAgreementID() != *q.AgreementID {
		return false
	}
	if q.Role != nil && p.GetRole() != *q.Role {
		return false
	}
	if q.State != nil && p.GetState() != *q.State {
		return false
	}
	return true
}
