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

// Package transfer contains the transfer process state machine and the transfer record.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a transition is not in the transition table.
var ErrInvalidTransition = errors.New("invalid transition")

// Process is one party's view of a transfer process. Like the negotiation, it is immutable.
type Process struct {
	id          uuid.UUID
	providerPID shared.TransferPID
	consumerPID shared.TransferPID
	role        constants.DataspaceRole
	state       State
	agreementID string
	datasetID   string
	format      string
	dataAddress *shared.DataAddress
	callback    *url.URL
	self        *url.URL
	created     time.Time
	modified    time.Time
	actor       constants.DataspaceRole
	version     uint64
	traceInfo   shared.TraceInfo
}

// New creates a new, unsaved transfer process.
func New(
	ctx context.Context,
	role constants.DataspaceRole,
	providerPID, consumerPID shared.TransferPID,
	state State,
	agreementID, datasetID, format string,
	dataAddress *shared.DataAddress,
	callback, self *url.URL,
) *Process {
	now := time.Now().UTC()
	p := &Process{
		id:          uuid.New(),
		providerPID: providerPID,
		consumerPID: consumerPID,
		role:        role,
		state:       state,
		agreementID: agreementID,
		datasetID:   datasetID,
		format:      format,
		dataAddress: dataAddress,
		callback:    callback,
		self:        self,
		created:     now,
		modified:    now,
		actor:       role,
		traceInfo:   shared.ExtractTraceInfo(ctx),
	}
	logging.Extract(ctx).Info("creating new transfer process", p.GetLogFields("")...)
	return p
}

func (p *Process) GetID() uuid.UUID                    { return p.id }
func (p *Process) GetProviderPID() shared.TransferPID  { return p.providerPID }
func (p *Process) GetConsumerPID() shared.TransferPID  { return p.consumerPID }
func (p *Process) GetRole() constants.DataspaceRole    { return p.role }
func (p *Process) GetState() State                     { return p.state }
func (p *Process) GetAgreementID() string              { return p.agreementID }
func (p *Process) GetDatasetID() string                { return p.datasetID }
func (p *Process) GetFormat() string                   { return p.format }
func (p *Process) GetDataAddress() *shared.DataAddress { return p.dataAddress }
func (p *Process) GetCallback() *url.URL               { return p.callback }
func (p *Process) GetSelf() *url.URL                   { return p.self }
func (p *Process) GetCreated() time.Time               { return p.created }
func (p *Process) GetModified() time.Time              { return p.modified }
func (p *Process) GetActor() constants.DataspaceRole   { return p.actor }
func (p *Process) GetVersion() uint64                  { return p.version }
func (p *Process) GetTraceInfo() shared.TraceInfo      { return p.traceInfo }

func (p *Process) GetLocalPID() shared.TransferPID {
	if p.role == constants.DataspaceProvider {
		return p.providerPID
	}
	return p.consumerPID
}

func (p *Process) GetRemotePID() shared.TransferPID {
	if p.role == constants.DataspaceProvider {
		return p.consumerPID
	}
	return p.providerPID
}

func (p *Process) GetLogFields(suffix string) []any {
	return []any{
		"role" + suffix, p.role.String(),
		"consumerPID" + suffix, p.consumerPID.String(),
		"providerPID" + suffix, p.providerPID.String(),
		"state" + suffix, p.state.String(),
		"agreementID" + suffix, p.agreementID,
		"format" + suffix, p.format,
		"version" + suffix, p.version,
	}
}

func (p *Process) clone() *Process {
	c := *p
	return &c
}

// Transit returns a copy in the target state. Entering STARTED drops the data address, use
// Start to supply a new one.
func (p *Process) Transit(target State, actor constants.DataspaceRole) (*Process, error) {
	if !p.state.CanTransitTo(target) {
		return nil, fmt.Errorf("%w: can't transition from %s to %s", ErrInvalidTransition, p.state, target)
	}
	c := p.clone()
	c.state = target
	c.actor = actor
	c.modified = time.Now().UTC()
	if target == States.STARTED {
		c.dataAddress = nil
	}
	return c, nil
}

// Start transitions to STARTED, replacing the data address.
func (p *Process) Start(actor constants.DataspaceRole, addr *shared.DataAddress) (*Process, error) {
	c, err := p.Transit(States.STARTED, actor)
	if err != nil {
		return nil, err
	}
	c.dataAddress = addr
	return c, nil
}

// WithActor returns a copy attributed to actor, for records created on behalf of the peer.
func (p *Process) WithActor(actor constants.DataspaceRole) *Process {
	c := p.clone()
	c.actor = actor
	return c
}

func (p *Process) WithProviderPID(pid shared.TransferPID) *Process {
	c := p.clone()
	c.providerPID = pid
	return c
}

func (p *Process) WithConsumerPID(pid shared.TransferPID) *Process {
	c := p.clone()
	c.consumerPID = pid
	return c
}

func (p *Process) WithCallback(u *url.URL) *Process {
	c := p.clone()
	c.callback = u
	return c
}

// Persisted returns a copy carrying the version assigned by the storage backend.
func (p *Process) Persisted(version uint64) *Process {
	c := p.clone()
	c.version = version
	return c
}

// GetTransferProcess returns the protocol representation.
func (p *Process) GetTransferProcess() shared.TransferProcess {
	return shared.TransferProcess{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:TransferProcess",
		ProviderPID: p.providerPID.URN(),
		ConsumerPID: p.consumerPID.URN(),
		State:       p.state.String(),
	}
}

type storableProcess struct {
	ID          uuid.UUID               `json:"id"`
	ProviderPID shared.TransferPID      `json:"providerPid"`
	ConsumerPID shared.TransferPID      `json:"consumerPid"`
	Role        constants.DataspaceRole `json:"role"`
	State       State                   `json:"state"`
	AgreementID string                  `json:"agreementId"`
	DatasetID   string                  `json:"datasetId"`
	Format      string                  `json:"format"`
	DataAddress *shared.DataAddress     `json:"dataAddress,omitempty"`
	Callback    string                  `json:"callback,omitempty"`
	Self        string                  `json:"self,omitempty"`
	Created     time.Time               `json:"created"`
	Modified    time.Time               `json:"modified"`
	Actor       constants.DataspaceRole `json:"actor"`
	Version     uint64                  `json:"version"`
	TraceInfo   shared.TraceInfo        `json:"traceInfo"`
}

func (p *Process) ToBytes() ([]byte, error) {
	s := storableProcess{
		ID:          p.id,
		ProviderPID: p.providerPID,
		ConsumerPID: p.consumerPID,
		Role:        p.role,
		State:       p.state,
		AgreementID: p.agreementID,
		DatasetID:   p.datasetID,
		Format:      p.format,
		DataAddress: p.dataAddress,
		Created:     p.created,
		Modified:    p.modified,
		Actor:       p.actor,
		Version:     p.version,
		TraceInfo:   p.traceInfo,
	}
	if p.callback != nil {
		s.Callback = p.callback.String()
	}
	if p.self != nil {
		s.Self = p.self.String()
	}
	return json.Marshal(s)
}

func FromBytes(b []byte) (*Process, error) {
	var s storableProcess
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("could not decode transfer process: %w", err)
	}
	p := &Process{
		id:          s.ID,
		providerPID: s.ProviderPID,
		consumerPID: s.ConsumerPID,
		role:        s.Role,
		state:       s.State,
		agreementID: s.AgreementID,
		datasetID:   s.DatasetID,
		format:      s.Format,
		dataAddress: s.DataAddress,
		created:     s.Created,
		modified:    s.Modified,
		actor:       s.Actor,
		version:     s.Version,
		traceInfo:   s.TraceInfo,
	}
	var err error
	if s.Callback != "" {
		if p.callback, err = url.Parse(s.Callback); err != nil {
			return nil, err
		}
	}
	if s.Self != "" {
		if p.self, err = url.Parse(s.Self); err != nil {
			return nil, err
		}
	}
	return p, nil
}
