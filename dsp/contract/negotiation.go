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

// Package contract contains the contract negotiation state machine and the negotiation record.
package contract

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
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a transition is not in the transition table.
var ErrInvalidTransition = errors.New("invalid transition")

// Negotiation is one party's view of a contract negotiation. It is immutable, every change
// returns a modified copy that has to be saved to take effect.
type Negotiation struct {
	id          uuid.UUID
	providerPID shared.NegotiationPID
	consumerPID shared.NegotiationPID
	state       State
	role        constants.DataspaceRole
	offer       odrl.Offer
	agreement   *odrl.Agreement
	callback    *url.URL
	self        *url.URL
	created     time.Time
	modified    time.Time
	actor       constants.DataspaceRole
	version     uint64
	traceInfo   shared.TraceInfo
}

// New creates a new, unsaved negotiation.
func New(
	ctx context.Context,
	role constants.DataspaceRole,
	providerPID, consumerPID shared.NegotiationPID,
	state State,
	offer odrl.Offer,
	callback, self *url.URL,
) *Negotiation {
	now := time.Now().UTC()
	neg := &Negotiation{
		id:          uuid.New(),
		providerPID: providerPID,
		consumerPID: consumerPID,
		state:       state,
		role:        role,
		offer:       offer,
		callback:    callback,
		self:        self,
		created:     now,
		modified:    now,
		actor:       role,
		traceInfo:   shared.ExtractTraceInfo(ctx),
	}
	logging.Extract(ctx).Info("creating new contract negotiation", neg.GetLogFields("")...)
	return neg
}

func (cn *Negotiation) GetID() uuid.UUID                      { return cn.id }
func (cn *Negotiation) GetProviderPID() shared.NegotiationPID { return cn.providerPID }
func (cn *Negotiation) GetConsumerPID() shared.NegotiationPID { return cn.consumerPID }
func (cn *Negotiation) GetState() State                       { return cn.state }
func (cn *Negotiation) GetOffer() odrl.Offer                  { return cn.offer }
func (cn *Negotiation) GetAgreement() *odrl.Agreement         { return cn.agreement }
func (cn *Negotiation) GetRole() constants.DataspaceRole      { return cn.role }
func (cn *Negotiation) GetCallback() *url.URL                 { return cn.callback }
func (cn *Negotiation) GetSelf() *url.URL                     { return cn.self }
func (cn *Negotiation) GetCreated() time.Time                 { return cn.created }
func (cn *Negotiation) GetModified() time.Time                { return cn.modified }
func (cn *Negotiation) GetActor() constants.DataspaceRole     { return cn.actor }
func (cn *Negotiation) GetVersion() uint64                    { return cn.version }
func (cn *Negotiation) GetTraceInfo() shared.TraceInfo        { return cn.traceInfo }

// GetLocalPID returns the PID minted by this party.
func (cn *Negotiation) GetLocalPID() shared.NegotiationPID {
	if cn.role == constants.DataspaceProvider {
		return cn.providerPID
	}
	return cn.consumerPID
}

// GetRemotePID returns the PID minted by the counterpart, it may be zero until learned.
func (cn *Negotiation) GetRemotePID() shared.NegotiationPID {
	if cn.role == constants.DataspaceProvider {
		return cn.consumerPID
	}
	return cn.providerPID
}

func (cn *Negotiation) GetLogFields(suffix string) []any {
	return []any{
		"role" + suffix, cn.role.String(),
		"consumerPID" + suffix, cn.consumerPID.String(),
		"providerPID" + suffix, cn.providerPID.String(),
		"state" + suffix, cn.state.String(),
		"version" + suffix, cn.version,
	}
}

func (cn *Negotiation) clone() *Negotiation {
	c := *cn
	return &c
}

// Transit returns a copy in the target state. It only checks the transition table, checking
// whether the actor may originate the transition is up to the caller.
func (cn *Negotiation) Transit(target State, actor constants.DataspaceRole) (*Negotiation, error) {
	if !cn.state.CanTransitTo(target) {
		return nil, fmt.Errorf("%w: can't transition from %s to %s", ErrInvalidTransition, cn.state, target)
	}
	c := cn.clone()
	c.state = target
	c.actor = actor
	c.modified = time.Now().UTC()
	return c, nil
}

// WithActor returns a copy attributed to actor, for records created on behalf of the peer.
func (cn *Negotiation) WithActor(actor constants.DataspaceRole) *Negotiation {
	c := cn.clone()
	c.actor = actor
	return c
}

func (cn *Negotiation) WithOffer(o odrl.Offer) *Negotiation {
	c := cn.clone()
	c.offer = o
	return c
}

func (cn *Negotiation) WithAgreement(a *odrl.Agreement) *Negotiation {
	c := cn.clone()
	c.agreement = a
	return c
}

func (cn *Negotiation) WithCallback(u *url.URL) *Negotiation {
	c := cn.clone()
	c.callback = u
	return c
}

func (cn *Negotiation) WithProviderPID(p shared.NegotiationPID) *Negotiation {
	c := cn.clone()
	c.providerPID = p
	return c
}

func (cn *Negotiation) WithConsumerPID(p shared.NegotiationPID) *Negotiation {
	c := cn.clone()
	c.consumerPID = p
	return c
}

// Persisted returns a copy carrying the version assigned by the storage backend.
func (cn *Negotiation) Persisted(version uint64) *Negotiation {
	c := cn.clone()
	c.version = version
	return c
}

// GetContractNegotiation returns the protocol representation.
func (cn *Negotiation) GetContractNegotiation() shared.ContractNegotiation {
	return shared.ContractNegotiation{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:ContractNegotiation",
		ConsumerPID: cn.consumerPID.URN(),
		ProviderPID: cn.providerPID.URN(),
		State:       cn.state.String(),
	}
}

type storableNegotiation struct {
	ID          uuid.UUID               `json:"id"`
	ProviderPID shared.NegotiationPID   `json:"providerPid"`
	ConsumerPID shared.NegotiationPID   `json:"consumerPid"`
	State       State                   `json:"state"`
	Role        constants.DataspaceRole `json:"role"`
	Offer       odrl.Offer              `json:"offer"`
	Agreement   *odrl.Agreement         `json:"agreement,omitempty"`
	Callback    string                  `json:"callback,omitempty"`
	Self        string                  `json:"self,omitempty"`
	Created     time.Time               `json:"created"`
	Modified    time.Time               `json:"modified"`
	Actor       constants.DataspaceRole `json:"actor"`
	Version     uint64                  `json:"version"`
	TraceInfo   shared.TraceInfo        `json:"traceInfo"`
}

// ToBytes serialises the negotiation for storage.
func (cn *Negotiation) ToBytes() ([]byte, error) {
	s := storableNegotiation{
		ID:          cn.id,
		ProviderPID: cn.providerPID,
		ConsumerPID: cn.consumerPID,
		State:       cn.state,
		Role:        cn.role,
		Offer:       cn.offer,
		Agreement:   cn.agreement,
		Created:     cn.created,
		Modified:    cn.modified,
		Actor:       cn.actor,
		Version:     cn.version,
		TraceInfo:   cn.traceInfo,
	}
	if cn.callback != nil {
		s.Callback = cn.callback.String()
	}
	if cn.self != nil {
		s.Self = cn.self.String()
	}
	return json.Marshal(s)
}

// FromBytes deserialises a stored negotiation.
func FromBytes(b []byte) (*Negotiation, error) {
	var s storableNegotiation
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("could not decode negotiation: %w", err)
	}
	cn := &Negotiation{
		id:          s.ID,
		providerPID: s.ProviderPID,
		consumerPID: s.ConsumerPID,
		state:       s.State,
		role:        s.Role,
		offer:       s.Offer,
		agreement:   s.Agreement,
		created:     s.Created,
		modified:    s.Modified,
		actor:       s.Actor,
		version:     s.Version,
		traceInfo:   s.TraceInfo,
	}
	var err error
	if cn.callback, err = parseOptionalURL(s.Callback); err != nil {
		return nil, err
	}
	if cn.self, err = parseOptionalURL(s.Self); err != nil {
		return nil, err
	}
	return cn, nil
}

func parseOptionalURL(s string) (*url.URL, error) {
	if s == "" {
		return nil, nil //nolint:nilnil
	}
	return url.Parse(s)
}
