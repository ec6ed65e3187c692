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

package shared

import (
	"github.com/go-dataspace/dsp-engine/jsonld"
	"github.com/go-dataspace/dsp-engine/odrl"
)

// ContractRequestMessage is sent by the consumer to start or resume a negotiation.
type ContractRequestMessage struct {
	Context         jsonld.Context    `json:"@context"`
	Type            string            `json:"@type" validate:"required,eq=dspace:ContractRequestMessage"`
	ProviderPID     string            `json:"dspace:providerPid,omitempty" validate:"omitempty,dsp_pid"`
	ConsumerPID     string            `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	Offer           odrl.MessageOffer `json:"dspace:offer" validate:"required"`
	CallbackAddress string            `json:"dspace:callbackAddress,omitempty" validate:"omitempty,url"`
}

// ContractOfferMessage is sent by the provider, either to start a negotiation or as a
// counter-offer.
type ContractOfferMessage struct {
	Context         jsonld.Context    `json:"@context"`
	Type            string            `json:"@type" validate:"required,eq=dspace:ContractOfferMessage"`
	ProviderPID     string            `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID     string            `json:"dspace:consumerPid,omitempty" validate:"omitempty,dsp_pid"`
	Offer           odrl.MessageOffer `json:"dspace:offer" validate:"required"`
	CallbackAddress string            `json:"dspace:callbackAddress,omitempty" validate:"omitempty,url"`
}

// ContractAgreementMessage carries the agreement from the provider to the consumer.
type ContractAgreementMessage struct {
	Context         jsonld.Context `json:"@context"`
	Type            string         `json:"@type" validate:"required,eq=dspace:ContractAgreementMessage"`
	ProviderPID     string         `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID     string         `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	Agreement       odrl.Agreement `json:"dspace:agreement" validate:"required"`
	CallbackAddress string         `json:"dspace:callbackAddress,omitempty" validate:"omitempty,url"`
}

type ContractAgreementVerificationMessage struct {
	Context     jsonld.Context `json:"@context"`
	Type        string         `json:"@type" validate:"required,eq=dspace:ContractAgreementVerificationMessage"`
	ProviderPID string         `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string         `json:"dspace:consumerPid" validate:"required,dsp_pid"`
}

// ContractNegotiationEventMessage carries either the ACCEPTED or the FINALIZED event.
type ContractNegotiationEventMessage struct {
	Context     jsonld.Context `json:"@context"`
	Type        string         `json:"@type" validate:"required,eq=dspace:ContractNegotiationEventMessage"`
	ProviderPID string         `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string         `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	EventType   string         `json:"dspace:eventType" validate:"required,oneof=dspace:ACCEPTED dspace:FINALIZED"`
}

type ContractNegotiationTerminationMessage struct {
	Context     jsonld.Context  `json:"@context"`
	Type        string          `json:"@type" validate:"required,eq=dspace:ContractNegotiationTerminationMessage"`
	ProviderPID string          `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string          `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	Code        string          `json:"dspace:code,omitempty"`
	Reason      []Multilanguage `json:"dspace:reason,omitempty" validate:"omitempty,dive"`
}

// ContractNegotiation is the state representation of a negotiation, returned on creation and
// on state queries.
type ContractNegotiation struct {
	Context     jsonld.Context `json:"@context"`
	Type        string         `json:"@type" validate:"required,eq=dspace:ContractNegotiation"`
	ProviderPID string         `json:"dspace:providerPid,omitempty" validate:"omitempty,dsp_pid"`
	ConsumerPID string         `json:"dspace:consumerPid,omitempty" validate:"omitempty,dsp_pid"`
	State       string         `json:"dspace:state" validate:"required,contract_state"`
}
