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

package dsp

import (
	"strings"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/odrl"
)

// Control API actions on negotiations.
const (
	ActionRequest   = "request"
	ActionOffer     = "offer"
	ActionAccept    = "accept"
	ActionAgree     = "agree"
	ActionVerify    = "verify"
	ActionFinalize  = "finalize"
	ActionTerminate = "terminate"
)

// Control API actions on transfers, next to ActionTerminate.
const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionSuspend  = "suspend"
)

// NegotiationCreateRequest opens a negotiation. A consumer sends a request to the provider at
// address, a provider sends an offer to the consumer at address.
type NegotiationCreateRequest struct {
	Role    string     `json:"role" validate:"required,oneof=consumer provider"`
	Address string     `json:"address" validate:"required,url"`
	Offer   odrl.Offer `json:"offer" validate:"required"`
}

// NegotiationActionRequest carries the optional parameters of a negotiation action.
type NegotiationActionRequest struct {
	Offer   *odrl.Offer `json:"offer,omitempty" validate:"omitempty"`
	Code    string      `json:"code,omitempty"`
	Reasons []string    `json:"reasons,omitempty"`
}

// TransferCreateRequest requests a transfer under a finalized agreement.
type TransferCreateRequest struct {
	AgreementID string              `json:"agreementId" validate:"required"`
	Format      string              `json:"format" validate:"required"`
	DataAddress *shared.DataAddress `json:"dataAddress,omitempty" validate:"omitempty"`
}

// TransferActionRequest carries the optional parameters of a transfer action.
type TransferActionRequest struct {
	DataAddress *shared.DataAddress `json:"dataAddress,omitempty" validate:"omitempty"`
	Code        string              `json:"code,omitempty"`
	Reasons     []string            `json:"reasons,omitempty"`
}

// NegotiationInfo is the control API view of a negotiation.
type NegotiationInfo struct {
	Role            string    `json:"role"`
	ConsumerPID     string    `json:"consumerPid,omitempty"`
	ProviderPID     string    `json:"providerPid,omitempty"`
	State           string    `json:"state"`
	Target          string    `json:"target"`
	AgreementID     string    `json:"agreementId,omitempty"`
	CallbackAddress string    `json:"callbackAddress,omitempty"`
	Version         uint64    `json:"version"`
	Modified        time.Time `json:"modified"`
}

// NewNegotiationInfo converts a negotiation.
func NewNegotiationInfo(n *contract.Negotiation) NegotiationInfo {
	info := NegotiationInfo{
		Role:        strings.ToLower(n.GetRole().String()),
		ConsumerPID: n.GetConsumerPID().URN(),
		ProviderPID: n.GetProviderPID().URN(),
		State:       n.GetState().String(),
		Target:      n.GetOffer().Target,
		Version:     n.GetVersion(),
		Modified:    n.GetModified(),
	}
	if a := n.GetAgreement(); a != nil {
		info.AgreementID = a.ID
	}
	if cb := n.GetCallback(); cb != nil {
		info.CallbackAddress = cb.String()
	}
	return info
}

// NegotiationList is the response of the negotiation listing.
type NegotiationList struct {
	Negotiations []NegotiationInfo `json:"negotiations"`
}

// TransferInfo is the control API view of a transfer process.
type TransferInfo struct {
	Role            string              `json:"role"`
	ConsumerPID     string              `json:"consumerPid,omitempty"`
	ProviderPID     string              `json:"providerPid,omitempty"`
	State           string              `json:"state"`
	AgreementID     string              `json:"agreementId"`
	DatasetID       string              `json:"datasetId"`
	Format          string              `json:"format"`
	DataAddress     *shared.DataAddress `json:"dataAddress,omitempty"`
	CallbackAddress string              `json:"callbackAddress,omitempty"`
	Version         uint64              `json:"version"`
	Modified        time.Time           `json:"modified"`
}

// NewTransferInfo converts a transfer process.
func NewTransferInfo(p *transfer.Process) TransferInfo {
	info := TransferInfo{
		Role:        strings.ToLower(p.GetRole().String()),
		ConsumerPID: p.GetConsumerPID().URN(),
		ProviderPID: p.GetProviderPID().URN(),
		State:       p.GetState().String(),
		AgreementID: p.GetAgreementID(),
		DatasetID:   p.GetDatasetID(),
		Format:      p.GetFormat(),
		DataAddress: p.GetDataAddress(),
		Version:     p.GetVersion(),
		Modified:    p.GetModified(),
	}
	if cb := p.GetCallback(); cb != nil {
		info.CallbackAddress = cb.String()
	}
	return info
}

// TransferList is the response of the transfer listing.
type TransferList struct {
	Transfers []TransferInfo `json:"transfers"`
}

// StartedResponse tells whether a transfer is in the STARTED state.
type StartedResponse struct {
	Started bool `json:"started"`
}
