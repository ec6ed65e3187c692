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

import "github.com/go-dataspace/dsp-engine/jsonld"

type TransferRequestMessage struct {
	Context         jsonld.Context `json:"@context"`
	Type            string         `json:"@type" validate:"required,eq=dspace:TransferRequestMessage"`
	AgreementID     string         `json:"dspace:agreementId" validate:"required"`
	Format          string         `json:"dct:format" validate:"required"`
	DataAddress     *DataAddress   `json:"dspace:dataAddress,omitempty" validate:"omitempty"`
	CallbackAddress string         `json:"dspace:callbackAddress" validate:"required,url"`
	ConsumerPID     string         `json:"dspace:consumerPid" validate:"required,dsp_pid"`
}

// TransferStartMessage starts or resumes a transfer, the data address replaces any earlier one.
type TransferStartMessage struct {
	Context     jsonld.Context `json:"@context"`
	Type        string         `json:"@type" validate:"required,eq=dspace:TransferStartMessage"`
	ProviderPID string         `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string         `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	DataAddress *DataAddress   `json:"dspace:dataAddress,omitempty" validate:"omitempty"`
}

type TransferSuspensionMessage struct {
	Context     jsonld.Context  `json:"@context"`
	Type        string          `json:"@type" validate:"required,eq=dspace:TransferSuspensionMessage"`
	ProviderPID string          `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string          `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	Code        string          `json:"dspace:code,omitempty"`
	Reason      []Multilanguage `json:"dspace:reason,omitempty" validate:"omitempty,dive"`
}

type TransferCompletionMessage struct {
	Context     jsonld.Context `json:"@context"`
	Type        string         `json:"@type" validate:"required,eq=dspace:TransferCompletionMessage"`
	ProviderPID string         `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string         `json:"dspace:consumerPid" validate:"required,dsp_pid"`
}

type TransferTerminationMessage struct {
	Context     jsonld.Context  `json:"@context"`
	Type        string          `json:"@type" validate:"required,eq=dspace:TransferTerminationMessage"`
	ProviderPID string          `json:"dspace:providerPid" validate:"required,dsp_pid"`
	ConsumerPID string          `json:"dspace:consumerPid" validate:"required,dsp_pid"`
	Code        string          `json:"dspace:code,omitempty"`
	Reason      []Multilanguage `json:"dspace:reason,omitempty" validate:"omitempty,dive"`
}

// TransferProcess is the state representation of a transfer.
type TransferProcess struct {
	Context     jsonld.Context `json:"@context"`
	Type        string         `json:"@type" validate:"required,eq=dspace:TransferProcess"`
	ProviderPID string         `json:"dspace:providerPid,omitempty" validate:"omitempty,dsp_pid"`
	ConsumerPID string         `json:"dspace:consumerPid,omitempty" validate:"omitempty,dsp_pid"`
	State       string         `json:"dspace:state" validate:"required,transfer_state"`
}

// DataAddress tells the consumer where and how to fetch the data.
type DataAddress struct {
	Type               string             `json:"@type" validate:"required,eq=dspace:DataAddress"`
	EndpointType       string             `json:"dspace:endpointType" validate:"required"`
	Endpoint           string             `json:"dspace:endpoint" validate:"required"`
	EndpointProperties []EndpointProperty `json:"dspace:endpointProperties,omitempty" validate:"omitempty,dive"`
}

type EndpointProperty struct {
	Type  string `json:"@type" validate:"required,eq=dspace:EndpointProperty"`
	Name  string `json:"dspace:name" validate:"required"`
	Value string `json:"dspace:value" validate:"required"`
}
