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

package dsp_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/go-dataspace/dsp-engine/dsp"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataAddress(endpoint string) *shared.DataAddress {
	return &shared.DataAddress{
		Type:         "dspace:DataAddress",
		EndpointType: "https://w3id.org/idsa/v4.1/HTTP",
		Endpoint:     endpoint,
		EndpointProperties: []shared.EndpointProperty{{
			Type:  "dspace:EndpointProperty",
			Name:  "authorization",
			Value: "Bearer token",
		}},
	}
}

func requestTransfer(t *testing.T, consumer *node, agreementID, format string) (*http.Response, []byte) {
	t.Helper()
	return consumer.do(t, http.MethodPost, "/control/transfers", dsp.TransferCreateRequest{
		AgreementID: agreementID,
		Format:      format,
	})
}

// Scenario B: a transfer under a finalized agreement, started, suspended and resumed by the
// consumer and completed by the provider.
func TestTransferBetweenNodes(t *testing.T) {
	t.Parallel()
	consumer := newNode(t, nil)
	provider := newNode(t, nil)
	agreementID := finalize(t, consumer, provider).GetAgreement().ID

	resp, data := requestTransfer(t, consumer, agreementID, "CSV")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	info := decode[dsp.TransferInfo](t, data)
	assert.Equal(t, "dspace:REQUESTED", info.State)
	assert.Equal(t, datasetID, info.DatasetID)
	cPID, err := shared.ParseTransferPID(info.ConsumerPID)
	require.NoError(t, err)

	pPID := consumer.remoteTransferPID(t, constants.DataspaceConsumer, cPID)
	p := provider.transfer(t, constants.DataspaceProvider, pPID, transfer.States.REQUESTED)
	assert.Equal(t, agreementID, p.GetAgreementID())

	// The provider can't start a requested transfer on its own.
	resp, _ = provider.do(t, http.MethodPost, "/control/transfers/provider/"+pPID.URN()+"/"+dsp.ActionStart, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	first := dataAddress("https://consumer.example/upload/1")
	consumer.action(t, "transfers", "consumer", cPID.URN(), dsp.ActionStart,
		dsp.TransferActionRequest{DataAddress: first})
	p = provider.transfer(t, constants.DataspaceProvider, pPID, transfer.States.STARTED)
	assert.Equal(t, first, p.GetDataAddress())

	started := func(n *node) bool {
		q := url.Values{"consumerPid": {cPID.URN()}, "providerPid": {pPID.URN()}}
		resp, data := n.do(t, http.MethodGet, "/control/transfers/started?"+q.Encode(), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		return decode[dsp.StartedResponse](t, data).Started
	}
	assert.True(t, started(consumer))
	assert.True(t, started(provider))

	consumer.action(t, "transfers", "consumer", cPID.URN(), dsp.ActionSuspend,
		dsp.TransferActionRequest{Code: "paused", Reasons: []string{"maintenance"}})
	provider.transfer(t, constants.DataspaceProvider, pPID, transfer.States.SUSPENDED)
	assert.False(t, started(consumer))

	second := dataAddress("https://consumer.example/upload/2")
	consumer.action(t, "transfers", "consumer", cPID.URN(), dsp.ActionStart,
		dsp.TransferActionRequest{DataAddress: second})
	p = provider.transfer(t, constants.DataspaceProvider, pPID, transfer.States.STARTED)
	assert.Equal(t, second, p.GetDataAddress())

	provider.action(t, "transfers", "provider", pPID.URN(), dsp.ActionComplete, nil)
	consumer.transfer(t, constants.DataspaceConsumer, cPID, transfer.States.COMPLETED)

	// COMPLETED is terminal.
	resp, _ = consumer.do(t, http.MethodPost, "/control/transfers/consumer/"+cPID.URN()+"/"+dsp.ActionStart, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = consumer.do(t, http.MethodGet, "/control/transfers?role=consumer&state=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	list := decode[dsp.TransferList](t, data)
	require.Len(t, list.Transfers, 1)
	assert.Equal(t, cPID.URN(), list.Transfers[0].ConsumerPID)
	assert.Equal(t, pPID.URN(), list.Transfers[0].ProviderPID)
}

func TestTransferRequestErrors(t *testing.T) {
	t.Parallel()
	consumer := newNode(t, nil)
	provider := newNode(t, nil)
	agreementID := finalize(t, consumer, provider).GetAgreement().ID

	// Without a finalized agreement the consumer doesn't even ask.
	resp, data := requestTransfer(t, consumer, "urn:uuid:00000000-0000-0000-0000-000000000001", "CSV")
	require.Equal(t, http.StatusNotFound, resp.StatusCode, string(data))

	// The provider rejects formats it doesn't serve, and stores nothing.
	cPID := shared.NewTransferPID()
	resp, data = provider.do(t, http.MethodPost, "/dsp/transfers/request", shared.TransferRequestMessage{
		Context:         shared.GetDSPContext(),
		Type:            "dspace:TransferRequestMessage",
		AgreementID:     agreementID,
		Format:          "XML",
		CallbackAddress: consumer.base.String(),
		ConsumerPID:     cPID.URN(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	dErr := decode[shared.DSPError](t, data)
	assert.Equal(t, "dspace:TransferError", dErr.Type)
	assert.Equal(t, cPID.URN(), dErr.ConsumerPID)

	resp, data = provider.do(t, http.MethodGet, "/control/transfers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[dsp.TransferList](t, data).Transfers)

	// A supported format is accepted over the protocol endpoint directly.
	resp, data = provider.do(t, http.MethodPost, "/dsp/transfers/request", shared.TransferRequestMessage{
		Context:         shared.GetDSPContext(),
		Type:            "dspace:TransferRequestMessage",
		AgreementID:     agreementID,
		Format:          "JSON",
		CallbackAddress: consumer.base.String(),
		ConsumerPID:     cPID.URN(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	state := decode[shared.TransferProcess](t, data)
	assert.Equal(t, "dspace:REQUESTED", state.State)

	resp, data = provider.do(t, http.MethodGet, "/dsp/transfers/"+state.ProviderPID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, state, decode[shared.TransferProcess](t, data))
}
