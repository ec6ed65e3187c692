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
	"context"
	"net/http"
	"testing"

	"github.com/go-dataspace/dsp-engine/dsp"
	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractRequest(consumerPID shared.NegotiationPID) shared.ContractRequestMessage {
	return shared.ContractRequestMessage{
		Context:         shared.GetDSPContext(),
		Type:            "dspace:ContractRequestMessage",
		ConsumerPID:     consumerPID.URN(),
		Offer:           testOffer().MessageOffer,
		CallbackAddress: "https://consumer.example/dsp",
	}
}

func TestDSPVersion(t *testing.T) {
	t.Parallel()
	n := newNode(t, &discard{})

	resp, data := n.do(t, http.MethodGet, "/.well-known/dspace-version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	version := decode[shared.VersionResponse](t, data)
	require.Len(t, version.ProtocolVersions, 1)
	assert.Equal(t, constants.DSPVersion, version.ProtocolVersions[0].Version)
	assert.Equal(t, constants.APIPath, version.ProtocolVersions[0].Path)

	resp, _ = n.do(t, http.MethodGet, "/.well-known/dspace-trust", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestContractRequestCreatesNegotiation(t *testing.T) {
	t.Parallel()
	n := newNode(t, &discard{})
	cPID := shared.NewNegotiationPID()

	resp, data := n.do(t, http.MethodPost, "/dsp/negotiations/request", contractRequest(cPID))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	state := decode[shared.ContractNegotiation](t, data)
	assert.Equal(t, "dspace:ContractNegotiation", state.Type)
	assert.Equal(t, "dspace:REQUESTED", state.State)
	assert.Equal(t, cPID.URN(), state.ConsumerPID)
	require.NotEmpty(t, state.ProviderPID)

	resp, data = n.do(t, http.MethodGet, "/dsp/negotiations/"+state.ProviderPID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, state, decode[shared.ContractNegotiation](t, data))

	// The same request again yields the record it created the first time.
	resp, data = n.do(t, http.MethodPost, "/dsp/negotiations/request", contractRequest(cPID))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.Equal(t, state.ProviderPID, decode[shared.ContractNegotiation](t, data).ProviderPID)
}

func TestProtocolErrors(t *testing.T) {
	t.Parallel()
	n := newNode(t, &discard{})
	unknown := shared.NewNegotiationPID().URN()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		typ    string
	}{
		{
			name:   "broken json",
			method: http.MethodPost,
			path:   "/dsp/negotiations/request",
			body:   `{"@type": `,
			status: http.StatusBadRequest,
			typ:    "dspace:ContractNegotiationError",
		},
		{
			name:   "wrong message type",
			method: http.MethodPost,
			path:   "/dsp/negotiations/request",
			body: shared.ContractOfferMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:ContractOfferMessage",
				ProviderPID: unknown,
				Offer:       testOffer().MessageOffer,
			},
			status: http.StatusBadRequest,
			typ:    "dspace:ContractNegotiationError",
		},
		{
			name:   "unknown negotiation",
			method: http.MethodGet,
			path:   "/dsp/negotiations/" + unknown,
			status: http.StatusNotFound,
			typ:    "dspace:ContractNegotiationError",
		},
		{
			name:   "malformed PID",
			method: http.MethodGet,
			path:   "/dsp/consumer/negotiations/not-a-pid",
			status: http.StatusNotFound,
			typ:    "dspace:ContractNegotiationError",
		},
		{
			name:   "unknown transfer",
			method: http.MethodGet,
			path:   "/dsp/transfers/" + shared.NewTransferPID().URN(),
			status: http.StatusNotFound,
			typ:    "dspace:TransferError",
		},
		{
			name:   "verification for unknown negotiation",
			method: http.MethodPost,
			path:   "/dsp/negotiations/" + unknown + "/agreement/verification",
			body: shared.ContractAgreementVerificationMessage{
				Context:     shared.GetDSPContext(),
				Type:        "dspace:ContractAgreementVerificationMessage",
				ConsumerPID: shared.NewNegotiationPID().URN(),
				ProviderPID: unknown,
			},
			status: http.StatusNotFound,
			typ:    "dspace:ContractNegotiationError",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := n.do(t, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode, string(data))
			dErr := decode[shared.DSPError](t, data)
			assert.Equal(t, tc.typ, dErr.Type)
			assert.NotEmpty(t, dErr.Code)
			assert.NotEmpty(t, dErr.Reason)
		})
	}
}

func TestInvalidTransitionOverHTTP(t *testing.T) {
	t.Parallel()
	n := newNode(t, &discard{})
	cPID := shared.NewNegotiationPID()
	resp, data := n.do(t, http.MethodPost, "/dsp/negotiations/request", contractRequest(cPID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pPID := decode[shared.ContractNegotiation](t, data).ProviderPID

	// Verifying a negotiation that has no agreement yet skips AGREED.
	resp, data = n.do(t, http.MethodPost, "/dsp/negotiations/"+pPID+"/agreement/verification",
		shared.ContractAgreementVerificationMessage{
			Context:     shared.GetDSPContext(),
			Type:        "dspace:ContractAgreementVerificationMessage",
			ConsumerPID: cPID.URN(),
			ProviderPID: pPID,
		})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	dErr := decode[shared.DSPError](t, data)
	assert.Equal(t, cPID.URN(), dErr.ConsumerPID)
	assert.Equal(t, pPID, dErr.ProviderPID)
	assert.Len(t, n.audit.Events(audit.EventTransitionRejected), 1)

	// Termination is always possible, and repeating it changes nothing.
	term := shared.ContractNegotiationTerminationMessage{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:ContractNegotiationTerminationMessage",
		ConsumerPID: cPID.URN(),
		ProviderPID: pPID,
		Code:        "withdrawn",
		Reason:      shared.NewReasons("no longer needed"),
	}
	for range 2 {
		resp, data = n.do(t, http.MethodPost, "/dsp/negotiations/"+pPID+"/termination", term)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		assert.Equal(t, "dspace:TERMINATED", decode[shared.ContractNegotiation](t, data).State)
	}
	assert.Len(t, n.audit.Events(audit.EventTransition), 2)
}

func TestConsumerReceivesOfferOverHTTP(t *testing.T) {
	t.Parallel()
	n := newNode(t, &discard{})
	pPID := shared.NewNegotiationPID()

	resp, data := n.do(t, http.MethodPost, "/dsp/negotiations/offers", shared.ContractOfferMessage{
		Context:         shared.GetDSPContext(),
		Type:            "dspace:ContractOfferMessage",
		ProviderPID:     pPID.URN(),
		Offer:           testOffer().MessageOffer,
		CallbackAddress: "https://provider.example/dsp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	state := decode[shared.ContractNegotiation](t, data)
	assert.Equal(t, "dspace:OFFERED", state.State)
	assert.Equal(t, pPID.URN(), state.ProviderPID)

	resp, data = n.do(t, http.MethodGet, "/dsp/consumer/negotiations/"+state.ConsumerPID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dspace:OFFERED", decode[shared.ContractNegotiation](t, data).State)

	// An event the consumer can't receive is rejected.
	resp, _ = n.do(t, http.MethodPost, "/dsp/consumer/negotiations/"+state.ConsumerPID+"/events",
		shared.ContractNegotiationEventMessage{
			Context:     shared.GetDSPContext(),
			Type:        "dspace:ContractNegotiationEventMessage",
			ConsumerPID: state.ConsumerPID,
			ProviderPID: pPID.URN(),
			EventType:   "dspace:ACCEPTED",
		})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// Scenario A: a full negotiation between two nodes that only talk over HTTP.
func TestNegotiationBetweenNodes(t *testing.T) {
	t.Parallel()
	consumer := newNode(t, nil)
	provider := newNode(t, nil, engine.WithParticipantID("urn:provider"))

	neg := finalize(t, consumer, provider)
	agreement := neg.GetAgreement()
	require.NotNil(t, agreement)
	assert.Equal(t, datasetID, agreement.Target)
	assert.Equal(t, "urn:provider", agreement.Assigner)

	pNeg, err := provider.neg.GetNegotiation(context.Background(), constants.DataspaceProvider, neg.GetProviderPID())
	require.NoError(t, err)
	assert.Equal(t, contract.States.FINALIZED, pNeg.GetState())
	assert.Equal(t, neg.GetConsumerPID(), pNeg.GetConsumerPID())
	require.NotNil(t, pNeg.GetAgreement())
	assert.Equal(t, agreement.ID, pNeg.GetAgreement().ID)

	// Both parties stored the agreement.
	for _, n := range []*node{consumer, provider} {
		stored, err := n.store.GetAgreement(context.Background(), agreement.ID)
		require.NoError(t, err)
		assert.Equal(t, agreement.ID, stored.ID)
	}

	// A finalized negotiation only ever terminates, FINALIZED is terminal.
	resp, _ := consumer.do(t, http.MethodPost,
		"/control/negotiations/consumer/"+neg.GetConsumerPID().URN()+"/"+dsp.ActionVerify, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, consumer.audit.Events(audit.EventDispatchFailed))
	assert.Empty(t, provider.audit.Events(audit.EventDispatchFailed))
}

func TestAutoProgressBetweenNodes(t *testing.T) {
	t.Parallel()
	consumer := newNode(t, nil, engine.WithAutoProgress(true))
	provider := newNode(t, nil, engine.WithAutoProgress(true))

	neg, err := consumer.neg.RequestContract(context.Background(), provider.base, testOffer())
	require.NoError(t, err)
	cPID := neg.GetConsumerPID()
	consumer.negotiation(t, constants.DataspaceConsumer, cPID, contract.States.FINALIZED)
	pPID := consumer.remoteNegotiationPID(t, constants.DataspaceConsumer, cPID)
	provider.negotiation(t, constants.DataspaceProvider, pPID, contract.States.FINALIZED)
}

func TestProviderInitiatedNegotiation(t *testing.T) {
	t.Parallel()
	consumer := newNode(t, nil)
	provider := newNode(t, nil)

	offer := testOffer()
	offer.Permission = []odrl.Permission{{Action: "odrl:use", Constraint: []odrl.Constraint{{
		LeftOperand:  "odrl:count",
		Operator:     "odrl:lteq",
		RightOperand: "5",
	}}}}
	resp, data := provider.do(t, http.MethodPost, "/control/negotiations", dsp.NegotiationCreateRequest{
		Role:    "provider",
		Address: consumer.base.String(),
		Offer:   offer,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	pPID, err := shared.ParseNegotiationPID(decode[dsp.NegotiationInfo](t, data).ProviderPID)
	require.NoError(t, err)

	cPID := provider.remoteNegotiationPID(t, constants.DataspaceProvider, pPID)
	neg := consumer.negotiation(t, constants.DataspaceConsumer, cPID, contract.States.OFFERED)
	assert.Equal(t, offer.Permission, neg.GetOffer().Permission)

	// The consumer answers with a counter request, the provider terminates.
	counter := testOffer()
	consumer.action(t, "negotiations", "consumer", cPID.URN(), dsp.ActionRequest,
		dsp.NegotiationActionRequest{Offer: &counter})
	provider.negotiation(t, constants.DataspaceProvider, pPID, contract.States.REQUESTED)

	provider.action(t, "negotiations", "provider", pPID.URN(), dsp.ActionTerminate,
		dsp.NegotiationActionRequest{Code: "rejected", Reasons: []string{"no counter offers"}})
	consumer.negotiation(t, constants.DataspaceConsumer, cPID, contract.States.TERMINATED)
}
