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

package engine_test

import (
	"testing"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	transferopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/transfer"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataAddress(endpoint string) *shared.DataAddress {
	return &shared.DataAddress{
		Type:         "dspace:DataAddress",
		EndpointType: "https://w3id.org/idsa/v4.1/HTTP",
		Endpoint:     endpoint,
	}
}

func transferRequest(agreementID, format string) shared.TransferRequestMessage {
	return shared.TransferRequestMessage{
		Context:         shared.GetDSPContext(),
		Type:            "dspace:TransferRequestMessage",
		AgreementID:     agreementID,
		Format:          format,
		CallbackAddress: consumerURL.String(),
		ConsumerPID:     shared.NewTransferPID().URN(),
	}
}

// pids returns the PIDs of proc the way messages carry them.
func pids(proc *transfer.Process) (string, string) {
	return proc.GetConsumerPID().URN(), proc.GetProviderPID().URN()
}

func TestMayOriginateTransfer(t *testing.T) {
	t.Parallel()
	s := transfer.States
	assert.True(t, engine.MayOriginateTransfer(constants.DataspaceConsumer, s.REQUESTED, s.STARTED))
	assert.False(t, engine.MayOriginateTransfer(constants.DataspaceProvider, s.REQUESTED, s.STARTED))
	assert.True(t, engine.MayOriginateTransfer(constants.DataspaceProvider, s.SUSPENDED, s.STARTED))
	assert.True(t, engine.MayOriginateTransfer(constants.DataspaceProvider, s.STARTED, s.SUSPENDED))
	assert.True(t, engine.MayOriginateTransfer(constants.DataspaceProvider, s.STARTED, s.COMPLETED))
	assert.True(t, engine.MayOriginateTransfer(constants.DataspaceProvider, s.REQUESTED, s.TERMINATED))
}

// TestProviderTransfer walks a provider held transfer through start, suspend, restart and
// completion, with the consumer's messages applied as they arrive.
func TestProviderTransfer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	neg := f.finalizedProvider(t, testOffer())
	agreementID := neg.GetAgreement().ID

	proc, err := f.tr.InitiateTransfer(f.ctx, transferRequest(agreementID, "text/csv"))
	require.NoError(t, err)
	assert.Equal(t, transfer.States.REQUESTED, proc.GetState())
	assert.Equal(t, datasetID, proc.GetDatasetID())
	assert.Equal(t, constants.DataspaceConsumer, proc.GetActor())
	pPID := proc.GetProviderPID()
	cPID, pPIDs := pids(proc)
	assert.False(t, f.tr.IsTransferStarted(f.ctx, proc.GetConsumerPID(), pPID))

	first := dataAddress("https://data.example/1")
	proc, err = f.tr.StartTransfer(f.ctx, constants.DataspaceProvider, pPID, shared.TransferStartMessage{
		ConsumerPID: cPID, ProviderPID: pPIDs, DataAddress: first,
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.States.STARTED, proc.GetState())
	assert.Equal(t, first, proc.GetDataAddress())
	assert.True(t, f.tr.IsTransferStarted(f.ctx, proc.GetConsumerPID(), pPID))

	proc, err = f.tr.SuspendTransfer(f.ctx, constants.DataspaceProvider, pPID, shared.TransferSuspensionMessage{
		ConsumerPID: cPID, ProviderPID: pPIDs, Reason: shared.NewReasons("maintenance"),
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.States.SUSPENDED, proc.GetState())
	assert.False(t, f.tr.IsTransferStarted(f.ctx, proc.GetConsumerPID(), pPID))

	second := dataAddress("https://data.example/2")
	proc, err = f.tr.StartTransfer(f.ctx, constants.DataspaceProvider, pPID, shared.TransferStartMessage{
		ConsumerPID: cPID, ProviderPID: pPIDs, DataAddress: second,
	})
	require.NoError(t, err)
	assert.Equal(t, second, proc.GetDataAddress())

	sent := f.sent.count()
	proc, err = f.tr.SendCompletion(f.ctx, constants.DataspaceProvider, pPID)
	require.NoError(t, err)
	assert.Equal(t, transfer.States.COMPLETED, proc.GetState())
	assert.True(t, proc.GetState().IsTerminal())
	assert.Equal(t, sent+1, f.sent.count())
	n := f.sent.last(t)
	assert.Equal(t, "https://consumer.example/dsp/consumer/transfers/"+cPID+"/completion", n.URL.String())

	_, err = f.tr.StartTransfer(f.ctx, constants.DataspaceProvider, pPID, shared.TransferStartMessage{
		ConsumerPID: cPID, ProviderPID: pPIDs, DataAddress: first,
	})
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))
}

func TestProviderMayNotStartRequestedTransfer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	neg := f.finalizedProvider(t, testOffer())
	proc, err := f.tr.InitiateTransfer(f.ctx, transferRequest(neg.GetAgreement().ID, "CSV"))
	require.NoError(t, err)
	sent := f.sent.count()

	_, err = f.tr.SendStart(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(), dataAddress("https://x"))
	require.Error(t, err)
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))
	assert.Equal(t, 1, f.rejections())
	assert.Equal(t, sent, f.sent.count())

	got, err := f.tr.GetTransfer(f.ctx, constants.DataspaceProvider, proc.GetProviderPID())
	require.NoError(t, err)
	assert.Equal(t, transfer.States.REQUESTED, got.GetState())

	// The same edge is fine when the consumer's start message arrives.
	cPID, pPID := pids(proc)
	got, err = f.tr.StartTransfer(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(),
		shared.TransferStartMessage{ConsumerPID: cPID, ProviderPID: pPID})
	require.NoError(t, err)
	assert.Equal(t, transfer.States.STARTED, got.GetState())

	// Once running, the provider may suspend and resume on its own. Suspending is local.
	got, err = f.tr.SendSuspension(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, transfer.States.SUSPENDED, got.GetState())
	assert.Equal(t, sent, f.sent.count())

	got, err = f.tr.SendStart(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(), dataAddress("https://y"))
	require.NoError(t, err)
	assert.Equal(t, transfer.States.STARTED, got.GetState())
	n := f.sent.last(t)
	assert.Equal(t, "https://consumer.example/dsp/consumer/transfers/"+cPID+"/start", n.URL.String())
	assert.Contains(t, string(n.Body), "https://y")
}

func TestUnsupportedFormatLeavesNoRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	neg := f.finalizedProvider(t, testOffer())

	_, err := f.tr.InitiateTransfer(f.ctx, transferRequest(neg.GetAgreement().ID, "XML"))
	require.Error(t, err)
	assert.Equal(t, engine.KindInvalidFormat, engine.KindOf(err))

	procs, err := f.tr.ListTransfers(f.ctx, transferopts.WithAgreementID(neg.GetAgreement().ID))
	require.NoError(t, err)
	assert.Empty(t, procs)

	rejected := f.audit.Events(audit.EventTransitionRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "transfer", rejected[0].Details["process"])
}

func TestTransferNeedsFinalizedAgreement(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)

	_, err := f.tr.InitiateTransfer(f.ctx, transferRequest("urn:uuid:0d8b0a6a-2cd6-4cc5-8b3a-fb1d6c2b4e58", "CSV"))
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))

	neg, _ := f.requested(t, testOffer())
	neg, err = f.neg.SendAgreement(f.ctx, neg.GetProviderPID())
	require.NoError(t, err)
	require.Equal(t, contract.States.AGREED, neg.GetState())

	_, err = f.tr.InitiateTransfer(f.ctx, transferRequest(neg.GetAgreement().ID, "CSV"))
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))
}

func TestExpiredAgreementBlocksStart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	offer := testOffer(odrl.Constraint{
		LeftOperand:  "odrl:dateTime",
		Operator:     "odrl:lt",
		RightOperand: "2027-01-01T00:00:00Z",
	})
	neg := f.finalizedProvider(t, offer)
	agreementID := neg.GetAgreement().ID
	proc, err := f.tr.InitiateTransfer(f.ctx, transferRequest(agreementID, "CSV"))
	require.NoError(t, err)

	f.now = time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	f.gate.Invalidate(agreementID)

	cPID, pPID := pids(proc)
	_, err = f.tr.StartTransfer(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(),
		shared.TransferStartMessage{ConsumerPID: cPID, ProviderPID: pPID})
	require.Error(t, err)
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))
	assert.False(t, f.tr.IsTransferStarted(f.ctx, proc.GetConsumerPID(), proc.GetProviderPID()))
}

func TestRepeatedTransferRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	neg := f.finalizedProvider(t, testOffer())
	msg := transferRequest(neg.GetAgreement().ID, "CSV")

	first, err := f.tr.InitiateTransfer(f.ctx, msg)
	require.NoError(t, err)
	second, err := f.tr.InitiateTransfer(f.ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, first.GetID(), second.GetID())
	assert.Equal(t, 0, f.rejections())

	// Once the transfer moved on, the opening request is refused.
	cPID, pPID := pids(first)
	_, err = f.tr.StartTransfer(f.ctx, constants.DataspaceProvider, first.GetProviderPID(),
		shared.TransferStartMessage{ConsumerPID: cPID, ProviderPID: pPID})
	require.NoError(t, err)
	_, err = f.tr.InitiateTransfer(f.ctx, msg)
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))
	require.Equal(t, 1, f.rejections())
	details := f.lastRejection(t)
	assert.Equal(t, "dspace:STARTED", details["from"])
	assert.Equal(t, "dspace:REQUESTED", details["to"])
	assert.Equal(t, pPID, details["providerPid"])

	bad := transferRequest(neg.GetAgreement().ID, "CSV")
	bad.ConsumerPID = "garbage"
	_, err = f.tr.InitiateTransfer(f.ctx, bad)
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))
	assert.Equal(t, 2, f.rejections())
	assert.Equal(t, "garbage", f.lastRejection(t)["consumerPid"])
}

func TestTransferPIDMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	neg := f.finalizedProvider(t, testOffer())
	proc, err := f.tr.InitiateTransfer(f.ctx, transferRequest(neg.GetAgreement().ID, "CSV"))
	require.NoError(t, err)

	_, err = f.tr.TerminateTransfer(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(),
		shared.TransferTerminationMessage{
			ConsumerPID: shared.NewTransferPID().URN(),
			ProviderPID: proc.GetProviderPID().URN(),
		})
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))
	assert.False(t, f.tr.IsTransferStarted(f.ctx, shared.NewTransferPID(), shared.NewTransferPID()))
}

func TestTransferTerminationIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providerURL)
	neg := f.finalizedProvider(t, testOffer())
	proc, err := f.tr.InitiateTransfer(f.ctx, transferRequest(neg.GetAgreement().ID, "CSV"))
	require.NoError(t, err)
	before := f.transitions()

	cPID, pPID := pids(proc)
	msg := shared.TransferTerminationMessage{ConsumerPID: cPID, ProviderPID: pPID}
	first, err := f.tr.TerminateTransfer(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(), msg)
	require.NoError(t, err)
	second, err := f.tr.TerminateTransfer(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(), msg)
	require.NoError(t, err)
	third, err := f.tr.SendTermination(f.ctx, constants.DataspaceProvider, proc.GetProviderPID(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, transfer.States.TERMINATED, first.GetState())
	assert.Equal(t, first.GetVersion(), second.GetVersion())
	assert.Equal(t, first.GetVersion(), third.GetVersion())
	assert.Equal(t, before+1, f.transitions())
}

func TestConsumerTransfer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, consumerURL)
	neg := f.finalizedConsumer(t, testOffer())
	agreementID := neg.GetAgreement().ID

	proc, err := f.tr.RequestTransfer(f.ctx, agreementID, "CSV", nil)
	require.NoError(t, err)
	assert.Equal(t, transfer.States.REQUESTED, proc.GetState())
	assert.True(t, proc.GetProviderPID().IsZero())
	n := f.sent.last(t)
	assert.Equal(t, "https://provider.example/dsp/transfers/request", n.URL.String())

	// Nothing can be sent before the provider PID is known.
	_, err = f.tr.SendStart(f.ctx, constants.DataspaceConsumer, proc.GetConsumerPID(), nil)
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))

	pPID := shared.NewTransferPID()
	f.answer(t, shared.TransferProcess{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:TransferProcess",
		ConsumerPID: proc.GetConsumerPID().URN(),
		ProviderPID: pPID.URN(),
		State:       "dspace:REQUESTED",
	})

	// The provider can't start a transfer it was asked for.
	_, err = f.tr.StartTransfer(f.ctx, constants.DataspaceConsumer, proc.GetConsumerPID(),
		shared.TransferStartMessage{ConsumerPID: proc.GetConsumerPID().URN(), ProviderPID: pPID.URN()})
	assert.Equal(t, engine.KindInvalidState, engine.KindOf(err))

	proc, err = f.tr.SendStart(f.ctx, constants.DataspaceConsumer, proc.GetConsumerPID(), nil)
	require.NoError(t, err)
	assert.Equal(t, transfer.States.STARTED, proc.GetState())
	assert.Equal(t, pPID, proc.GetProviderPID())
	n = f.sent.last(t)
	assert.Equal(t, "https://provider.example/dsp/transfers/"+pPID.URN()+"/start", n.URL.String())
	assert.True(t, f.tr.IsTransferStarted(f.ctx, proc.GetConsumerPID(), pPID))

	_, err = f.tr.SendSuspension(f.ctx, constants.DataspaceConsumer, proc.GetConsumerPID(), "", []string{"paused"})
	require.NoError(t, err)
	n = f.sent.last(t)
	assert.Equal(t, "dspace:TransferSuspensionMessage", n.MessageType)
	assert.Equal(t, "https://provider.example/dsp/transfers/"+pPID.URN()+"/suspension", n.URL.String())

	// The provider resumes the suspended transfer.
	proc, err = f.tr.StartTransfer(f.ctx, constants.DataspaceConsumer, proc.GetConsumerPID(),
		shared.TransferStartMessage{
			ConsumerPID: proc.GetConsumerPID().URN(),
			ProviderPID: pPID.URN(),
			DataAddress: dataAddress("https://data.example/pull"),
		})
	require.NoError(t, err)
	assert.Equal(t, transfer.States.STARTED, proc.GetState())
	assert.Equal(t, "https://data.example/pull", proc.GetDataAddress().Endpoint)
}

func TestRequestTransferNeedsFinalizedAgreement(t *testing.T) {
	t.Parallel()
	f := newFixture(t, consumerURL)
	_, err := f.tr.RequestTransfer(f.ctx, "urn:uuid:0d8b0a6a-2cd6-4cc5-8b3a-fb1d6c2b4e58", "CSV", nil)
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))
	assert.Equal(t, 0, f.sent.count())
}
