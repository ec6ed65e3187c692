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
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/audit/audittest"
	"github.com/go-dataspace/dsp-engine/dsp/callback"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	"github.com/go-dataspace/dsp-engine/dsp/persistence/badger"
	"github.com/go-dataspace/dsp-engine/dsp/policy"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const datasetID = "urn:uuid:5e9d2b4c-e2dc-4e44-9cf7-5ab3e0a8ef0f"

var (
	providerURL = shared.MustParseURL("https://provider.example/dsp")
	consumerURL = shared.MustParseURL("https://consumer.example/dsp")
)

type recorder struct {
	sync.Mutex
	sent []callback.Notification
}

func (r *recorder) Notify(_ context.Context, n callback.Notification) {
	r.Lock()
	defer r.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recorder) count() int {
	r.Lock()
	defer r.Unlock()
	return len(r.sent)
}

func (r *recorder) last(t *testing.T) callback.Notification {
	t.Helper()
	r.Lock()
	defer r.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

type formats []string

func (f formats) Formats(_ context.Context, _ string) ([]string, error) { return f, nil }

type fixture struct {
	ctx   context.Context
	store *badger.StorageProvider
	sent  *recorder
	audit *audittest.Memory
	gate  *policy.Gate
	now   time.Time
	neg   *engine.NegotiationEngine
	tr    *engine.TransferEngine
}

func newFixture(t *testing.T, self *url.URL, opts ...engine.Option) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store, err := badger.New(ctx, true, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = store.Close()
	})
	f := &fixture{
		ctx:   ctx,
		store: store,
		sent:  &recorder{},
		audit: &audittest.Memory{},
		now:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.gate = policy.NewGate(
		formats{"CSV", "JSON"},
		policy.NewLRUCache(16, time.Hour),
		policy.WithClock(func() time.Time { return f.now }),
	)
	opts = append([]engine.Option{engine.WithParticipantID("urn:provider")}, opts...)
	f.neg = engine.NewNegotiationEngine(store, f.sent, f.audit, self, opts...)
	f.tr = engine.NewTransferEngine(store, f.sent, f.audit, f.gate, self, opts...)
	return f
}

func testOffer(constraints ...odrl.Constraint) odrl.Offer {
	return odrl.Offer{MessageOffer: odrl.MessageOffer{
		PolicyClass: odrl.PolicyClass{
			ID:          "urn:uuid:3dd1add4-4d2d-569e-d634-8394a8836d23",
			Permission:  []odrl.Permission{{Action: "odrl:use", Constraint: constraints}},
			Prohibition: []any{},
		},
		Type:   "odrl:Offer",
		Target: datasetID,
	}}
}

func (f *fixture) transitions() int {
	return len(f.audit.Events(audit.EventTransition))
}

func (f *fixture) rejections() int {
	return len(f.audit.Events(audit.EventTransitionRejected))
}

// lastRejection returns the details of the latest rejection event.
func (f *fixture) lastRejection(t *testing.T) map[string]any {
	t.Helper()
	rejected := f.audit.Events(audit.EventTransitionRejected)
	require.NotEmpty(t, rejected)
	return rejected[len(rejected)-1].Details
}

// requested opens a negotiation on the provider as if the consumer had sent a request.
func (f *fixture) requested(t *testing.T, offer odrl.Offer) (*contract.Negotiation, shared.NegotiationPID) {
	t.Helper()
	cPID := shared.NewNegotiationPID()
	neg, err := f.neg.StartNegotiation(f.ctx, shared.ContractRequestMessage{
		Context:         shared.GetDSPContext(),
		Type:            "dspace:ContractRequestMessage",
		ConsumerPID:     cPID.URN(),
		Offer:           offer.MessageOffer,
		CallbackAddress: consumerURL.String(),
	})
	require.NoError(t, err)
	return neg, cPID
}

// finalizedProvider runs a provider negotiation up to FINALIZED.
func (f *fixture) finalizedProvider(t *testing.T, offer odrl.Offer) *contract.Negotiation {
	t.Helper()
	neg, cPID := f.requested(t, offer)
	pPID := neg.GetProviderPID()
	_, err := f.neg.SendAgreement(f.ctx, pPID)
	require.NoError(t, err)
	_, err = f.neg.HandleVerification(f.ctx, pPID, shared.ContractAgreementVerificationMessage{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:ContractAgreementVerificationMessage",
		ConsumerPID: cPID.URN(),
		ProviderPID: pPID.URN(),
	})
	require.NoError(t, err)
	neg, err = f.neg.Finalize(f.ctx, pPID)
	require.NoError(t, err)
	require.Equal(t, contract.States.FINALIZED, neg.GetState())
	return neg
}

// answer feeds the response body of the last notification to its response handler.
func (f *fixture) answer(t *testing.T, body any) {
	t.Helper()
	n := f.sent.last(t)
	require.NotNil(t, n.OnResponse)
	b, err := shared.ValidateAndMarshal(f.ctx, body)
	require.NoError(t, err)
	require.NoError(t, n.OnResponse(f.ctx, b))
}

// finalizedConsumer runs a consumer negotiation up to FINALIZED.
func (f *fixture) finalizedConsumer(t *testing.T, offer odrl.Offer) *contract.Negotiation {
	t.Helper()
	neg, err := f.neg.RequestContract(f.ctx, providerURL, offer)
	require.NoError(t, err)
	cPID := neg.GetConsumerPID()
	pPID := shared.NewNegotiationPID()
	f.answer(t, shared.ContractNegotiation{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:ContractNegotiation",
		ConsumerPID: cPID.URN(),
		ProviderPID: pPID.URN(),
		State:       "dspace:REQUESTED",
	})

	agreement := odrl.NewAgreement(uuid.New().URN(), offer, "urn:provider", "urn:consumer", time.Now())
	_, err = f.neg.HandleAgreement(f.ctx, cPID, shared.ContractAgreementMessage{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:ContractAgreementMessage",
		ConsumerPID: cPID.URN(),
		ProviderPID: pPID.URN(),
		Agreement:   agreement,
	})
	require.NoError(t, err)
	_, err = f.neg.VerifyAgreement(f.ctx, cPID)
	require.NoError(t, err)
	neg, err = f.neg.HandleFinalizeEvent(f.ctx, cPID, shared.ContractNegotiationEventMessage{
		Context:     shared.GetDSPContext(),
		Type:        "dspace:ContractNegotiationEventMessage",
		ConsumerPID: cPID.URN(),
		ProviderPID: pPID.URN(),
		EventType:   "dspace:FINALIZED",
	})
	require.NoError(t, err)
	require.Equal(t, contract.States.FINALIZED, neg.GetState())
	require.Equal(t, constants.DataspaceConsumer, neg.GetRole())
	return neg
}
