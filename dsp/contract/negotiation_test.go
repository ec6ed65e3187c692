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

package contract_test

import (
	"context"
	"testing"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitTo(t *testing.T) {
	t.Parallel()
	s := contract.States
	legal := map[contract.State][]contract.State{
		s.REQUESTED: {s.OFFERED, s.ACCEPTED, s.AGREED, s.TERMINATED},
		s.OFFERED:   {s.REQUESTED, s.ACCEPTED, s.TERMINATED},
		s.ACCEPTED:  {s.AGREED, s.TERMINATED},
		s.AGREED:    {s.VERIFIED, s.TERMINATED},
		s.VERIFIED:  {s.FINALIZED, s.TERMINATED},
	}
	for _, from := range s.All() {
		for _, to := range s.All() {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	t.Parallel()
	for _, st := range contract.States.All() {
		terminal := st == contract.States.FINALIZED || st == contract.States.TERMINATED
		assert.Equal(t, terminal, st.IsTerminal(), st.String())
		assert.False(t, st.CanTransitTo(st), "self loop on %s", st)
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()
	for _, in := range []any{"dspace:AGREED", "AGREED", "agreed", []byte("dspace:AGREED")} {
		st, err := contract.ParseState(in)
		require.NoError(t, err)
		assert.Equal(t, contract.States.AGREED, st)
	}
	_, err := contract.ParseState("INITIAL")
	assert.Error(t, err)
	_, err = contract.ParseState(12)
	assert.Error(t, err)
}

func newNegotiation() *contract.Negotiation {
	return contract.New(
		context.Background(),
		constants.DataspaceProvider,
		shared.NewNegotiationPID(),
		shared.NewNegotiationPID(),
		contract.States.REQUESTED,
		odrl.Offer{MessageOffer: odrl.MessageOffer{Type: "odrl:Offer", Target: "urn:uuid:dataset"}},
		shared.MustParseURL("https://consumer.example/callback"),
		shared.MustParseURL("https://provider.example/dsp"),
	)
}

func TestTransitCopies(t *testing.T) {
	t.Parallel()
	orig := newNegotiation()
	next, err := orig.Transit(contract.States.AGREED, constants.DataspaceProvider)
	require.NoError(t, err)
	assert.Equal(t, contract.States.REQUESTED, orig.GetState())
	assert.Equal(t, contract.States.AGREED, next.GetState())
	assert.Equal(t, orig.GetID(), next.GetID())

	_, err = next.Transit(contract.States.REQUESTED, constants.DataspaceConsumer)
	assert.ErrorIs(t, err, contract.ErrInvalidTransition)

	withAgreement := next.WithAgreement(&odrl.Agreement{Target: "urn:uuid:dataset"})
	assert.Nil(t, next.GetAgreement())
	assert.NotNil(t, withAgreement.GetAgreement())
}

func TestLocalAndRemotePID(t *testing.T) {
	t.Parallel()
	neg := newNegotiation()
	assert.Equal(t, neg.GetProviderPID(), neg.GetLocalPID())
	assert.Equal(t, neg.GetConsumerPID(), neg.GetRemotePID())
}

func TestBytesRoundtrip(t *testing.T) {
	t.Parallel()
	neg := newNegotiation().Persisted(3)
	b, err := neg.ToBytes()
	require.NoError(t, err)
	got, err := contract.FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, neg.GetID(), got.GetID())
	assert.Equal(t, neg.GetState(), got.GetState())
	assert.Equal(t, neg.GetConsumerPID(), got.GetConsumerPID())
	assert.Equal(t, uint64(3), got.GetVersion())
	assert.Equal(t, neg.GetCallback().String(), got.GetCallback().String())
	assert.Equal(t, constants.DataspaceProvider, got.GetRole())
}
