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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp"
	"github.com/go-dataspace/dsp-engine/dsp/audit/audittest"
	"github.com/go-dataspace/dsp-engine/dsp/callback"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	"github.com/go-dataspace/dsp-engine/dsp/persistence/badger"
	"github.com/go-dataspace/dsp-engine/dsp/policy"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/stretchr/testify/require"
)

const (
	datasetID = "urn:uuid:271d90b7-80ed-4f02-856d-5a881efba4ec"
	waitFor   = 5 * time.Second
	tick      = 10 * time.Millisecond
)

type formats []string

func (f formats) Formats(_ context.Context, _ string) ([]string, error) { return f, nil }

// discard swallows outbound messages for tests that only look at one node.
type discard struct {
	sync.Mutex
	sent []callback.Notification
}

func (d *discard) Notify(_ context.Context, n callback.Notification) {
	d.Lock()
	defer d.Unlock()
	d.sent = append(d.sent, n)
}

// node is a single dataspace participant served over HTTP, protocol routes under /dsp and
// control routes under /control.
type node struct {
	srv   *httptest.Server
	base  *url.URL
	store *badger.StorageProvider
	audit *audittest.Memory
	neg   *engine.NegotiationEngine
	tr    *engine.TransferEngine
}

// newNode starts a participant. Without a notifier it delivers its messages over HTTP with a
// real dispatcher.
func newNode(t *testing.T, notifier callback.Notifier, opts ...engine.Option) *node {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store, err := badger.New(ctx, true, "")
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(nil)
	n := &node{
		srv:   srv,
		base:  shared.MustParseURL("http://" + srv.Listener.Addr().String()).JoinPath("dsp"),
		store: store,
		audit: &audittest.Memory{},
	}

	var dispatcher *callback.Dispatcher
	if notifier == nil {
		dispatcher = callback.NewDispatcher(ctx, shared.NewHTTPRequester(time.Second), n.audit,
			callback.WithBackoff(5*time.Millisecond, time.Second, 5))
		dispatcher.Run()
		notifier = dispatcher
	}
	t.Cleanup(func() {
		cancel()
		if dispatcher != nil {
			dispatcher.WaitGroup.Wait()
		}
		srv.Close()
		_ = store.Close()
	})

	gate := policy.NewGate(formats{"CSV", "JSON"}, policy.NewLRUCache(16, time.Hour))
	n.neg = engine.NewNegotiationEngine(store, notifier, n.audit, n.base, opts...)
	n.tr = engine.NewTransferEngine(store, notifier, n.audit, gate, n.base, opts...)

	mux := http.NewServeMux()
	mux.Handle("/.well-known/", http.StripPrefix("/.well-known", dsp.GetWellKnownRoutes()))
	mux.Handle("/dsp/", http.StripPrefix("/dsp", dsp.GetDSPRoutes(n.neg, n.tr)))
	mux.Handle("/control/", http.StripPrefix("/control", dsp.GetControlRoutes(n.neg, n.tr)))
	srv.Config.Handler = mux
	srv.Start()
	return n
}

func testOffer() odrl.Offer {
	return odrl.Offer{MessageOffer: odrl.MessageOffer{
		PolicyClass: odrl.PolicyClass{
			ID:          "urn:uuid:4e3770fd-63d5-4cd7-bb82-bca2ce0cf563",
			Permission:  []odrl.Permission{{Action: "odrl:use"}},
			Prohibition: []any{},
		},
		Type:   "odrl:Offer",
		Target: datasetID,
	}}
}

// do sends body as JSON to path on the node and returns the response with its body read.
func (n *node) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var payload io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		payload = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, n.srv.URL+path, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// negotiation waits until the negotiation the node holds in role reaches state.
func (n *node) negotiation(
	t *testing.T, role constants.DataspaceRole, pid shared.NegotiationPID, state contract.State,
) *contract.Negotiation {
	t.Helper()
	var neg *contract.Negotiation
	require.Eventually(t, func() bool {
		var err error
		neg, err = n.neg.GetNegotiation(context.Background(), role, pid)
		return err == nil && neg.GetState() == state
	}, waitFor, tick, "negotiation %s never reached %s", pid, state)
	return neg
}

// remoteNegotiationPID waits until the node learned the PID its peer minted.
func (n *node) remoteNegotiationPID(
	t *testing.T, role constants.DataspaceRole, pid shared.NegotiationPID,
) shared.NegotiationPID {
	t.Helper()
	var remote shared.NegotiationPID
	require.Eventually(t, func() bool {
		neg, err := n.neg.GetNegotiation(context.Background(), role, pid)
		if err != nil {
			return false
		}
		remote = neg.GetRemotePID()
		return !remote.IsZero()
	}, waitFor, tick)
	return remote
}

func (n *node) transfer(
	t *testing.T, role constants.DataspaceRole, pid shared.TransferPID, state transfer.State,
) *transfer.Process {
	t.Helper()
	var p *transfer.Process
	require.Eventually(t, func() bool {
		var err error
		p, err = n.tr.GetTransfer(context.Background(), role, pid)
		return err == nil && p.GetState() == state
	}, waitFor, tick, "transfer %s never reached %s", pid, state)
	return p
}

func (n *node) remoteTransferPID(t *testing.T, role constants.DataspaceRole, pid shared.TransferPID) shared.TransferPID {
	t.Helper()
	var remote shared.TransferPID
	require.Eventually(t, func() bool {
		p, err := n.tr.GetTransfer(context.Background(), role, pid)
		if err != nil {
			return false
		}
		remote = p.GetRemotePID()
		return !remote.IsZero()
	}, waitFor, tick)
	return remote
}

// action runs a control action and requires it to succeed.
func (n *node) action(t *testing.T, kind, role, pid, action string, body any) {
	t.Helper()
	resp, data := n.do(t, http.MethodPost, "/control/"+kind+"/"+role+"/"+pid+"/"+action, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
}

// finalize runs a negotiation between consumer and provider to FINALIZED over HTTP and returns
// the consumer's view of it.
func finalize(t *testing.T, consumer, provider *node) *contract.Negotiation {
	t.Helper()
	resp, data := consumer.do(t, http.MethodPost, "/control/negotiations", dsp.NegotiationCreateRequest{
		Role:    "consumer",
		Address: provider.base.String(),
		Offer:   testOffer(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	info := decode[dsp.NegotiationInfo](t, data)
	cPID, err := shared.ParseNegotiationPID(info.ConsumerPID)
	require.NoError(t, err)

	pPID := consumer.remoteNegotiationPID(t, constants.DataspaceConsumer, cPID)
	provider.negotiation(t, constants.DataspaceProvider, pPID, contract.States.REQUESTED)

	consumer.action(t, "negotiations", "consumer", cPID.URN(), dsp.ActionAccept, nil)
	provider.negotiation(t, constants.DataspaceProvider, pPID, contract.States.ACCEPTED)

	provider.action(t, "negotiations", "provider", pPID.URN(), dsp.ActionAgree, nil)
	consumer.negotiation(t, constants.DataspaceConsumer, cPID, contract.States.AGREED)

	consumer.action(t, "negotiations", "consumer", cPID.URN(), dsp.ActionVerify, nil)
	provider.negotiation(t, constants.DataspaceProvider, pPID, contract.States.VERIFIED)

	provider.action(t, "negotiations", "provider", pPID.URN(), dsp.ActionFinalize, nil)
	return consumer.negotiation(t, constants.DataspaceConsumer, cPID, contract.States.FINALIZED)
}
