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

package callback

import (
	"net/url"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
)

// The callback address of a party is the base URL its protocol endpoints hang off. Providers
// serve under /negotiations and /transfers, consumers under /consumer/negotiations and
// /consumer/transfers, except for the offer that opens a negotiation.

// NegotiationRequestURL is where a consumer sends the request opening a negotiation.
func NegotiationRequestURL(base *url.URL) *url.URL {
	return base.JoinPath("negotiations", "request")
}

// NegotiationOfferURL is where a provider sends the offer opening a negotiation.
func NegotiationOfferURL(base *url.URL) *url.URL {
	return base.JoinPath("negotiations", "offers")
}

// TransferRequestURL is where a consumer sends a transfer request.
func TransferRequestURL(base *url.URL) *url.URL {
	return base.JoinPath("transfers", "request")
}

// NegotiationURL builds the URL of a negotiation endpoint of the peer, peer being the role
// the receiving party plays and pid the PID it minted.
func NegotiationURL(base *url.URL, peer constants.DataspaceRole, pid string, elems ...string) *url.URL {
	return processURL(base, peer, "negotiations", pid, elems)
}

// TransferURL is NegotiationURL for transfer processes.
func TransferURL(base *url.URL, peer constants.DataspaceRole, pid string, elems ...string) *url.URL {
	return processURL(base, peer, "transfers", pid, elems)
}

func processURL(base *url.URL, peer constants.DataspaceRole, kind, pid string, elems []string) *url.URL {
	parts := []string{kind, pid}
	if peer == constants.DataspaceConsumer {
		parts = append([]string{"consumer"}, parts...)
	}
	return base.JoinPath(append(parts, elems...)...)
}
