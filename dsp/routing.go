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

// Package dsp serves the dataspace protocol endpoints and the local control API.
package dsp

import (
	"net/http"

	"github.com/go-dataspace/dsp-engine/dsp/engine"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/go-dataspace/dsp-engine/dsp")

type handleFuncType func(pattern string, handlerFunc func(http.ResponseWriter, *http.Request))

func newMux() (*http.ServeMux, handleFuncType) {
	mux := http.NewServeMux()
	handleFunc := func(pattern string, handlerFunc func(http.ResponseWriter, *http.Request)) {
		handler := otelhttp.WithRouteTag(pattern, http.HandlerFunc(handlerFunc))
		mux.Handle(pattern, handler)
	}
	return mux, handleFunc
}

// GetWellKnownRoutes gets the routes served under /.well-known.
func GetWellKnownRoutes() http.Handler {
	mux, handleFunc := newMux()
	handleFunc("GET /dspace-version", WrapHandlerWithMetrics("dspace-version", WrapHandlerWithError(dspaceVersionHandler)))
	// This is an optional proof endpoint for protected datasets.
	handleFunc("GET /dspace-trust", routeNotImplemented)
	return mux
}

// GetDSPRoutes gets all the dataspace protocol routes, for both roles.
func GetDSPRoutes(neg *engine.NegotiationEngine, tr *engine.TransferEngine) http.Handler {
	mux, handleFunc := newMux()
	ch := dspHandlers{negotiations: neg, transfers: tr}

	setupContractEndpoints(handleFunc, ch)
	setupConsumerContractEndpoints(handleFunc, ch)
	setupTransferEndpoints(handleFunc, ch)
	setupConsumerTransferEndpoints(handleFunc, ch)
	return mux
}

// GetControlRoutes gets the routes of the control API, which drives the local side of the
// protocol. It must not be exposed to the peers.
func GetControlRoutes(neg *engine.NegotiationEngine, tr *engine.TransferEngine) http.Handler {
	mux, handleFunc := newMux()
	ch := controlHandlers{negotiations: neg, transfers: tr}

	handleFunc("GET /negotiations", WrapHandlerWithMetrics(
		"control_negotiations", WrapHandlerWithError(ch.listNegotiationsHandler)))
	handleFunc("POST /negotiations", WrapHandlerWithMetrics(
		"control_negotiations_create", WrapHandlerWithError(ch.createNegotiationHandler)))
	handleFunc("GET /negotiations/{role}/{pid}", WrapHandlerWithMetrics(
		"control_negotiations_get", WrapHandlerWithError(ch.getNegotiationHandler)))
	handleFunc("POST /negotiations/{role}/{pid}/{action}", WrapHandlerWithMetrics(
		"control_negotiations_action", WrapHandlerWithError(ch.negotiationActionHandler)))

	handleFunc("GET /transfers", WrapHandlerWithMetrics(
		"control_transfers", WrapHandlerWithError(ch.listTransfersHandler)))
	handleFunc("POST /transfers", WrapHandlerWithMetrics(
		"control_transfers_create", WrapHandlerWithError(ch.createTransferHandler)))
	handleFunc("GET /transfers/started", WrapHandlerWithMetrics(
		"control_transfers_started", WrapHandlerWithError(ch.transferStartedHandler)))
	handleFunc("GET /transfers/{role}/{pid}", WrapHandlerWithMetrics(
		"control_transfers_get", WrapHandlerWithError(ch.getTransferHandler)))
	handleFunc("POST /transfers/{role}/{pid}/{action}", WrapHandlerWithMetrics(
		"control_transfers_action", WrapHandlerWithError(ch.transferActionHandler)))
	return mux
}

func setupContractEndpoints(handleFunc handleFuncType, ch dspHandlers) {
	handleFunc("GET /negotiations/{providerPID}", WrapHandlerWithMetrics(
		"negotiations", WrapHandlerWithError(ch.providerContractStateHandler)))
	handleFunc("POST /negotiations/request", WrapHandlerWithMetrics(
		"negotiations_request", WrapHandlerWithError(ch.providerContractRequestHandler)))
	handleFunc("POST /negotiations/{providerPID}/request", WrapHandlerWithMetrics(
		"negotiations_ongoing_request", WrapHandlerWithError(ch.providerContractSpecificRequestHandler)))
	handleFunc("POST /negotiations/{providerPID}/events", WrapHandlerWithMetrics(
		"negotiations_ongoing_events", WrapHandlerWithError(ch.providerContractEventHandler)))
	handleFunc("POST /negotiations/{providerPID}/agreement/verification", WrapHandlerWithMetrics(
		"negotiations_ongoing_agreement_verification", WrapHandlerWithError(ch.providerContractVerificationHandler)))
	handleFunc("POST /negotiations/{providerPID}/termination", WrapHandlerWithMetrics(
		"negotiations_ongoing_termination", WrapHandlerWithError(ch.providerContractTerminationHandler)))
}

func setupConsumerContractEndpoints(handleFunc handleFuncType, ch dspHandlers) {
	handleFunc("POST /negotiations/offers", WrapHandlerWithMetrics(
		"negotiation_offer", WrapHandlerWithError(ch.consumerContractOfferHandler)))
	handleFunc("GET /consumer/negotiations/{consumerPID}", WrapHandlerWithMetrics(
		"consumer_negotiations", WrapHandlerWithError(ch.consumerContractStateHandler)))
	handleFunc("POST /consumer/negotiations/{consumerPID}/offers", WrapHandlerWithMetrics(
		"consumer_negotiations_ongoing_offers", WrapHandlerWithError(ch.consumerContractSpecificOfferHandler)))
	handleFunc("POST /consumer/negotiations/{consumerPID}/agreement", WrapHandlerWithMetrics(
		"consumer_negotiations_ongoing_agreement", WrapHandlerWithError(ch.consumerContractAgreementHandler)))
	handleFunc("POST /consumer/negotiations/{consumerPID}/events", WrapHandlerWithMetrics(
		"consumer_negotiations_ongoing_events", WrapHandlerWithError(ch.consumerContractEventHandler)))
	handleFunc("POST /consumer/negotiations/{consumerPID}/termination", WrapHandlerWithMetrics(
		"consumer_negotiations_ongoing_termination", WrapHandlerWithError(ch.consumerContractTerminationHandler)))
}

func setupTransferEndpoints(handleFunc handleFuncType, ch dspHandlers) {
	handleFunc("GET /transfers/{providerPID}", WrapHandlerWithMetrics(
		"transfers_ongoing", WrapHandlerWithError(ch.providerTransferProcessHandler)))
	handleFunc("POST /transfers/request", WrapHandlerWithMetrics(
		"transfers_request", WrapHandlerWithError(ch.providerTransferRequestHandler)))
	handleFunc("POST /transfers/{providerPID}/start", WrapHandlerWithMetrics(
		"transfers_ongoing_start", WrapHandlerWithError(ch.providerTransferStartHandler)))
	handleFunc("POST /transfers/{providerPID}/completion", WrapHandlerWithMetrics(
		"transfers_ongoing_completion", WrapHandlerWithError(ch.providerTransferCompletionHandler)))
	handleFunc("POST /transfers/{providerPID}/termination", WrapHandlerWithMetrics(
		"transfers_ongoing_termination", WrapHandlerWithError(ch.providerTransferTerminationHandler)))
	handleFunc("POST /transfers/{providerPID}/suspension", WrapHandlerWithMetrics(
		"transfers_ongoing_suspension", WrapHandlerWithError(ch.providerTransferSuspensionHandler)))
}

func setupConsumerTransferEndpoints(handleFunc handleFuncType, ch dspHandlers) {
	handleFunc("GET /consumer/transfers/{consumerPID}", WrapHandlerWithMetrics(
		"consumer_transfers_ongoing", WrapHandlerWithError(ch.consumerTransferProcessHandler)))
	handleFunc("POST /consumer/transfers/{consumerPID}/start", WrapHandlerWithMetrics(
		"consumer_transfers_ongoing_start", WrapHandlerWithError(ch.consumerTransferStartHandler)))
	handleFunc("POST /consumer/transfers/{consumerPID}/completion", WrapHandlerWithMetrics(
		"consumer_transfers_ongoing_completion", WrapHandlerWithError(ch.consumerTransferCompletionHandler)))
	handleFunc("POST /consumer/transfers/{consumerPID}/termination", WrapHandlerWithMetrics(
		"consumer_transfers_ongoing_termination", WrapHandlerWithError(ch.consumerTransferTerminationHandler)))
	handleFunc("POST /consumer/transfers/{consumerPID}/suspension", WrapHandlerWithMetrics(
		"consumer_transfers_ongoing_suspension", WrapHandlerWithError(ch.consumerTransferSuspensionHandler)))
}
