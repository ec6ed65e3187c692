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
	"context"
	"net/http"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

// negotiationMessage decodes a message sent to an existing negotiation, parses the PID in the
// path and hands both to apply. The resulting state is the response body.
func negotiationMessage[T any](
	w http.ResponseWriter,
	req *http.Request,
	spanName string,
	pathParam string,
	apply func(ctx context.Context, pid shared.NegotiationPID, msg T) (*contract.Negotiation, error),
) error {
	ctx, span := tracer.Start(req.Context(), spanName)
	defer span.End()
	req = req.WithContext(ctx)

	pid, err := negotiationPathPID(req, pathParam)
	if err != nil {
		return err
	}
	msg, err := shared.DecodeValid[T](req)
	if err != nil {
		return invalidRequest(negotiationErrorType, err)
	}
	neg, err := apply(ctx, pid, msg)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, neg.GetContractNegotiation())
}

func (dh dspHandlers) contractState(
	w http.ResponseWriter, req *http.Request, role constants.DataspaceRole, pathParam string,
) error {
	ctx, span := tracer.Start(req.Context(), "contractStateHandler")
	defer span.End()
	req = req.WithContext(ctx)

	pid, err := negotiationPathPID(req, pathParam)
	if err != nil {
		return err
	}
	neg, err := dh.negotiations.GetNegotiation(ctx, role, pid)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, neg.GetContractNegotiation())
}

func (dh dspHandlers) providerContractStateHandler(w http.ResponseWriter, req *http.Request) error {
	return dh.contractState(w, req, constants.DataspaceProvider, "providerPID")
}

func (dh dspHandlers) consumerContractStateHandler(w http.ResponseWriter, req *http.Request) error {
	return dh.contractState(w, req, constants.DataspaceConsumer, "consumerPID")
}

func (dh dspHandlers) providerContractRequestHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "providerContractRequestHandler")
	defer span.End()
	req = req.WithContext(ctx)

	contractReq, err := shared.DecodeValid[shared.ContractRequestMessage](req)
	if err != nil {
		return invalidRequest(negotiationErrorType, err)
	}
	logging.Extract(ctx).Debug("Got contract request", "consumerPID", contractReq.ConsumerPID)

	neg, err := dh.negotiations.StartNegotiation(ctx, contractReq)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if contractReq.ProviderPID != "" {
		status = http.StatusOK
	}
	return shared.EncodeValid(w, req, status, neg.GetContractNegotiation())
}

func (dh dspHandlers) providerContractSpecificRequestHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "providerContractSpecificRequestHandler", "providerPID",
		func(ctx context.Context, pid shared.NegotiationPID, msg shared.ContractRequestMessage) (
			*contract.Negotiation, error,
		) {
			return dh.negotiations.HandleCounterOffer(
				ctx, constants.DataspaceProvider, pid, msg.ConsumerPID, msg.ProviderPID, msg.Offer)
		})
}

func (dh dspHandlers) providerContractEventHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "providerContractEventHandler", "providerPID",
		dh.negotiations.HandleAcceptedEvent)
}

func (dh dspHandlers) providerContractVerificationHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "providerContractVerificationHandler", "providerPID",
		dh.negotiations.HandleVerification)
}

func (dh dspHandlers) providerContractTerminationHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "providerContractTerminationHandler", "providerPID",
		func(ctx context.Context, pid shared.NegotiationPID, msg shared.ContractNegotiationTerminationMessage) (
			*contract.Negotiation, error,
		) {
			return dh.negotiations.HandleTermination(ctx, constants.DataspaceProvider, pid, msg)
		})
}

func (dh dspHandlers) consumerContractOfferHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "consumerContractOfferHandler")
	defer span.End()
	req = req.WithContext(ctx)

	offer, err := shared.DecodeValid[shared.ContractOfferMessage](req)
	if err != nil {
		return invalidRequest(negotiationErrorType, err)
	}
	logging.Extract(ctx).Debug("Got contract offer", "providerPID", offer.ProviderPID)

	neg, err := dh.negotiations.HandleOffer(ctx, offer)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if offer.ConsumerPID != "" {
		status = http.StatusOK
	}
	return shared.EncodeValid(w, req, status, neg.GetContractNegotiation())
}

func (dh dspHandlers) consumerContractSpecificOfferHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "consumerContractSpecificOfferHandler", "consumerPID",
		func(ctx context.Context, pid shared.NegotiationPID, msg shared.ContractOfferMessage) (
			*contract.Negotiation, error,
		) {
			return dh.negotiations.HandleCounterOffer(
				ctx, constants.DataspaceConsumer, pid, msg.ConsumerPID, msg.ProviderPID, msg.Offer)
		})
}

func (dh dspHandlers) consumerContractAgreementHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "consumerContractAgreementHandler", "consumerPID",
		dh.negotiations.HandleAgreement)
}

func (dh dspHandlers) consumerContractEventHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "consumerContractEventHandler", "consumerPID",
		dh.negotiations.HandleFinalizeEvent)
}

func (dh dspHandlers) consumerContractTerminationHandler(w http.ResponseWriter, req *http.Request) error {
	return negotiationMessage(w, req, "consumerContractTerminationHandler", "consumerPID",
		func(ctx context.Context, pid shared.NegotiationPID, msg shared.ContractNegotiationTerminationMessage) (
			*contract.Negotiation, error,
		) {
			return dh.negotiations.HandleTermination(ctx, constants.DataspaceConsumer, pid, msg)
		})
}
