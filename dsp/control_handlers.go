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
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/contract"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	contractopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/contract"
	transferopts "github.com/go-dataspace/dsp-engine/dsp/persistence/options/transfer"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/logging"
)

const controlErrorType = "dspace:ControlError"

type controlHandlers struct {
	negotiations *engine.NegotiationEngine
	transfers    *engine.TransferEngine
}

// decodeOptional decodes the body if there is one, actions without parameters may be sent
// without a body.
func decodeOptional[T any](req *http.Request) (T, error) {
	var v T
	if req.Body == nil || req.ContentLength == 0 {
		return v, nil
	}
	return shared.DecodeValid[T](req)
}

func controlRequestError(format string, args ...any) error {
	return requestError{
		status:    http.StatusBadRequest,
		errorType: controlErrorType,
		reason:    fmt.Sprintf(format, args...),
	}
}

func pathRole(req *http.Request) (constants.DataspaceRole, error) {
	role, err := constants.ParseRole(req.PathValue("role"))
	if err != nil {
		return role, invalidRequest(controlErrorType, err)
	}
	return role, nil
}

func (ch controlHandlers) createNegotiationHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "createNegotiationHandler")
	defer span.End()
	req = req.WithContext(ctx)

	body, err := shared.DecodeValid[NegotiationCreateRequest](req)
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}
	address, err := url.Parse(body.Address)
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}

	var neg *contract.Negotiation
	if body.Role == "consumer" {
		neg, err = ch.negotiations.RequestContract(ctx, address, body.Offer)
	} else {
		neg, err = ch.negotiations.OfferContract(ctx, address, body.Offer)
	}
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusCreated, NewNegotiationInfo(neg))
}

func (ch controlHandlers) getNegotiationHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "getNegotiationHandler")
	defer span.End()
	req = req.WithContext(ctx)

	role, err := pathRole(req)
	if err != nil {
		return err
	}
	pid, err := negotiationPathPID(req, "pid")
	if err != nil {
		return err
	}
	neg, err := ch.negotiations.GetNegotiation(ctx, role, pid)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, NewNegotiationInfo(neg))
}

//nolint:cyclop
func (ch controlHandlers) negotiationActionHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "negotiationActionHandler")
	defer span.End()
	req = req.WithContext(ctx)

	role, err := pathRole(req)
	if err != nil {
		return err
	}
	pid, err := negotiationPathPID(req, "pid")
	if err != nil {
		return err
	}
	body, err := decodeOptional[NegotiationActionRequest](req)
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}
	action := req.PathValue("action")
	logging.Extract(ctx).Info("Negotiation action", "role", role, "pid", pid, "action", action)

	var neg *contract.Negotiation
	switch {
	case action == ActionTerminate:
		neg, err = ch.negotiations.Terminate(ctx, role, pid, body.Code, body.Reasons)
	case role == constants.DataspaceConsumer && action == ActionRequest:
		if body.Offer == nil {
			return controlRequestError("action %s needs an offer", action)
		}
		neg, err = ch.negotiations.CounterRequest(ctx, pid, *body.Offer)
	case role == constants.DataspaceConsumer && action == ActionAccept:
		neg, err = ch.negotiations.AcceptOffer(ctx, pid)
	case role == constants.DataspaceConsumer && action == ActionVerify:
		neg, err = ch.negotiations.VerifyAgreement(ctx, pid)
	case role == constants.DataspaceProvider && action == ActionOffer:
		if body.Offer == nil {
			return controlRequestError("action %s needs an offer", action)
		}
		neg, err = ch.negotiations.CounterOffer(ctx, pid, *body.Offer)
	case role == constants.DataspaceProvider && action == ActionAgree:
		neg, err = ch.negotiations.SendAgreement(ctx, pid)
	case role == constants.DataspaceProvider && action == ActionFinalize:
		neg, err = ch.negotiations.Finalize(ctx, pid)
	default:
		return controlRequestError("%s can't %s a negotiation", role, action)
	}
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, NewNegotiationInfo(neg))
}

func (ch controlHandlers) listNegotiationsHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "listNegotiationsHandler")
	defer span.End()
	req = req.WithContext(ctx)

	var opts []contractopts.NegotiationOption
	q := req.URL.Query()
	if r := q.Get("role"); r != "" {
		role, err := constants.ParseRole(r)
		if err != nil {
			return invalidRequest(controlErrorType, err)
		}
		opts = append(opts, contractopts.WithRole(role))
	}
	if s := q.Get("state"); s != "" {
		state, err := contract.ParseState(s)
		if err != nil {
			return invalidRequest(controlErrorType, err)
		}
		opts = append(opts, contractopts.WithState(state))
	}
	if id := q.Get("agreementId"); id != "" {
		opts = append(opts, contractopts.WithAgreementID(id))
	}

	negs, err := ch.negotiations.ListNegotiations(ctx, opts...)
	if err != nil {
		return err
	}
	list := NegotiationList{Negotiations: make([]NegotiationInfo, 0, len(negs))}
	for _, n := range negs {
		list.Negotiations = append(list.Negotiations, NewNegotiationInfo(n))
	}
	return shared.EncodeValid(w, req, http.StatusOK, list)
}

func (ch controlHandlers) createTransferHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "createTransferHandler")
	defer span.End()
	req = req.WithContext(ctx)

	body, err := shared.DecodeValid[TransferCreateRequest](req)
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}
	p, err := ch.transfers.RequestTransfer(ctx, body.AgreementID, body.Format, body.DataAddress)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusCreated, NewTransferInfo(p))
}

func (ch controlHandlers) getTransferHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "getTransferHandler")
	defer span.End()
	req = req.WithContext(ctx)

	role, err := pathRole(req)
	if err != nil {
		return err
	}
	pid, err := transferPathPID(req, "pid")
	if err != nil {
		return err
	}
	p, err := ch.transfers.GetTransfer(ctx, role, pid)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, NewTransferInfo(p))
}

func (ch controlHandlers) transferActionHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "transferActionHandler")
	defer span.End()
	req = req.WithContext(ctx)

	role, err := pathRole(req)
	if err != nil {
		return err
	}
	pid, err := transferPathPID(req, "pid")
	if err != nil {
		return err
	}
	body, err := decodeOptional[TransferActionRequest](req)
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}
	action := req.PathValue("action")
	logging.Extract(ctx).Info("Transfer action", "role", role, "pid", pid, "action", action)

	var p *transfer.Process
	switch action {
	case ActionStart:
		p, err = ch.transfers.SendStart(ctx, role, pid, body.DataAddress)
	case ActionComplete:
		p, err = ch.transfers.SendCompletion(ctx, role, pid)
	case ActionSuspend:
		p, err = ch.transfers.SendSuspension(ctx, role, pid, body.Code, body.Reasons)
	case ActionTerminate:
		p, err = ch.transfers.SendTermination(ctx, role, pid, body.Code, body.Reasons)
	default:
		return controlRequestError("unknown transfer action %s", action)
	}
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, NewTransferInfo(p))
}

func (ch controlHandlers) listTransfersHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "listTransfersHandler")
	defer span.End()
	req = req.WithContext(ctx)

	var opts []transferopts.TransferOption
	q := req.URL.Query()
	if r := q.Get("role"); r != "" {
		role, err := constants.ParseRole(r)
		if err != nil {
			return invalidRequest(controlErrorType, err)
		}
		opts = append(opts, transferopts.WithRole(role))
	}
	if s := q.Get("state"); s != "" {
		state, err := transfer.ParseState(s)
		if err != nil {
			return invalidRequest(controlErrorType, err)
		}
		opts = append(opts, transferopts.WithState(state))
	}
	if id := q.Get("agreementId"); id != "" {
		opts = append(opts, transferopts.WithAgreementID(id))
	}

	procs, err := ch.transfers.ListTransfers(ctx, opts...)
	if err != nil {
		return err
	}
	list := TransferList{Transfers: make([]TransferInfo, 0, len(procs))}
	for _, p := range procs {
		list.Transfers = append(list.Transfers, NewTransferInfo(p))
	}
	return shared.EncodeValid(w, req, http.StatusOK, list)
}

func (ch controlHandlers) transferStartedHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "transferStartedHandler")
	defer span.End()
	req = req.WithContext(ctx)

	q := req.URL.Query()
	consumerPID, err := shared.ParseTransferPID(q.Get("consumerPid"))
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}
	providerPID, err := shared.ParseTransferPID(q.Get("providerPid"))
	if err != nil {
		return invalidRequest(controlErrorType, err)
	}
	return shared.EncodeValid(w, req, http.StatusOK, StartedResponse{
		Started: ch.transfers.IsTransferStarted(ctx, consumerPID, providerPID),
	})
}
