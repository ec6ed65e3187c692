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
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/dsp/transfer"
	"github.com/go-dataspace/dsp-engine/logging"
)

// transferMessage is negotiationMessage for transfer processes. The role decides which PID
// the path carries.
func transferMessage[T any](
	w http.ResponseWriter,
	req *http.Request,
	spanName string,
	role constants.DataspaceRole,
	apply func(ctx context.Context, role constants.DataspaceRole, pid shared.TransferPID, msg T) (
		*transfer.Process, error,
	),
) error {
	ctx, span := tracer.Start(req.Context(), spanName)
	defer span.End()
	req = req.WithContext(ctx)

	pathParam := "providerPID"
	if role == constants.DataspaceConsumer {
		pathParam = "consumerPID"
	}
	pid, err := transferPathPID(req, pathParam)
	if err != nil {
		return err
	}
	msg, err := shared.DecodeValid[T](req)
	if err != nil {
		return invalidRequest(transferErrorType, err)
	}
	p, err := apply(ctx, role, pid, msg)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, p.GetTransferProcess())
}

func (dh dspHandlers) transferProcess(
	w http.ResponseWriter, req *http.Request, role constants.DataspaceRole, pathParam string,
) error {
	ctx, span := tracer.Start(req.Context(), "transferProcessHandler")
	defer span.End()
	req = req.WithContext(ctx)

	pid, err := transferPathPID(req, pathParam)
	if err != nil {
		return err
	}
	p, err := dh.transfers.GetTransfer(ctx, role, pid)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, p.GetTransferProcess())
}

func (dh dspHandlers) providerTransferProcessHandler(w http.ResponseWriter, req *http.Request) error {
	return dh.transferProcess(w, req, constants.DataspaceProvider, "providerPID")
}

func (dh dspHandlers) consumerTransferProcessHandler(w http.ResponseWriter, req *http.Request) error {
	return dh.transferProcess(w, req, constants.DataspaceConsumer, "consumerPID")
}

func (dh dspHandlers) providerTransferRequestHandler(w http.ResponseWriter, req *http.Request) error {
	ctx, span := tracer.Start(req.Context(), "providerTransferRequestHandler")
	defer span.End()
	req = req.WithContext(ctx)

	transferReq, err := shared.DecodeValid[shared.TransferRequestMessage](req)
	if err != nil {
		return invalidRequest(transferErrorType, err)
	}
	logging.Extract(ctx).Debug("Got transfer request",
		"consumerPID", transferReq.ConsumerPID, "agreementID", transferReq.AgreementID)

	p, err := dh.transfers.InitiateTransfer(ctx, transferReq)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusCreated, p.GetTransferProcess())
}

func (dh dspHandlers) providerTransferStartHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "providerTransferStartHandler", constants.DataspaceProvider,
		dh.transfers.StartTransfer)
}

func (dh dspHandlers) providerTransferCompletionHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "providerTransferCompletionHandler", constants.DataspaceProvider,
		dh.transfers.CompleteTransfer)
}

func (dh dspHandlers) providerTransferSuspensionHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "providerTransferSuspensionHandler", constants.DataspaceProvider,
		dh.transfers.SuspendTransfer)
}

func (dh dspHandlers) providerTransferTerminationHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "providerTransferTerminationHandler", constants.DataspaceProvider,
		dh.transfers.TerminateTransfer)
}

func (dh dspHandlers) consumerTransferStartHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "consumerTransferStartHandler", constants.DataspaceConsumer,
		dh.transfers.StartTransfer)
}

func (dh dspHandlers) consumerTransferCompletionHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "consumerTransferCompletionHandler", constants.DataspaceConsumer,
		dh.transfers.CompleteTransfer)
}

func (dh dspHandlers) consumerTransferSuspensionHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "consumerTransferSuspensionHandler", constants.DataspaceConsumer,
		dh.transfers.SuspendTransfer)
}

func (dh dspHandlers) consumerTransferTerminationHandler(w http.ResponseWriter, req *http.Request) error {
	return transferMessage(w, req, "consumerTransferTerminationHandler", constants.DataspaceConsumer,
		dh.transfers.TerminateTransfer)
}
