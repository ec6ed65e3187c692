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

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

type dspHandlers struct {
	negotiations *engine.NegotiationEngine
	transfers    *engine.TransferEngine
}

func routeNotImplemented(w http.ResponseWriter, req *http.Request) {
	dErr := shared.DSPError{
		Context: shared.GetDSPContext(),
		Type:    "dspace:UnknownError",
		Code:    fmt.Sprint(http.StatusNotImplemented),
		Reason:  shared.NewReasons(fmt.Sprintf("%s %s has not been implemented", req.Method, req.URL.Path)),
	}
	if err := shared.EncodeValid(w, req, http.StatusNotImplemented, dErr); err != nil {
		logging.Extract(req.Context()).Error("Couldn't encode error", "err", err)
	}
}

func dspaceVersionHandler(w http.ResponseWriter, req *http.Request) error {
	return shared.EncodeValid(w, req, http.StatusOK, shared.VersionResponse{
		Context: shared.GetDSPContext(),
		ProtocolVersions: []shared.ProtocolVersion{
			{
				Version: constants.DSPVersion,
				Path:    constants.APIPath,
			},
		},
	})
}

func negotiationPathPID(req *http.Request, name string) (shared.NegotiationPID, error) {
	pid, err := shared.ParseNegotiationPID(req.PathValue(name))
	if err != nil {
		return pid, unknownPID(negotiationErrorType, name, err)
	}
	return pid, nil
}

func transferPathPID(req *http.Request, name string) (shared.TransferPID, error) {
	pid, err := shared.ParseTransferPID(req.PathValue(name))
	if err != nil {
		return pid, unknownPID(transferErrorType, name, err)
	}
	return pid, nil
}
