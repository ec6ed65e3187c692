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
	"errors"
	"fmt"
	"net/http"

	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

const (
	negotiationErrorType = "dspace:ContractNegotiationError"
	transferErrorType    = "dspace:TransferError"
)

// HTTPReturnError is an interface for a dataspace protocol error, containing all the information
// needed to return a sane dataspace error over HTTP.
type HTTPReturnError interface {
	error
	StatusCode() int
	ErrorType() string
	DSPCode() string
	Reason() []shared.Multilanguage
	Description() []shared.Multilanguage
	ProviderPID() string
	ConsumerPID() string
}

// requestError is returned for requests that never reach an engine, like undecodable bodies
// or malformed path parameters.
type requestError struct {
	status    int
	errorType string
	reason    string
	err       error
}

func (e requestError) Error() string {
	if e.err == nil {
		return e.reason
	}
	return fmt.Sprintf("%s: %s", e.reason, e.err)
}

func (e requestError) Unwrap() error       { return e.err }
func (e requestError) StatusCode() int     { return e.status }
func (e requestError) ErrorType() string   { return e.errorType }
func (e requestError) DSPCode() string     { return fmt.Sprint(e.status) }
func (e requestError) ProviderPID() string { return "" }
func (e requestError) ConsumerPID() string { return "" }

func (e requestError) Reason() []shared.Multilanguage {
	return shared.NewReasons(e.reason)
}

func (e requestError) Description() []shared.Multilanguage {
	return shared.NewReasons(http.StatusText(e.status))
}

func invalidRequest(errorType string, err error) error {
	return requestError{status: http.StatusBadRequest, errorType: errorType, reason: "invalid request", err: err}
}

func unknownPID(errorType, name string, err error) error {
	return requestError{
		status:    http.StatusNotFound,
		errorType: errorType,
		reason:    fmt.Sprintf("invalid %s", name),
		err:       err,
	}
}

// WrapHandlerWithError wraps a http handler that returns an error into a more generic http.Handler.
// It will handle the error like it's supposed to be an http error. If the function returns a normal
// error, it will return a 500 with a generic error message. If the error conforms to a HTTPError,
// it will use the information to format a proper HTTP dataspace error.
func WrapHandlerWithError(h func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		logger := logging.Extract(r.Context())
		logger.Error("HTTP handler returned error", "err", err.Error())

		var httpError HTTPReturnError
		if errors.As(err, &httpError) {
			handleHTTPError(w, r, httpError)
			return
		}
		if errors.Is(err, shared.ErrInvalidMessage) {
			handleHTTPError(w, r, requestError{
				status: http.StatusBadRequest, errorType: "dspace:UnknownError", reason: "invalid request", err: err,
			})
			return
		}

		// If a normal error we just return a generic 500 with a generic error.
		if err := shared.EncodeValid(w, r, http.StatusInternalServerError, shared.DSPError{
			Context: shared.GetDSPContext(),
			Type:    "dspace:UnknownError",
			Code:    "INTERNAL",
			Reason:  shared.NewReasons("Internal Server Error"),
		}); err != nil {
			logger.Error("Error while encoding generic error", "err", err)
		}
	})
}

func handleHTTPError(w http.ResponseWriter, r *http.Request, err HTTPReturnError) {
	dErr := shared.DSPError{
		Context:     shared.GetDSPContext(),
		Type:        err.ErrorType(),
		ProviderPID: err.ProviderPID(),
		ConsumerPID: err.ConsumerPID(),
		Code:        err.DSPCode(),
		Reason:      err.Reason(),
		Description: err.Description(),
	}
	if err := shared.EncodeValid(w, r, err.StatusCode(), dErr); err != nil {
		logging.Extract(r.Context()).Error("Error while encoding HTTP Error", "err", err)
	}
}
