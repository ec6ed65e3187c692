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

package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-dataspace/dsp-engine/dsp/shared"
)

// Kind classifies the errors the engines return.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindInvalidFormat
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidState:
		return "InvalidState"
	case KindInvalidFormat:
		return "InvalidFormat"
	case KindUnauthorized:
		return "Unauthorized"
	default:
		return "Internal"
	}
}

func (k Kind) status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindInvalidFormat:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

const (
	negotiationErrorType = "dspace:ContractNegotiationError"
	transferErrorType    = "dspace:TransferError"
)

// Error is returned by all engine operations. It carries what the HTTP layer needs to build
// a protocol error message.
type Error struct {
	kind        Kind
	errorType   string
	reason      string
	consumerPID string
	providerPID string
	err         error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.reason, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.reason)
}

func (e *Error) Unwrap() error       { return e.err }
func (e *Error) Kind() Kind          { return e.kind }
func (e *Error) StatusCode() int     { return e.kind.status() }
func (e *Error) ErrorType() string   { return e.errorType }
func (e *Error) DSPCode() string     { return fmt.Sprint(e.kind.status()) }
func (e *Error) ProviderPID() string { return e.providerPID }
func (e *Error) ConsumerPID() string { return e.consumerPID }

func (e *Error) Reason() []shared.Multilanguage {
	return shared.NewReasons(e.reason)
}

func (e *Error) Description() []shared.Multilanguage {
	return shared.NewReasons(e.kind.String())
}

// KindOf returns the kind of an engine error, any other error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

func negotiationError(kind Kind, reason, consumerPID, providerPID string, err error) *Error {
	return &Error{
		kind:        kind,
		errorType:   negotiationErrorType,
		reason:      reason,
		consumerPID: consumerPID,
		providerPID: providerPID,
		err:         err,
	}
}

func transferError(kind Kind, reason, consumerPID, providerPID string, err error) *Error {
	return &Error{
		kind:        kind,
		errorType:   transferErrorType,
		reason:      reason,
		consumerPID: consumerPID,
		providerPID: providerPID,
		err:         err,
	}
}
