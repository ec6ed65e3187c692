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

package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/jsonld"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidMessage is returned when a message can't be decoded or doesn't validate.
var ErrInvalidMessage = errors.New("invalid message")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidators(validate); err != nil {
		panic(err)
	}
}

// TransferProcessState validates that the field contains a transfer process state.
func TransferProcessState(fl validator.FieldLevel) bool {
	states := []string{
		"dspace:REQUESTED",
		"dspace:STARTED",
		"dspace:TERMINATED",
		"dspace:COMPLETED",
		"dspace:SUSPENDED",
	}
	return slices.Contains(states, fl.Field().String())
}

// ContractNegotiationState validates that the field contains a contract negotiation state.
func ContractNegotiationState(fl validator.FieldLevel) bool {
	states := []string{
		"dspace:REQUESTED",
		"dspace:OFFERED",
		"dspace:ACCEPTED",
		"dspace:AGREED",
		"dspace:VERIFIED",
		"dspace:FINALIZED",
		"dspace:TERMINATED",
	}
	return slices.Contains(states, fl.Field().String())
}

// ProcessID validates that the field contains an UUID, either bare or as an URN.
func ProcessID(fl validator.FieldLevel) bool {
	_, err := parsePID(fl.Field().String())
	return err == nil
}

// EncodeValid validates the value and writes it as JSON with the given status.
func EncodeValid[T any](w http.ResponseWriter, r *http.Request, status int, v T) error {
	if err := validate.Struct(v); err != nil {
		return handleValidationError(err, logging.Extract(r.Context()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// DecodeValid decodes the request body and validates it.
func DecodeValid[T any](r *http.Request) (T, error) {
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, fmt.Errorf("%w: decode json: %w", ErrInvalidMessage, err)
	}

	if err := validate.Struct(v); err != nil {
		return v, handleValidationError(err, logging.Extract(r.Context()))
	}

	return v, nil
}

// ValidateAndMarshal validates a struct and marshals it into JSON.
func ValidateAndMarshal[T any](ctx context.Context, s T) ([]byte, error) {
	logger := logging.Extract(ctx)
	if err := validate.Struct(s); err != nil {
		err := handleValidationError(err, logger)
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalAndValidate unmarshals JSON into a struct and validates it.
func UnmarshalAndValidate[T any](ctx context.Context, b []byte, s T) (T, error) {
	logger := logging.Extract(ctx)
	err := json.Unmarshal(b, &s)
	if err != nil {
		logger.Error("Couldn't unmarshal JSON", "err", err)
		return s, fmt.Errorf("%w: couldn't unmarshal JSON: %w", ErrInvalidMessage, err)
	}

	if err := validate.Struct(s); err != nil {
		err := handleValidationError(err, logger)
		return s, err
	}
	return s, nil
}

func handleValidationError(err error, logger *slog.Logger) error {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		logger.Error("Invalid validation", "err", err)
		return fmt.Errorf("%w: invalid validation", ErrInvalidMessage)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, err := range verrs {
			logger.Error(
				"Validation error",
				"Namespace", err.Namespace(),
				"Field", err.Field(),
				"Tag", err.Tag(),
				"Value", err.Value(),
				"Param", err.Param(),
			)
		}
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	logger.Error("Unknown error", "err", err)
	return err
}

// RegisterValidators registers the dataspace specific validators.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("transfer_state", TransferProcessState); err != nil {
		return err
	}
	if err := v.RegisterValidation("contract_state", ContractNegotiationState); err != nil {
		return err
	}
	if err := v.RegisterValidation("dsp_pid", ProcessID); err != nil {
		return err
	}
	return odrl.RegisterValidators(v)
}

// GetDSPContext returns the JSON-LD context used in all outgoing messages.
func GetDSPContext() jsonld.Context {
	return jsonld.NewRootContext([]jsonld.ContextEntry{{ID: constants.DSPContext}})
}
