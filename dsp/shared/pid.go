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
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NegotiationPID is a process ID minted by one of the parties of a contract negotiation.
// It is a distinct type from TransferPID so the two ID spaces can't be mixed up.
type NegotiationPID uuid.UUID

// TransferPID is a process ID minted by one of the parties of a transfer process.
type TransferPID uuid.UUID

func NewNegotiationPID() NegotiationPID { return NegotiationPID(uuid.New()) }
func NewTransferPID() TransferPID       { return TransferPID(uuid.New()) }

// ParseNegotiationPID parses either a `urn:uuid:` URN or a bare UUID.
// An empty string yields the zero PID.
func ParseNegotiationPID(s string) (NegotiationPID, error) {
	u, err := parsePID(s)
	return NegotiationPID(u), err
}

// ParseTransferPID parses either a `urn:uuid:` URN or a bare UUID.
// An empty string yields the zero PID.
func ParseTransferPID(s string) (TransferPID, error) {
	u, err := parsePID(s)
	return TransferPID(u), err
}

func (p NegotiationPID) UUID() uuid.UUID { return uuid.UUID(p) }
func (p NegotiationPID) String() string  { return uuid.UUID(p).String() }
func (p NegotiationPID) IsZero() bool    { return uuid.UUID(p) == uuid.Nil }

// URN returns the URN form, or an empty string for the zero PID.
func (p NegotiationPID) URN() string {
	if p.IsZero() {
		return ""
	}
	return uuid.UUID(p).URN()
}

func (p NegotiationPID) MarshalText() ([]byte, error) { return []byte(p.URN()), nil }

func (p *NegotiationPID) UnmarshalText(b []byte) error {
	np, err := ParseNegotiationPID(string(b))
	if err != nil {
		return err
	}
	*p = np
	return nil
}

func (p TransferPID) UUID() uuid.UUID { return uuid.UUID(p) }
func (p TransferPID) String() string  { return uuid.UUID(p).String() }
func (p TransferPID) IsZero() bool    { return uuid.UUID(p) == uuid.Nil }

// URN returns the URN form, or an empty string for the zero PID.
func (p TransferPID) URN() string {
	if p.IsZero() {
		return ""
	}
	return uuid.UUID(p).URN()
}

func (p TransferPID) MarshalText() ([]byte, error) { return []byte(p.URN()), nil }

func (p *TransferPID) UnmarshalText(b []byte) error {
	np, err := ParseTransferPID(string(b))
	if err != nil {
		return err
	}
	*p = np
	return nil
}

func parsePID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	if strings.HasPrefix(strings.ToLower(s), "urn:") {
		return ParseUUIDURN(s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid PID %q: %w", s, err)
	}
	return u, nil
}

// ParseUUIDURN parses an URN of the `urn:uuid:` namespace, case insensitive.
func ParseUUIDURN(s string) (uuid.UUID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return uuid.Nil, fmt.Errorf("malformed URN: %s", s)
	}
	if !strings.EqualFold(parts[0], "urn") || !strings.EqualFold(parts[1], "uuid") {
		return uuid.Nil, fmt.Errorf("not an UUID URN: %s", s)
	}
	u, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID in URN %s: %w", s, err)
	}
	return u, nil
}
