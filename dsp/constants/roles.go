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

// Package constants contains constants shared by the dataspace packages.
package constants

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DSPContext is the JSON-LD context of the dataspace protocol messages.
const DSPContext = "https://w3id.org/dspace/2024/1/context.json"

const (
	// DSPVersion is the protocol version advertised under /.well-known/dspace-version.
	DSPVersion = "2024-1"
	// APIPath is the path the protocol endpoints are mounted on.
	APIPath = "/dsp"
)

// DataspaceRole is the side of the protocol a party plays for a single record.
type DataspaceRole uint8

const (
	DataspaceConsumer DataspaceRole = iota
	DataspaceProvider
)

// ParseRole parses a role, case insensitive.
func ParseRole(s string) (DataspaceRole, error) {
	switch strings.ToLower(s) {
	case "consumer":
		return DataspaceConsumer, nil
	case "provider":
		return DataspaceProvider, nil
	default:
		return 255, fmt.Errorf("not a valid role: %s", s)
	}
}

func (r DataspaceRole) String() string {
	switch r {
	case DataspaceConsumer:
		return "Consumer"
	case DataspaceProvider:
		return "Provider"
	default:
		panic(fmt.Sprintf("unexpected constants.DataspaceRole: %#v", r))
	}
}

// Other returns the role of the counterpart.
func (r DataspaceRole) Other() DataspaceRole {
	if r == DataspaceConsumer {
		return DataspaceProvider
	}
	return DataspaceConsumer
}

func (r DataspaceRole) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *DataspaceRole) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	nr, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = nr
	return nil
}
