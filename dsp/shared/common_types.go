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

// Package shared contains the dataspace protocol wire types and helpers used by all the
// dataspace packages.
package shared

import (
	"github.com/go-dataspace/dsp-engine/jsonld"
)

// Multilanguage is a DSP multilanguage entry.
// VersionResponse lists the protocol versions the node speaks.
type VersionResponse struct {
	Context          jsonld.Context    `json:"@context"`
	ProtocolVersions []ProtocolVersion `json:"protocolVersions" validate:"required,gte=1,dive"`
}

// ProtocolVersion contains a version and the path to the endpoints.
type ProtocolVersion struct {
	Version string `json:"version" validate:"required"`
	Path    string `json:"path" validate:"required"`
}

type Multilanguage struct {
	Value    string `json:"@value" validate:"required"`
	Language string `json:"@language" validate:"required"`
}

// NewReasons turns plain strings into english multilanguage entries.
func NewReasons(reasons ...string) []Multilanguage {
	ml := make([]Multilanguage, 0, len(reasons))
	for _, r := range reasons {
		ml = append(ml, Multilanguage{Value: r, Language: "en"})
	}
	return ml
}

// ReasonStrings returns the values of the multilanguage entries.
func ReasonStrings(ml []Multilanguage) []string {
	s := make([]string, 0, len(ml))
	for _, m := range ml {
		s = append(s, m.Value)
	}
	return s
}

// DSPError is the error payload returned by every dataspace endpoint.
type DSPError struct {
	Context     jsonld.Context  `json:"@context"`
	Type        string          `json:"@type"`
	ProviderPID string          `json:"dspace:providerPid,omitempty"`
	ConsumerPID string          `json:"dspace:consumerPid,omitempty"`
	Code        string          `json:"dspace:code,omitempty"`
	Reason      []Multilanguage `json:"dspace:reason,omitempty"`
	Description []Multilanguage `json:"dct:description,omitempty"`
}
