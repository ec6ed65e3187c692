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

// Package odrl holds the ODRL policy types carried in offers and agreements, their
// validators and the evaluation of agreement constraints.
package odrl

import "time"

//nolint:lll
// This is for now a partial port of this JSON schema:
// https://international-data-spaces-association.github.io/ids-specification/2024-1/negotiation/message/schema/contract-schema.json

// Offer is the policy a provider proposes, or a consumer requests, for a dataset.
type Offer struct {
	MessageOffer
}

// MessageOffer is an ODRL MessageOffer.
type MessageOffer struct {
	PolicyClass
	Type   string `json:"@type" validate:"required,eq=odrl:Offer"`
	Target string `json:"odrl:target" validate:"required"`
}

// PolicyClass is an ODRL PolicyClass.
type PolicyClass struct {
	AbstractPolicyRule
	ID          string       `json:"@id" validate:"required"`
	ProviderID  string       `json:"dspace:providerId,omitempty"` // Got from an example, not in standard.
	Profile     []Reference  `json:"odrl:profile,omitempty" validate:"dive"`
	Permission  []Permission `json:"odrl:permission,omitempty" validate:"dive"`
	Obligation  []Duty       `json:"odrl:obligation,omitempty" validate:"dive"`
	Prohibition []any        `json:"odrl:prohibition"` // Required by the schema, even if empty.
}

// AbstractPolicyRule is an ODRL AbstractPolicyRule.
type AbstractPolicyRule struct {
	Assigner string `json:"odrl:assigner,omitempty"`
	Assignee string `json:"odrl:assignee,omitempty"`
}

// Reference is a reference.
type Reference struct {
	ID string `json:"@id,omitempty" validate:"required"`
}

// Permission is a permission entry.
type Permission struct {
	AbstractPolicyRule
	Action     string       `json:"action" validate:"required,odrl_action"`
	Constraint []Constraint `json:"constraint,omitempty" validate:"omitempty,dive"`
	Duty       *Duty        `json:"duty,omitempty" validate:"omitempty"`
}

// Duty is an ODRL duty.
type Duty struct {
	AbstractPolicyRule
	ID         string       `json:"@id,omitempty"`
	Action     string       `json:"action,omitempty" validate:"required,odrl_action"`
	Constraint []Constraint `json:"constraint,omitempty" validate:"omitempty,dive"`
}

// Constraint is an ODRL constraint.
type Constraint struct {
	RightOperand          string     `json:"odrl:rightOperand"`
	RightOperandReference *Reference `json:"odrl:rightOperandReference,omitempty" validate:"omitempty"`
	LeftOperand           string     `json:"odrl:leftOperand" validate:"odrl_leftoperand"`
	Operator              string     `json:"odrl:operator" validate:"odrl_operator"`
}

// Agreement is the policy both parties agreed on. It is minted once per negotiation and
// never changes afterwards.
type Agreement struct {
	PolicyClass
	Type      string    `json:"@type" validate:"required,eq=odrl:Agreement"`
	Target    string    `json:"odrl:target" validate:"required"`
	Timestamp time.Time `json:"dspace:timestamp"`
}

// NewAgreement builds an agreement out of an offer, with the given agreement ID.
func NewAgreement(id string, offer Offer, assigner, assignee string, now time.Time) Agreement {
	pc := offer.PolicyClass
	pc.ID = id
	if assigner != "" {
		pc.Assigner = assigner
	}
	if assignee != "" {
		pc.Assignee = assignee
	}
	if pc.Prohibition == nil {
		pc.Prohibition = []any{}
	}
	return Agreement{
		PolicyClass: pc,
		Type:        "odrl:Agreement",
		Target:      offer.Target,
		Timestamp:   now.UTC(),
	}
}
