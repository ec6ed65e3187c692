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

package odrl

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoTarget        = errors.New("agreement has no target")
	ErrNoPermission    = errors.New("agreement grants no permissions")
	ErrConstraintUnmet = errors.New("constraint not satisfied")
)

// Evaluate does a coarse evaluation of the agreement at the given moment. Only odrl:dateTime
// constraints are evaluated, other left operands are accepted as-is.
func (a Agreement) Evaluate(now time.Time) error {
	if a.Target == "" {
		return ErrNoTarget
	}
	if len(a.Permission) == 0 {
		return ErrNoPermission
	}
	for _, p := range a.Permission {
		for _, c := range p.Constraint {
			if err := c.evaluate(now); err != nil {
				return fmt.Errorf("permission %s: %w", p.Action, err)
			}
		}
	}
	return nil
}

func (c Constraint) evaluate(now time.Time) error {
	if Normalise(c.LeftOperand) != "odrl:dateTime" {
		return nil
	}
	right, err := time.Parse(time.RFC3339, c.RightOperand)
	if err != nil {
		return fmt.Errorf("%w: unparsable dateTime %q", ErrConstraintUnmet, c.RightOperand)
	}
	var ok bool
	switch Normalise(c.Operator) {
	case "odrl:lt":
		ok = now.Before(right)
	case "odrl:lteq":
		ok = !now.After(right)
	case "odrl:gt":
		ok = now.After(right)
	case "odrl:gteq":
		ok = !now.Before(right)
	case "odrl:eq":
		ok = now.Equal(right)
	case "odrl:neq":
		ok = !now.Equal(right)
	default:
		// Set operators make no sense on a single point in time.
		ok = false
	}
	if !ok {
		return fmt.Errorf("%w: dateTime %s %s", ErrConstraintUnmet, c.Operator, c.RightOperand)
	}
	return nil
}
