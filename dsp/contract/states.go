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

package contract

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// State is the state of a contract negotiation.
type State struct {
	name  string
	index int
}

type stateContainer struct {
	REQUESTED  State
	OFFERED    State
	ACCEPTED   State
	AGREED     State
	VERIFIED   State
	FINALIZED  State
	TERMINATED State
}

// States contains all the negotiation states.
var States = stateContainer{
	REQUESTED:  State{name: "REQUESTED", index: 1},
	OFFERED:    State{name: "OFFERED", index: 2},
	ACCEPTED:   State{name: "ACCEPTED", index: 3},
	AGREED:     State{name: "AGREED", index: 4},
	VERIFIED:   State{name: "VERIFIED", index: 5},
	FINALIZED:  State{name: "FINALIZED", index: 6},
	TERMINATED: State{name: "TERMINATED", index: 7},
}

// All returns every state in declaration order.
func (c stateContainer) All() []State {
	return []State{
		c.REQUESTED, c.OFFERED, c.ACCEPTED, c.AGREED, c.VERIFIED, c.FINALIZED, c.TERMINATED,
	}
}

var validTransitions = map[State][]State{
	States.REQUESTED: {
		States.OFFERED,
		States.ACCEPTED,
		States.AGREED,
		States.TERMINATED,
	},
	States.OFFERED: {
		States.REQUESTED,
		States.ACCEPTED,
		States.TERMINATED,
	},
	States.ACCEPTED: {
		States.AGREED,
		States.TERMINATED,
	},
	States.AGREED: {
		States.VERIFIED,
		States.TERMINATED,
	},
	States.VERIFIED: {
		States.FINALIZED,
		States.TERMINATED,
	},
	States.FINALIZED:  {},
	States.TERMINATED: {},
}

// ParseState parses both the bare and the `dspace:` prefixed names, as a string or []byte.
func ParseState(a any) (State, error) {
	var s string
	switch v := a.(type) {
	case State:
		return v, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return State{}, fmt.Errorf("invalid type for contract state: %T", a)
	}
	s = strings.TrimPrefix(strings.ToUpper(s), "DSPACE:")
	for _, st := range States.All() {
		if st.name == s {
			return st, nil
		}
	}
	return State{}, fmt.Errorf("invalid contract state: %s", s)
}

// String returns the wire representation of the state.
func (s State) String() string {
	if s.index == 0 {
		return "UNDEFINED"
	}
	return "dspace:" + s.name
}

// IsValid returns false for the zero value.
func (s State) IsValid() bool { return s.index != 0 }

// IsTerminal returns true for states without outgoing transitions.
func (s State) IsTerminal() bool {
	return s == States.FINALIZED || s == States.TERMINATED
}

// CanTransitTo returns whether target is a legal next state. Self-loops are never legal.
func (s State) CanTransitTo(target State) bool {
	return slices.Contains(validTransitions[s], target)
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	ns, err := ParseState(str)
	if err != nil {
		return err
	}
	*s = ns
	return nil
}
