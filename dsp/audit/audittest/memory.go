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

// Package audittest provides an in-memory audit sink for tests.
package audittest

import (
	"context"
	"slices"
	"sync"

	"github.com/go-dataspace/dsp-engine/dsp/audit"
)

// Memory keeps all published events in memory.
type Memory struct {
	sync.Mutex
	events []audit.Event
}

func (m *Memory) Publish(_ context.Context, ev audit.Event) {
	m.Lock()
	defer m.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the received events, optionally only those of the given types.
func (m *Memory) Events(types ...audit.EventType) []audit.Event {
	m.Lock()
	defer m.Unlock()
	out := make([]audit.Event, 0, len(m.events))
	for _, ev := range m.events {
		if len(types) == 0 || slices.Contains(types, ev.Type) {
			out = append(out, ev)
		}
	}
	return out
}
