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

// Package jsonld handles the JSON-LD @context of protocol messages.
package jsonld

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContextEntry is a term definition, either a bare IRI or an object with @id and @type.
type ContextEntry struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`
}

type contextEntryObject ContextEntry

func (ce *ContextEntry) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case '"':
		*ce = ContextEntry{}
		return json.Unmarshal(data, &ce.ID)
	case '{':
		return json.Unmarshal(data, (*contextEntryObject)(ce))
	default:
		return fmt.Errorf("invalid context entry: %s", data)
	}
}

// MarshalJSON writes an entry without a type as its bare IRI.
func (ce ContextEntry) MarshalJSON() ([]byte, error) {
	if ce.Type == "" {
		return json.Marshal(ce.ID)
	}
	return json.Marshal(contextEntryObject(ce))
}

// Context is a JSON-LD @context. It holds either root entries, written as a single IRI or a
// list of them, or named entries, written as a map of terms.
type Context struct {
	roots []ContextEntry
	named map[string]ContextEntry
}

func (c *Context) UnmarshalJSON(data []byte) error {
	*c = Context{}
	switch firstByte(data) {
	case '"':
		var iri string
		if err := json.Unmarshal(data, &iri); err != nil {
			return err
		}
		c.roots = []ContextEntry{{ID: iri}}
	case '[':
		var iris []string
		if err := json.Unmarshal(data, &iris); err != nil {
			return fmt.Errorf("invalid context list: %w", err)
		}
		c.roots = make([]ContextEntry, 0, len(iris))
		for _, iri := range iris {
			c.roots = append(c.roots, ContextEntry{ID: iri})
		}
	case '{':
		return json.Unmarshal(data, &c.named)
	default:
		return fmt.Errorf("invalid context: %s", data)
	}
	return nil
}

// MarshalJSON has a value receiver, contexts are embedded by value in the messages.
func (c Context) MarshalJSON() ([]byte, error) {
	switch {
	case len(c.named) > 0:
		return json.Marshal(c.named)
	case len(c.roots) == 1:
		return json.Marshal(c.roots[0])
	case c.roots == nil:
		return []byte("[]"), nil
	default:
		return json.Marshal(c.roots)
	}
}

// GetContextsFor returns the entry of a named term, falling back to the root entries.
func (c *Context) GetContextsFor(term string) []ContextEntry {
	if e, ok := c.named[term]; ok {
		return []ContextEntry{e}
	}
	return c.roots
}

// GetRootContexts returns the root entries, empty for a context of named terms.
func (c *Context) GetRootContexts() []ContextEntry {
	return c.roots
}

// NewRootContext returns a context of root IRIs, the types of the entries are dropped.
func NewRootContext(entries []ContextEntry) Context {
	roots := make([]ContextEntry, 0, len(entries))
	for _, e := range entries {
		roots = append(roots, ContextEntry{ID: e.ID})
	}
	return Context{roots: roots}
}

func NewNamedContext(entries map[string]ContextEntry) Context {
	return Context{named: entries}
}

func firstByte(data []byte) byte {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return 0
	}
	return data[0]
}
