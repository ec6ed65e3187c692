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

package jsonld_test

import (
	"encoding/json"
	"testing"

	"github.com/go-dataspace/dsp-engine/jsonld"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextMarshal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ctx  jsonld.Context
		want string
	}{
		{
			name: "single root context",
			ctx:  jsonld.NewRootContext([]jsonld.ContextEntry{{ID: "https://w3id.org/dspace/2024/1/context.json"}}),
			want: `"https://w3id.org/dspace/2024/1/context.json"`,
		},
		{
			name: "multiple root contexts",
			ctx:  jsonld.NewRootContext([]jsonld.ContextEntry{{ID: "a"}, {ID: "b"}}),
			want: `["a","b"]`,
		},
		{
			name: "named contexts",
			ctx:  jsonld.NewNamedContext(map[string]jsonld.ContextEntry{"odrl": {ID: "http://www.w3.org/ns/odrl/2/"}}),
			want: `{"odrl":"http://www.w3.org/ns/odrl/2/"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// Marshal as an embedded value to make sure the non-pointer path is used.
			b, err := json.Marshal(struct {
				Context jsonld.Context `json:"@context"`
			}{tt.ctx})
			require.NoError(t, err)
			assert.JSONEq(t, `{"@context":`+tt.want+`}`, string(b))
		})
	}
}

func TestContextUnmarshal(t *testing.T) {
	t.Parallel()
	var c jsonld.Context
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &c))
	assert.Equal(t, []jsonld.ContextEntry{{ID: "a"}, {ID: "b"}}, c.GetRootContexts())

	require.NoError(t, json.Unmarshal([]byte(`{"dspace":{"@id":"x","@type":"@id"}}`), &c))
	assert.Equal(t, []jsonld.ContextEntry{{ID: "x", Type: "@id"}}, c.GetContextsFor("dspace"))

	assert.Error(t, json.Unmarshal([]byte(`12`), &c))
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var msg struct {
		Context jsonld.Context `json:"@context"`
		Type    string         `json:"@type"`
	}
	in := `{"@context": "https://w3id.org/dspace/2024/1/context.json", "@type": "dspace:ContractRequestMessage"}`
	require.NoError(t, json.Unmarshal([]byte(in), &msg))
	assert.Equal(t,
		[]jsonld.ContextEntry{{ID: "https://w3id.org/dspace/2024/1/context.json"}},
		msg.Context.GetContextsFor("dspace"))

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestContextEntryTypes(t *testing.T) {
	t.Parallel()
	c := jsonld.NewRootContext([]jsonld.ContextEntry{{ID: "a", Type: "@id"}})
	assert.Equal(t, []jsonld.ContextEntry{{ID: "a"}}, c.GetRootContexts())

	b, err := json.Marshal(jsonld.ContextEntry{ID: "x", Type: "@id"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"@id":"x","@type":"@id"}`, string(b))

	var ce jsonld.ContextEntry
	assert.Error(t, json.Unmarshal([]byte(`true`), &ce))
}
