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

package server

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The config tests use the global viper instance and can't run in parallel.

func setDefaults(t *testing.T) {
	t.Helper()
	viper.Reset()
	for k, v := range map[string]any{
		dspAddress:           "0.0.0.0",
		dspPort:              8080,
		dspExternalURL:       "https://provider.example",
		controlAddress:       "127.0.0.1",
		controlPort:          8081,
		metricsAddress:       "0.0.0.0",
		metricsPort:          9091,
		healthAddress:        "0.0.0.0",
		healthPort:           9092,
		storeInMemory:        true,
		catalogURL:           "https://catalog.example/api",
		requestTimeout:       10 * time.Second,
		dispatchWorkers:      2,
		dispatchInitialRetry: 500 * time.Millisecond,
		dispatchMaxElapsed:   time.Minute,
		dispatchMaxAttempts:  50,
		policyCacheSize:      16,
		policyCacheTTL:       time.Minute,
		policyTimeout:        5 * time.Second,
		otelServiceName:      "dsp-engine",
	} {
		viper.Set(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	setDefaults(t)
	viper.Set(participantID, "urn:provider")
	viper.Set(auditURL, "https://audit.example/events")

	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", c.dspAddr)
	assert.Equal(t, "127.0.0.1:8081", c.controlAddr)
	assert.Equal(t, "https://provider.example/dsp", c.self.String())
	assert.Equal(t, "urn:provider", c.participantID)
	assert.Equal(t, "https://audit.example/events", c.auditURL.String())
	assert.Equal(t, 2, c.workers)
	assert.Equal(t, time.Minute, c.cacheTTL)
	assert.False(t, c.otelEnabled)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{name: "no external url", set: map[string]any{dspExternalURL: ""}},
		{name: "no catalog", set: map[string]any{catalogURL: ""}},
		{name: "bad audit url", set: map[string]any{auditURL: "audit"}},
		{name: "persistent store without path", set: map[string]any{storeInMemory: false, storePath: ""}},
		{name: "no workers", set: map[string]any{dispatchWorkers: 0}},
		{name: "zero timeout", set: map[string]any{requestTimeout: time.Duration(0)}},
		{name: "bad port", set: map[string]any{controlPort: 0}},
		{name: "shared listener", set: map[string]any{controlAddress: "0.0.0.0", controlPort: 8080}},
		{name: "otel without endpoint", set: map[string]any{otelEnabled: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setDefaults(t)
			for k, v := range tc.set {
				viper.Set(k, v)
			}
			_, err := loadConfig()
			assert.Error(t, err)
		})
	}
}
