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
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/internal/cfg"
	"github.com/spf13/viper"
)

// Configuration keys of the server command.
const (
	dspAddress     = "server.dsp.address"
	dspPort        = "server.dsp.port"
	dspExternalURL = "server.dsp.externalURL"

	controlAddress = "server.control.address"
	controlPort    = "server.control.port"

	metricsAddress = "server.metrics.address"
	metricsPort    = "server.metrics.port"

	healthAddress = "server.health.address"
	healthPort    = "server.health.port"

	participantID = "server.participantID"
	autoProgress  = "server.autoProgress"

	storeInMemory = "server.store.inMemory"
	storePath     = "server.store.path"

	catalogURL     = "server.catalog.url"
	requestTimeout = "server.requestTimeout"
	auditURL       = "server.audit.url"

	dispatchWorkers      = "server.dispatch.workers"
	dispatchInitialRetry = "server.dispatch.initialRetry"
	dispatchMaxElapsed   = "server.dispatch.maxElapsed"
	dispatchMaxAttempts  = "server.dispatch.maxAttempts"

	policyCacheSize = "server.policy.cacheSize"
	policyCacheTTL  = "server.policy.cacheTTL"
	policyTimeout   = "server.policy.timeout"

	otelEnabled     = "server.otel.enabled"
	otelEndpoint    = "server.otel.endpoint"
	otelServiceName = "server.otel.serviceName"
)

type config struct {
	dspAddr     string
	controlAddr string
	metricsAddr string
	healthAddr  string
	// self is where the peers reach our protocol endpoints.
	self *url.URL

	participantID string
	autoProgress  bool

	storeInMemory bool
	storePath     string

	catalogURL     *url.URL
	requestTimeout time.Duration
	auditURL       *url.URL

	workers      int
	initialRetry time.Duration
	maxElapsed   time.Duration
	maxAttempts  int

	cacheSize     int
	cacheTTL      time.Duration
	policyTimeout time.Duration

	otelEnabled     bool
	otelEndpoint    string
	otelServiceName string
}

func loadConfig() (config, error) {
	var c config
	var err error
	for _, l := range []struct {
		dst           *string
		addrKey, port string
	}{
		{&c.dspAddr, dspAddress, dspPort},
		{&c.controlAddr, controlAddress, controlPort},
		{&c.metricsAddr, metricsAddress, metricsPort},
		{&c.healthAddr, healthAddress, healthPort},
	} {
		if *l.dst, err = cfg.ListenAddr(l.addrKey, l.port); err != nil {
			return config{}, err
		}
	}

	external, err := cfg.URL(dspExternalURL, true)
	if err != nil {
		return config{}, err
	}
	c.self = external.JoinPath(constants.APIPath)

	c.participantID = viper.GetString(participantID)
	c.autoProgress = viper.GetBool(autoProgress)

	c.storeInMemory = viper.GetBool(storeInMemory)
	if c.storePath, err = cfg.String(storePath, !c.storeInMemory); err != nil {
		return config{}, fmt.Errorf("a store path is needed for a persistent store: %w", err)
	}

	if c.catalogURL, err = cfg.URL(catalogURL, true); err != nil {
		return config{}, err
	}
	if c.auditURL, err = cfg.URL(auditURL, false); err != nil {
		return config{}, err
	}

	if c.workers, err = cfg.Positive(dispatchWorkers); err != nil {
		return config{}, err
	}
	if c.maxAttempts, err = cfg.Positive(dispatchMaxAttempts); err != nil {
		return config{}, err
	}
	if c.cacheSize, err = cfg.Positive(policyCacheSize); err != nil {
		return config{}, err
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.requestTimeout, requestTimeout},
		{&c.initialRetry, dispatchInitialRetry},
		{&c.maxElapsed, dispatchMaxElapsed},
		{&c.cacheTTL, policyCacheTTL},
		{&c.policyTimeout, policyTimeout},
	}
	for _, d := range durations {
		*d.dst = viper.GetDuration(d.key)
		if *d.dst <= 0 {
			return config{}, fmt.Errorf("%s: must be a positive duration", d.key)
		}
	}

	c.otelEnabled = viper.GetBool(otelEnabled)
	c.otelServiceName = viper.GetString(otelServiceName)
	if c.otelEnabled {
		u, err := cfg.URL(otelEndpoint, true)
		if err != nil {
			return config{}, err
		}
		c.otelEndpoint = u.String()
	}

	if c.dspAddr == c.controlAddr {
		return config{}, errors.New("the control API can't share the protocol listener")
	}
	return c, nil
}
