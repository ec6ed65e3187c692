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

package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/catalog"
	"github.com/go-dataspace/dsp-engine/dsp/policy"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFormats struct {
	formats []string
	err     error
	calls   int
}

func (s *staticFormats) Formats(_ context.Context, _ string) ([]string, error) {
	s.calls++
	return s.formats, s.err
}

type slowFormats struct{}

func (slowFormats) Formats(ctx context.Context, _ string) ([]string, error) {
	<-ctx.Done()
	return nil, errors.Join(catalog.ErrUnavailable, ctx.Err())
}

func TestCheckFormat(t *testing.T) {
	t.Parallel()
	lister := &staticFormats{formats: []string{"CSV", "JSON"}}
	gate := policy.NewGate(lister, policy.NewLRUCache(10, time.Minute))

	for _, f := range []string{"CSV", "csv", "json", "text/csv", "application/json", " CSV "} {
		assert.NoError(t, gate.CheckFormat(context.Background(), "ds", f), f)
	}
	for _, f := range []string{"XML", "application/xml", ""} {
		assert.ErrorIs(t, gate.CheckFormat(context.Background(), "ds", f), policy.ErrUnsupportedFormat, f)
	}
}

func TestCheckFormatLookupFailure(t *testing.T) {
	t.Parallel()
	lister := &staticFormats{err: catalog.ErrUnavailable}
	gate := policy.NewGate(lister, policy.NewLRUCache(10, time.Minute))
	err := gate.CheckFormat(context.Background(), "ds", "CSV")
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.NotErrorIs(t, err, policy.ErrUnsupportedFormat)
}

func TestCheckFormatTimeout(t *testing.T) {
	t.Parallel()
	gate := policy.NewGate(slowFormats{}, policy.NewLRUCache(10, time.Minute),
		policy.WithTimeout(20*time.Millisecond))
	err := gate.CheckFormat(context.Background(), "ds", "CSV")
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func agreement(id string, constraints ...odrl.Constraint) *odrl.Agreement {
	return &odrl.Agreement{
		PolicyClass: odrl.PolicyClass{
			ID:         id,
			Permission: []odrl.Permission{{Action: "odrl:use", Constraint: constraints}},
		},
		Type:   "odrl:Agreement",
		Target: "urn:uuid:5e9d2b4c-e2dc-4e44-9cf7-5ab3e0a8ef0f",
	}
}

func TestCheckAgreementCached(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := policy.NewLRUCache(10, time.Hour)
	gate := policy.NewGate(&staticFormats{}, cache, policy.WithClock(clock))

	a := agreement("a1", odrl.Constraint{
		LeftOperand:  "odrl:dateTime",
		Operator:     "odrl:lt",
		RightOperand: "2024-07-01T00:00:00Z",
	})
	require.NoError(t, gate.CheckAgreement(context.Background(), a))
	assert.Equal(t, 1, cache.Len())

	// The verdict is cached, so moving the clock past the constraint changes nothing.
	now = now.AddDate(0, 2, 0)
	require.NoError(t, gate.CheckAgreement(context.Background(), a))

	gate.Invalidate("a1")
	assert.Equal(t, 0, cache.Len())
	assert.ErrorIs(t, gate.CheckAgreement(context.Background(), a), policy.ErrInvalidAgreement)
}

func TestCheckAgreementInvalid(t *testing.T) {
	t.Parallel()
	gate := policy.NewGate(&staticFormats{}, policy.NewLRUCache(10, time.Hour))
	a := agreement("a2")
	a.Permission = nil
	assert.ErrorIs(t, gate.CheckAgreement(context.Background(), a), policy.ErrInvalidAgreement)
}

func TestLRUCacheBounds(t *testing.T) {
	t.Parallel()
	c := policy.NewLRUCache(2, time.Hour)
	c.Add("a", policy.Verdict{Valid: true})
	c.Add("b", policy.Verdict{Valid: true})
	c.Add("c", policy.Verdict{})
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.False(t, v.Valid)
}

func TestLRUCacheTTL(t *testing.T) {
	t.Parallel()
	c := policy.NewLRUCache(2, 10*time.Millisecond)
	c.Add("a", policy.Verdict{Valid: true})
	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNormaliseFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CSV", policy.NormaliseFormat("text/csv"))
	assert.Equal(t, "JSON", policy.NormaliseFormat("application/json"))
	assert.Equal(t, "PARQUET", policy.NormaliseFormat("parquet"))
	assert.Equal(t, "FOO/BAR", policy.NormaliseFormat("foo/bar"))
}
