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

// Package policy contains the checks a transfer has to pass before it may proceed.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultTimeout = 5 * time.Second

var (
	ErrUnsupportedFormat = errors.New("format not supported")
	ErrInvalidAgreement  = errors.New("agreement not valid")
)

var agreementChecks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "policy_agreement_checks_total",
		Help: "Tracks agreement validity checks by result and whether the cache answered.",
	}, []string{"result", "cached"},
)

// FormatLister knows the supported formats of a dataset.
type FormatLister interface {
	Formats(ctx context.Context, datasetID string) ([]string, error)
}

// Gate runs the format and agreement checks.
type Gate struct {
	formats FormatLister
	cache   Cache
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Gate)

// WithTimeout sets the timeout of a single format lookup.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// WithClock sets the clock agreements are evaluated against.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(formats FormatLister, cache Cache, opts ...Option) *Gate {
	g := &Gate{
		formats: formats,
		cache:   cache,
		timeout: defaultTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CheckFormat checks if the dataset can be delivered in the requested format. Lookup
// failures are returned as they are, a format the dataset doesn't have returns
// ErrUnsupportedFormat.
func (g *Gate) CheckFormat(ctx context.Context, datasetID, format string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx, logger := logging.InjectLabels(ctx, "dataset_id", datasetID, "format", format)

	supported, err := g.formats.Formats(ctx, datasetID)
	if err != nil {
		logger.Error("Could not look up dataset formats", "err", err)
		return err
	}
	want := NormaliseFormat(format)
	for _, f := range supported {
		if NormaliseFormat(f) == want {
			return nil
		}
	}
	logger.Info("Format not supported", "supported", supported)
	return fmt.Errorf("%w: %s not in %v", ErrUnsupportedFormat, format, supported)
}

// CheckAgreement evaluates the agreement, the verdict is cached by agreement ID.
func (g *Gate) CheckAgreement(ctx context.Context, agreement *odrl.Agreement) error {
	logger := logging.Extract(ctx).With("agreement_id", agreement.ID)
	v, ok := g.cache.Get(agreement.ID)
	if !ok {
		v = Verdict{Valid: true}
		if err := agreement.Evaluate(g.now()); err != nil {
			v = Verdict{Reason: err.Error()}
		}
		g.cache.Add(agreement.ID, v)
	}
	agreementChecks.WithLabelValues(v.result(), fmt.Sprint(ok)).Inc()
	if !v.Valid {
		logger.Info("Agreement not valid", "reason", v.Reason, "cached", ok)
		return fmt.Errorf("%w: %s", ErrInvalidAgreement, v.Reason)
	}
	return nil
}

// Invalidate drops the cached verdict of an agreement, for when the policy behind it changed.
func (g *Gate) Invalidate(agreementID string) {
	g.cache.Invalidate(agreementID)
}

// NormaliseFormat maps a format identifier to an upper case short name. MIME types are
// mapped to their file extension, so "text/csv" and "csv" are the same format.
func NormaliseFormat(f string) string {
	f = strings.TrimSpace(f)
	if strings.Contains(f, "/") {
		if m := mimetype.Lookup(strings.ToLower(f)); m != nil && m.Extension() != "" {
			f = m.Extension()
		}
	}
	return strings.ToUpper(strings.TrimPrefix(f, "."))
}
