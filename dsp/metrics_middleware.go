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

package dsp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/urfave/negroni"
)

const (
	metricsNamespace = "dsp_engine"
	metricsSubsystem = "http"
)

// Labels of the request metrics. The route label is the handler name, never the raw path,
// PIDs would make its cardinality unbounded.
var requestLabels = []string{"method", "code", "route"}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_total",
		Help:      "Tracks the number of HTTP requests.",
	}, requestLabels)
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Tracks the latencies for HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, requestLabels)
	requestSize = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "request_size_bytes",
		Help:      "Tracks the size of HTTP requests.",
	}, requestLabels)
	responseSize = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "response_size_bytes",
		Help:      "Tracks the size of HTTP responses.",
	}, requestLabels)
	inFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_in_flight",
		Help:      "Tracks the HTTP requests being served.",
	}, []string{"route"})
)

// WrapHandlerWithMetrics records request count, latency and sizes of the handler under the
// given route label.
func WrapHandlerWithMetrics(route string, handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gauge := inFlight.WithLabelValues(route)
		gauge.Inc()
		defer gauge.Dec()

		start := time.Now()
		lrw := negroni.NewResponseWriter(w)
		handler.ServeHTTP(lrw, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"code":   strconv.Itoa(lrw.Status()),
			"route":  route,
		}
		requestsTotal.With(labels).Inc()
		requestDuration.With(labels).Observe(time.Since(start).Seconds())
		if r.ContentLength > 0 {
			requestSize.With(labels).Observe(float64(r.ContentLength))
		}
		responseSize.With(labels).Observe(float64(lrw.Size()))
	}
}
