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

package logging

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the ID that ties the log lines of one request together. A request
// ID sent by the caller is kept, otherwise one is generated.
const RequestIDHeader = "X-Request-Id"

// NewMiddleware returns a middleware that puts a request scoped logger in the context.
func NewMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			labels := []any{
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			}
			if r.URL.RawQuery != "" {
				labels = append(labels, "query", r.URL.RawQuery)
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				labels = append(labels, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
			}
			next.ServeHTTP(w, r.WithContext(Inject(r.Context(), logger.With(labels...))))
		})
	}
}
