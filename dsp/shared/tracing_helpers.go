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

package shared

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/go-dataspace/dsp-engine/dsp/shared")

// TraceInfo is a serialisable copy of a span context.
type TraceInfo struct {
	TraceID    string `json:"traceId,omitempty"`
	SpanID     string `json:"spanId,omitempty"`
	TraceFlags byte   `json:"traceFlags,omitempty"`
}

// ExtractTraceInfo copies the span context out of the context.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	return TraceInfo{
		TraceID:    spanContext.TraceID().String(),
		SpanID:     spanContext.SpanID().String(),
		TraceFlags: byte(spanContext.TraceFlags()),
	}
}

// RestoreSpanContext rebuilds the span context out of the info.
func RestoreSpanContext(info TraceInfo, remote bool) trace.SpanContext {
	traceID, _ := trace.TraceIDFromHex(info.TraceID)
	spanID, _ := trace.SpanIDFromHex(info.SpanID)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.TraceFlags(info.TraceFlags),
		Remote:     remote,
	})
}

// ContextWithTraceInfo returns a context carrying the restored span context, if it is valid.
func ContextWithTraceInfo(ctx context.Context, info TraceInfo) context.Context {
	sc := RestoreSpanContext(info, true)
	if !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}
