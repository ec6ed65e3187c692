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
	"fmt"
	"mime"
	"net/http"
	"slices"

	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

var acceptedMediaTypes = []string{"application/json", "application/ld+json"}

// jsonHeaderMiddleware sets the JSON content type on all responses, and rejects requests
// carrying a body that isn't JSON or JSON-LD.
func jsonHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || !slices.Contains(acceptedMediaTypes, mediaType) {
				logging.Extract(r.Context()).Info("Rejecting request body", "content_type", ct)
				dErr := shared.DSPError{
					Context: shared.GetDSPContext(),
					Type:    "dspace:UnknownError",
					Code:    fmt.Sprint(http.StatusUnsupportedMediaType),
					Reason:  shared.NewReasons("Unsupported content-type: " + ct),
				}
				if err := shared.EncodeValid(w, r, http.StatusUnsupportedMediaType, dErr); err != nil {
					logging.Extract(r.Context()).Error("Couldn't encode error", "err", err)
				}
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
