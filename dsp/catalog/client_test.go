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

package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp/catalog"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormats(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		want    []string
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: `["CSV","JSON"]`, want: []string{"CSV", "JSON"}},
		{name: "empty list", status: http.StatusOK, body: `[]`, want: []string{}},
		{name: "empty body", status: http.StatusOK, body: ``, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `{"formats":`, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: true},
		{name: "unknown dataset", status: http.StatusNotFound, body: ``, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/catalog/datasets/ds-1/formats", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := catalog.NewClient(shared.MustParseURL(srv.URL+"/catalog"), shared.NewHTTPRequester(time.Second))
			got, err := c.Formats(context.Background(), "ds-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, catalog.ErrUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatsUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := shared.MustParseURL(srv.URL)
	srv.Close()

	_, err := catalog.NewClient(u, shared.NewHTTPRequester(time.Second)).Formats(context.Background(), "ds-1")
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
}
