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

// Package catalog contains a client for the catalog service that knows which distribution
// formats a dataset supports.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/logging"
)

// ErrUnavailable is returned when the catalog could not be reached or gave an unusable answer.
var ErrUnavailable = errors.New("catalog unavailable")

// Client looks up dataset formats over HTTP.
type Client struct {
	base      *url.URL
	requester shared.Requester
}

func NewClient(base *url.URL, requester shared.Requester) *Client {
	return &Client{base: base, requester: requester}
}

// Formats returns the formats the dataset can be distributed in, as served by
// `GET <catalog>/datasets/{id}/formats`.
func (c *Client) Formats(ctx context.Context, datasetID string) ([]string, error) {
	u := c.base.JoinPath("datasets", datasetID, "formats")
	ctx, logger := logging.InjectLabels(ctx, "dataset_id", datasetID)
	body, err := c.requester.SendHTTPRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	var formats []string
	if err := json.Unmarshal(body, &formats); err != nil {
		logger.Error("Could not parse catalog response", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	logger.Debug("Got dataset formats", "formats", formats)
	return formats, nil
}
