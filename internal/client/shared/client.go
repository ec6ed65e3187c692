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

// Package shared contains the helpers shared by the client subcommands.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	dspshared "github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/spf13/viper"
)

// Configuration keys of the client.
const (
	Address = "client.address"
	Timeout = "client.timeout"
	NoColor = "client.noColor"
)

// Client talks to the control API of an engine.
type Client struct {
	base      *url.URL
	requester dspshared.Requester
}

// GetClient returns a client for the configured control API.
func GetClient() (*Client, error) {
	base, err := url.Parse(viper.GetString(Address))
	if err != nil {
		return nil, fmt.Errorf("invalid control API address: %w", err)
	}
	return NewClient(base, dspshared.NewHTTPRequester(viper.GetDuration(Timeout))), nil
}

// NewClient returns a client for the control API at base.
func NewClient(base *url.URL, requester dspshared.Requester) *Client {
	return &Client{base: base, requester: requester}
}

// Get fetches path, decoding the response into T.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()
	return do[T](ctx, c, http.MethodGet, u, nil)
}

// Post sends body to path, decoding the response into T.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			var empty T
			return empty, fmt.Errorf("could not encode request: %w", err)
		}
	}
	return do[T](ctx, c, http.MethodPost, c.base.JoinPath(path), payload)
}

func do[T any](ctx context.Context, c *Client, method string, u *url.URL, payload []byte) (T, error) {
	var v T
	body, err := c.requester.SendHTTPRequest(ctx, method, u, payload)
	if err != nil {
		return v, controlError(err)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("could not decode response: %w", err)
	}
	return v, nil
}

// controlError turns an error response into an error carrying the reasons the engine gave.
func controlError(err error) error {
	var sErr *dspshared.StatusError
	if !errors.As(err, &sErr) {
		return err
	}
	var dErr dspshared.DSPError
	if json.Unmarshal(sErr.Body, &dErr) != nil || len(dErr.Reason) == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", err, strings.Join(dspshared.ReasonStrings(dErr.Reason), ", "))
}
