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

package cfg

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/spf13/viper"
)

// ErrMissing is returned for required settings that are not set.
var ErrMissing = errors.New("required setting missing")

// String returns the setting, failing when it is empty and required.
func String(key string, required bool) (string, error) {
	v := viper.GetString(key)
	if v == "" && required {
		return "", fmt.Errorf("%w: %s", ErrMissing, key)
	}
	return v, nil
}

// URL parses the setting as an absolute http(s) URL. An optional setting that isn't set
// returns nil.
func URL(key string, required bool) (*url.URL, error) {
	v, err := String(key, required)
	if err != nil || v == "" {
		return nil, err
	}
	u, err := url.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: %s is not an http(s) URL", key, v)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s: %s has no host", key, v)
	}
	return u, nil
}

// ListenAddr joins the address and port settings, checking the port range.
func ListenAddr(addrKey, portKey string) (string, error) {
	port := viper.GetInt(portKey)
	if port < 1 || port > 65535 {
		return "", fmt.Errorf("%s: invalid port %d", portKey, port)
	}
	return net.JoinHostPort(viper.GetString(addrKey), strconv.Itoa(port)), nil
}

// Positive returns an integer setting that has to be larger than zero.
func Positive(key string) (int, error) {
	v := viper.GetInt(key)
	if v <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, v)
	}
	return v, nil
}
