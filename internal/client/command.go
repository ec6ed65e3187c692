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

// Package client contains a client for the control API of the engine, this is the base of
// all client subcommands.
package client

import (
	"fmt"
	"net/url"
	"time"

	"github.com/fatih/color"
	"github.com/go-dataspace/dsp-engine/internal/cfg"
	"github.com/go-dataspace/dsp-engine/internal/client/negotiation"
	"github.com/go-dataspace/dsp-engine/internal/client/shared"
	"github.com/go-dataspace/dsp-engine/internal/client/transfer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Command = &cobra.Command{
	Use:   "client",
	Short: "Drive an engine through its control API.",
	Long:  `Drive the negotiations and transfers of an engine through its control API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(viper.GetString(shared.Address))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid control API address: %s", viper.GetString(shared.Address))
		}
		if viper.GetBool(shared.NoColor) {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	cfg.AddPersistentFlag(
		Command, shared.Address, "address", "URL of the control API of the engine.", "http://127.0.0.1:8081")
	cfg.AddPersistentFlag(Command, shared.Timeout, "timeout", "Timeout of control API requests.", 10*time.Second)
	cfg.AddPersistentFlag(Command, shared.NoColor, "no-colour", "Disable colour in output.", false)

	Command.AddCommand(negotiation.Command)
	Command.AddCommand(transfer.Command)
}
