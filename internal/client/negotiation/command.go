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

// Package negotiation contains the client subcommands for contract negotiations.
package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-dataspace/dsp-engine/dsp"
	"github.com/go-dataspace/dsp-engine/internal/client/shared"
	"github.com/go-dataspace/dsp-engine/internal/ui"
	"github.com/go-dataspace/dsp-engine/odrl"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	printJSON bool
	offerFile string
	code      string
	reasons   []string
	role      string
	state     string

	Command = &cobra.Command{
		Use:   "negotiation",
		Short: "Manage contract negotiations.",
	}

	startCommand = &cobra.Command{
		Use:   "start <consumer|provider> <peer_url> <offer_file>",
		Short: "Start a negotiation with a peer.",
		Long: `As consumer, sends a contract request for the offer to the provider at peer_url.
As provider, sends the offer to the consumer at peer_url.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			offer, err := readOffer(args[2])
			if err != nil {
				return err
			}
			ui.Info(fmt.Sprintf("Starting negotiation with %s", args[1]))
			n, err := shared.Post[dsp.NegotiationInfo](ctx, client, "negotiations", dsp.NegotiationCreateRequest{
				Role:    args[0],
				Address: args[1],
				Offer:   *offer,
			})
			if err != nil {
				return fmt.Errorf("could not start negotiation: %w", err)
			}
			return shared.PrintNegotiation(n, printJSON)
		},
	}

	getCommand = &cobra.Command{
		Use:   "get <consumer|provider> <pid>",
		Short: "Show a negotiation.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			n, err := shared.Get[dsp.NegotiationInfo](ctx, client, "negotiations/"+args[0]+"/"+args[1], nil)
			if err != nil {
				return fmt.Errorf("could not get negotiation: %w", err)
			}
			return shared.PrintNegotiation(n, printJSON)
		},
	}

	actionCommand = &cobra.Command{
		Use:   "action <consumer|provider> <pid> <action>",
		Short: "Take the next step in a negotiation.",
		Long: fmt.Sprintf("Takes a step in the negotiation, valid actions: %s.", strings.Join([]string{
			dsp.ActionRequest, dsp.ActionOffer, dsp.ActionAccept, dsp.ActionAgree,
			dsp.ActionVerify, dsp.ActionFinalize, dsp.ActionTerminate,
		}, ", ")),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			req := dsp.NegotiationActionRequest{Code: code, Reasons: reasons}
			if offerFile != "" {
				if req.Offer, err = readOffer(offerFile); err != nil {
					return err
				}
			}
			n, err := shared.Post[dsp.NegotiationInfo](
				ctx, client, "negotiations/"+args[0]+"/"+args[1]+"/"+args[2], req)
			if err != nil {
				return fmt.Errorf("could not %s negotiation: %w", args[2], err)
			}
			ui.Info(fmt.Sprintf("Negotiation is %s", n.State))
			return shared.PrintNegotiation(n, printJSON)
		},
	}

	listCommand = &cobra.Command{
		Use:   "list",
		Short: "List negotiations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			q := url.Values{}
			if role != "" {
				q.Set("role", role)
			}
			if state != "" {
				q.Set("state", state)
			}
			l, err := shared.Get[dsp.NegotiationList](ctx, client, "negotiations", q)
			if err != nil {
				return fmt.Errorf("could not list negotiations: %w", err)
			}
			return shared.PrintNegotiations(l, printJSON)
		},
	}
)

func init() {
	Command.PersistentFlags().BoolVarP(&printJSON, "json", "j", false, "output in JSON format")
	actionCommand.Flags().StringVar(&offerFile, "offer", "", "file containing a counter offer")
	actionCommand.Flags().StringVar(&code, "code", "", "termination code")
	actionCommand.Flags().StringSliceVar(&reasons, "reason", nil, "termination reason, can be repeated")
	listCommand.Flags().StringVar(&role, "role", "", "only list negotiations of this role")
	listCommand.Flags().StringVar(&state, "state", "", "only list negotiations in this state")

	Command.AddCommand(startCommand, getCommand, actionCommand, listCommand)
}

func setup() (context.Context, *shared.Client, error) {
	ctx, ok := viper.Get("initCTX").(context.Context)
	if !ok {
		return nil, nil, fmt.Errorf("couldn't fetch initial context")
	}
	client, err := shared.GetClient()
	if err != nil {
		return nil, nil, err
	}
	return ctx, client, nil
}

func readOffer(path string) (*odrl.Offer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read offer: %w", err)
	}
	var offer odrl.Offer
	if err := json.Unmarshal(b, &offer); err != nil {
		return nil, fmt.Errorf("could not parse offer: %w", err)
	}
	return &offer, nil
}
