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

// Package transfer contains the client subcommands for transfer processes.
package transfer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-dataspace/dsp-engine/dsp"
	dspshared "github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/internal/client/shared"
	"github.com/go-dataspace/dsp-engine/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const httpEndpointType = "https://w3id.org/idsa/v4.1/HTTP"

var (
	printJSON    bool
	endpoint     string
	endpointType string
	authToken    string
	code         string
	reasons      []string
	role         string
	state        string
	agreementID  string

	Command = &cobra.Command{
		Use:   "transfer",
		Short: "Manage transfer processes.",
	}

	requestCommand = &cobra.Command{
		Use:   "request <agreement_id> <format>",
		Short: "Request a transfer under a finalized agreement.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			ui.Info(fmt.Sprintf("Requesting %s transfer for agreement %s", args[1], args[0]))
			t, err := shared.Post[dsp.TransferInfo](ctx, client, "transfers", dsp.TransferCreateRequest{
				AgreementID: args[0],
				Format:      args[1],
				DataAddress: dataAddress(),
			})
			if err != nil {
				return fmt.Errorf("could not request transfer: %w", err)
			}
			return shared.PrintTransfer(t, printJSON)
		},
	}

	getCommand = &cobra.Command{
		Use:   "get <consumer|provider> <pid>",
		Short: "Show a transfer process.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			t, err := shared.Get[dsp.TransferInfo](ctx, client, "transfers/"+args[0]+"/"+args[1], nil)
			if err != nil {
				return fmt.Errorf("could not get transfer: %w", err)
			}
			return shared.PrintTransfer(t, printJSON)
		},
	}

	actionCommand = &cobra.Command{
		Use:   "action <consumer|provider> <pid> <action>",
		Short: "Take the next step in a transfer process.",
		Long: fmt.Sprintf("Takes a step in the transfer process, valid actions: %s, %s, %s, %s.",
			dsp.ActionStart, dsp.ActionSuspend, dsp.ActionComplete, dsp.ActionTerminate),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			t, err := shared.Post[dsp.TransferInfo](
				ctx, client, "transfers/"+args[0]+"/"+args[1]+"/"+args[2], dsp.TransferActionRequest{
					DataAddress: dataAddress(),
					Code:        code,
					Reasons:     reasons,
				})
			if err != nil {
				return fmt.Errorf("could not %s transfer: %w", args[2], err)
			}
			ui.Info(fmt.Sprintf("Transfer is %s", t.State))
			return shared.PrintTransfer(t, printJSON)
		},
	}

	listCommand = &cobra.Command{
		Use:   "list",
		Short: "List transfer processes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			q := url.Values{}
			for k, v := range map[string]string{"role": role, "state": state, "agreementId": agreementID} {
				if v != "" {
					q.Set(k, v)
				}
			}
			l, err := shared.Get[dsp.TransferList](ctx, client, "transfers", q)
			if err != nil {
				return fmt.Errorf("could not list transfers: %w", err)
			}
			return shared.PrintTransfers(l, printJSON)
		},
	}

	startedCommand = &cobra.Command{
		Use:   "started <consumer_pid> <provider_pid>",
		Short: "Check whether a transfer is started.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, err := setup()
			if err != nil {
				return err
			}
			resp, err := shared.Get[dsp.StartedResponse](ctx, client, "transfers/started", url.Values{
				"consumerPid": {args[0]},
				"providerPid": {args[1]},
			})
			if err != nil {
				return fmt.Errorf("could not check transfer: %w", err)
			}
			if printJSON {
				return shared.PrintJSON(resp)
			}
			if resp.Started {
				ui.Info("Transfer is started")
			} else {
				ui.Warn("Transfer is not started")
			}
			return nil
		},
	}
)

func init() {
	Command.PersistentFlags().BoolVarP(&printJSON, "json", "j", false, "output in JSON format")
	for _, c := range []*cobra.Command{requestCommand, actionCommand} {
		c.Flags().StringVar(&endpoint, "endpoint", "", "endpoint of the data address")
		c.Flags().StringVar(&endpointType, "endpoint-type", httpEndpointType, "type of the endpoint")
		c.Flags().StringVar(&authToken, "authorization", "", "authorization value of the endpoint")
	}
	actionCommand.Flags().StringVar(&code, "code", "", "suspension or termination code")
	actionCommand.Flags().StringSliceVar(&reasons, "reason", nil, "suspension or termination reason, can be repeated")
	listCommand.Flags().StringVar(&role, "role", "", "only list transfers of this role")
	listCommand.Flags().StringVar(&state, "state", "", "only list transfers in this state")
	listCommand.Flags().StringVar(&agreementID, "agreement", "", "only list transfers under this agreement")

	Command.AddCommand(requestCommand, getCommand, actionCommand, listCommand, startedCommand)
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

func dataAddress() *dspshared.DataAddress {
	if endpoint == "" {
		return nil
	}
	da := &dspshared.DataAddress{
		Type:         "dspace:DataAddress",
		EndpointType: endpointType,
		Endpoint:     endpoint,
	}
	if authToken != "" {
		da.EndpointProperties = []dspshared.EndpointProperty{{
			Type:  "dspace:EndpointProperty",
			Name:  "authorization",
			Value: authToken,
		}}
	}
	return da
}
