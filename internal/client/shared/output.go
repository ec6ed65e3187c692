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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fatih/color"
	"github.com/go-dataspace/dsp-engine/dsp"
	"github.com/go-dataspace/dsp-engine/internal/ui"
	"github.com/spf13/viper"
)

// PrintJSON pretty prints o, highlighted unless colours are disabled.
func PrintJSON[T any](o T) error {
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("could not marshal output: %w", err)
	}
	var buf bytes.Buffer
	err = json.Indent(&buf, b, "", "  ")
	if err != nil {
		return fmt.Errorf("could not indent JSON: %w", err)
	}
	buf.WriteString("\n")
	if viper.GetBool(NoColor) || color.NoColor {
		ui.Print(buf.String())
		return nil
	}
	return quick.Highlight(os.Stdout, buf.String(), "json", "terminal256", "catppuccin-mocha")
}

func row(w *tabwriter.Writer, key string, value any) {
	fmt.Fprintf(w, "%s\t%v\n", color.New(color.Bold).Sprint(key), value)
}

// PrintNegotiation prints a negotiation, either as a table or as JSON.
func PrintNegotiation(n dsp.NegotiationInfo, printJSON bool) error {
	if printJSON {
		return PrintJSON(n)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	row(w, "Role", n.Role)
	row(w, "State", n.State)
	row(w, "Consumer PID", n.ConsumerPID)
	row(w, "Provider PID", n.ProviderPID)
	row(w, "Target", n.Target)
	row(w, "Agreement", n.AgreementID)
	row(w, "Callback", n.CallbackAddress)
	row(w, "Version", n.Version)
	row(w, "Modified", n.Modified.Format(time.RFC3339))
	return w.Flush()
}

// PrintNegotiations prints a list of negotiations, either as a table or as JSON.
func PrintNegotiations(l dsp.NegotiationList, printJSON bool) error {
	if printJSON {
		return PrintJSON(l)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("ROLE\tSTATE\tCONSUMER PID\tPROVIDER PID\tTARGET"))
	for _, n := range l.Negotiations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.Role, n.State, n.ConsumerPID, n.ProviderPID, n.Target)
	}
	return w.Flush()
}

// PrintTransfer prints a transfer process, either as a table or as JSON.
func PrintTransfer(t dsp.TransferInfo, printJSON bool) error {
	if printJSON {
		return PrintJSON(t)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	row(w, "Role", t.Role)
	row(w, "State", t.State)
	row(w, "Consumer PID", t.ConsumerPID)
	row(w, "Provider PID", t.ProviderPID)
	row(w, "Agreement", t.AgreementID)
	row(w, "Dataset", t.DatasetID)
	row(w, "Format", t.Format)
	if t.DataAddress != nil {
		row(w, "Endpoint", t.DataAddress.Endpoint)
		row(w, "Endpoint type", t.DataAddress.EndpointType)
	}
	row(w, "Callback", t.CallbackAddress)
	row(w, "Version", t.Version)
	row(w, "Modified", t.Modified.Format(time.RFC3339))
	return w.Flush()
}

// PrintTransfers prints a list of transfers, either as a table or as JSON.
func PrintTransfers(l dsp.TransferList, printJSON bool) error {
	if printJSON {
		return PrintJSON(l)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("ROLE\tSTATE\tCONSUMER PID\tPROVIDER PID\tDATASET\tFORMAT"))
	for _, t := range l.Transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Role, t.State, t.ConsumerPID, t.ProviderPID, t.DatasetID, t.Format)
	}
	return w.Flush()
}
