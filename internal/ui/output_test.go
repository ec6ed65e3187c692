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

package ui_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/go-dataspace/dsp-engine/internal/ui"
	"github.com/stretchr/testify/assert"
)

// Swaps the package level writers, so no parallel tests.
func TestOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	oldOut, oldErr, oldNoColor := ui.Stdout, ui.Stderr, color.NoColor
	ui.Stdout, ui.Stderr, color.NoColor = &stdout, &stderr, true
	t.Cleanup(func() { ui.Stdout, ui.Stderr, color.NoColor = oldOut, oldErr, oldNoColor })

	ui.Info("negotiation started")
	ui.Errorf("could not %s", "finalize")
	ui.Print("{}")

	assert.Equal(t, " INFO  negotiation started\n ERROR  could not finalize\n", stderr.String())
	assert.Equal(t, "{}", stdout.String())
}
