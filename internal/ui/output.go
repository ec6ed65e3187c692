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

// Package ui contains the terminal output helpers of the client.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Output targets, replaced in tests.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

type level struct {
	label string
	badge *color.Color
	text  *color.Color
}

var (
	errorLevel = level{" ERROR ", color.New(color.BgRed, color.FgWhite, color.Bold), color.New(color.FgRed, color.Bold)}
	warnLevel  = level{" WARN ", color.New(color.BgYellow, color.FgBlack, color.Bold), color.New(color.FgYellow, color.Bold)}
	infoLevel  = level{" INFO ", color.New(color.BgGreen, color.FgWhite, color.Bold), color.New(color.FgGreen, color.Bold)}
)

func (l level) print(message string) {
	l.badge.Fprint(Stderr, l.label)
	l.text.Fprintln(Stderr, " "+message)
}

// Error prints a red error message to stderr.
func Error(message string) { errorLevel.print(message) }

// Warn prints a yellow warning message to stderr.
func Warn(message string) { warnLevel.print(message) }

// Info prints a green informational message to stderr.
func Info(message string) { infoLevel.print(message) }

// Errorf formats an error message.
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }

// Print writes a message to stdout, this is where command results go.
func Print(message string) {
	fmt.Fprint(Stdout, message)
}
