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

// Package cfg contains configuration helpers for the engine commands.
package cfg

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AddPersistentFlag registers a persistent flag on cmd and binds it to configKey, so the
// setting can come from the flag, the environment or the config file. The type of def
// selects the flag type.
func AddPersistentFlag(cmd *cobra.Command, configKey, flag, usage string, def any) {
	flags := cmd.PersistentFlags()
	switch v := def.(type) {
	case int:
		flags.Int(flag, v, usage)
	case string:
		flags.String(flag, v, usage)
	case bool:
		flags.Bool(flag, v, usage)
	case time.Duration:
		flags.Duration(flag, v, usage)
	case []string:
		flags.StringSlice(flag, v, usage)
	default:
		panic(fmt.Sprintf("flag %s: unsupported type %T", flag, v))
	}
	if err := viper.BindPFlag(configKey, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s to %s: %s", flag, configKey, err))
	}
	viper.SetDefault(configKey, def)
}
