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

package server

import (
	"context"
	"fmt"

	"github.com/go-dataspace/dsp-engine/dsp/persistence/badger"
	"github.com/go-dataspace/dsp-engine/logging"
)

func getStorageProvider(ctx context.Context, c config) (*badger.StorageProvider, error) {
	logger := logging.Extract(ctx)
	if c.storeInMemory {
		logger.Warn("Using an in-memory store, all state is lost on shutdown")
	} else {
		logger.Info("Opening store", "path", c.storePath)
	}
	provider, err := badger.New(ctx, c.storeInMemory, c.storePath)
	if err != nil {
		return nil, fmt.Errorf("could not open store: %w", err)
	}
	return provider, nil
}
