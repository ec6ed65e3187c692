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

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	"github.com/go-dataspace/dsp-engine/odrl"
)

func mkAgreementKey(id string) []byte {
	return []byte("agreement/" + id)
}

// GetAgreement gets an agreement by ID.
func (sp *StorageProvider) GetAgreement(_ context.Context, id string) (*odrl.Agreement, error) {
	b, err := get(sp.db, mkAgreementKey(id))
	if err != nil {
		return nil, err
	}
	var a odrl.Agreement
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("could not decode agreement: %w", err)
	}
	return &a, nil
}

// PutAgreement stores an agreement, storing a second agreement with the same ID fails.
func (sp *StorageProvider) PutAgreement(_ context.Context, agreement *odrl.Agreement) error {
	if agreement.ID == "" {
		return errors.New("agreement has no ID")
	}
	b, err := json.Marshal(agreement)
	if err != nil {
		return fmt.Errorf("could not encode agreement: %w", err)
	}
	key := mkAgreementKey(agreement.ID)
	return sp.update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: agreement %s", persistence.ErrDuplicate, agreement.ID)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, b)
	})
}
