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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	"github.com/go-dataspace/dsp-engine/logging"
)

const (
	gcInterval = 5 * time.Minute
)

// StorageProvider is a badger backed persistence.StorageProvider.
type StorageProvider struct {
	ctx       context.Context
	db        *badger.DB
	closeOnce sync.Once
}

var _ persistence.StorageProvider = &StorageProvider{}

// New opens a badger database, either in memory or on disk at dbPath. The maintenance loop
// stops, and the database closes, when the context is cancelled.
func New(ctx context.Context, inMemory bool, dbPath string) (*StorageProvider, error) {
	var opt badger.Options
	var dbType string
	if inMemory {
		opt = badger.DefaultOptions("").WithInMemory(inMemory)
		dbType = "memory"
	} else {
		opt = badger.DefaultOptions(dbPath)
		dbType = "disk"
	}

	ctx, logger := logging.InjectLabels(ctx,
		"module", "badger",
		"db_type", dbType,
		"db_path", dbPath,
	)
	opt = opt.WithLogger(logAdaptor{logger})
	db, err := badger.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("could not open badger database: %w", err)
	}
	sp := &StorageProvider{
		ctx: ctx,
		db:  db,
	}
	go sp.maintenance()
	return sp, nil
}

// Close closes the database, it is safe to call more than once.
func (sp *StorageProvider) Close() error {
	var err error
	sp.closeOnce.Do(func() {
		err = sp.db.Close()
	})
	return err
}

func (sp *StorageProvider) maintenance() {
	logger := logging.Extract(sp.ctx)
	logger.Info("Starting database maintenance loop")
	ticker := time.NewTicker(gcInterval)
	for {
		select {
		case <-ticker.C:
			logger.Info("Garbage collection starting")
			err := sp.db.RunValueLogGC(0.7)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logger.Error("GC not completed cleanly", "err", err)
			}
		case <-sp.ctx.Done():
			ticker.Stop()
			if err := sp.Close(); err != nil {
				logger.Error("Could not close database", "err", err)
			}
			return
		}
	}
}

func get(db *badger.DB, key []byte) ([]byte, error) {
	var b []byte
	err := db.View(func(txn *badger.Txn) error {
		var err error
		b, err = txnGet(txn, key)
		return err
	})
	return b, err
}

// txnGet fetches a key inside a transaction, mapping a missing key to persistence.ErrNotFound.
func txnGet(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrNotFound, key)
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// getAllPrefixed returns the values of all keys with the given prefix.
func getAllPrefixed(db *badger.DB, prefix []byte) ([][]byte, error) {
	var values [][]byte
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// update runs fn in a read/write transaction, a commit conflict means another writer won.
func (sp *StorageProvider) update(fn func(txn *badger.Txn) error) error {
	err := sp.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %w", persistence.ErrVersionConflict, err)
	}
	return err
}

type logAdaptor struct {
	logger *slog.Logger
}

func (la logAdaptor) Errorf(f string, v ...any) {
	la.logger.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (la logAdaptor) Warningf(f string, v ...any) {
	la.logger.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (la logAdaptor) Infof(f string, v ...any) {
	la.logger.Info(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (la logAdaptor) Debugf(f string, v ...any) {
	la.logger.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
