/*
 * Copyright 2024 The Sitewright Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package badger

import (
	"github.com/dgraph-io/badger"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// Store describes a Badger session record store
type Store struct {
	Name   string
	Config *config.StoreConfig
	dbh    *badger.DB
}

// Configuration returns the Configuration for the Store object
func (s *Store) Configuration() *config.StoreConfig {
	return s.Config
}

// Connect opens the configured Badger key-value store
func (s *Store) Connect() error {
	log.Info("badger session store setup", log.Pairs{"storeDir": s.Config.Badger.Directory})

	opts := badger.DefaultOptions(s.Config.Badger.Directory)
	if s.Config.Badger.ValueDirectory != "" {
		opts.ValueDir = s.Config.Badger.ValueDirectory
	}
	opts.Logger = nil

	var err error
	s.dbh, err = badger.Open(opts)
	return err
}

// Save persists the record under its session id
func (s *Store) Save(r *store.Record) error {
	b, err := r.Marshal()
	if err != nil {
		return err
	}
	err = s.dbh.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(r.ID), b)
	})
	metrics.ObserveStoreOperation(s.Name, "save", err)
	if err != nil {
		return err
	}
	log.Debug("badger session store save", log.Pairs{"id": r.ID})
	return nil
}

// Load returns the record for the provided session id
func (s *Store) Load(id string) (*store.Record, error) {
	var data []byte
	err := s.dbh.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		err = store.ErrNotFound
	}
	metrics.ObserveStoreOperation(s.Name, "load", err)
	if err != nil {
		log.Debug("badger session store miss", log.Pairs{"id": id})
		return nil, err
	}
	return store.UnmarshalRecord(data)
}

// Delete removes the record for the provided session id
func (s *Store) Delete(id string) error {
	log.Debug("badger session store delete", log.Pairs{"id": id})
	err := s.dbh.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(id))
	})
	metrics.ObserveStoreOperation(s.Name, "delete", err)
	return err
}

// LoadAll returns every record in the store. Rows that fail to decode are
// skipped with a logged error rather than aborting the scan.
func (s *Store) LoadAll() ([]*store.Record, error) {
	out := make([]*store.Record, 0)
	err := s.dbh.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := store.UnmarshalRecord(v)
			if err != nil {
				log.Error("badger session record decode failed", log.Pairs{
					"id": string(item.Key()), "detail": err.Error()})
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	metrics.ObserveStoreOperation(s.Name, "load_all", err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the Store
func (s *Store) Close() error {
	return s.dbh.Close()
}
