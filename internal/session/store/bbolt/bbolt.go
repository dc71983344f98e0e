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

package bbolt

import (
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// DefaultBucket is used when the store configuration names no bucket
const DefaultBucket = "sitewright.sessions"

// Store describes a BBolt session record store
type Store struct {
	Name   string
	Config *config.StoreConfig
	dbh    *bbolt.DB
}

// Configuration returns the Configuration for the Store object
func (s *Store) Configuration() *config.StoreConfig {
	return s.Config
}

func (s *Store) bucket() []byte {
	if s.Config != nil && s.Config.BBolt.Bucket != "" {
		return []byte(s.Config.BBolt.Bucket)
	}
	return []byte(DefaultBucket)
}

// Connect opens the configured BBolt database and ensures the bucket exists
func (s *Store) Connect() error {
	log.Info("bbolt session store setup", log.Pairs{"storeFile": s.Config.BBolt.Filename})

	var err error
	s.dbh, err = bbolt.Open(s.Config.BBolt.Filename, 0644, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}

	return s.dbh.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket()); err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return nil
	})
}

// Save persists the record under its session id
func (s *Store) Save(r *store.Record) error {
	b, err := r.Marshal()
	if err != nil {
		return err
	}
	err = s.dbh.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket()).Put([]byte(r.ID), b)
	})
	metrics.ObserveStoreOperation(s.Name, "save", err)
	if err != nil {
		return err
	}
	log.Debug("bbolt session store save", log.Pairs{"id": r.ID})
	return nil
}

// Load returns the record for the provided session id
func (s *Store) Load(id string) (*store.Record, error) {
	var value []byte
	err := s.dbh.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(s.bucket()).Get([]byte(id))
		if v == nil {
			return store.ErrNotFound
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	metrics.ObserveStoreOperation(s.Name, "load", err)
	if err != nil {
		log.Debug("bbolt session store miss", log.Pairs{"id": id})
		return nil, err
	}
	return store.UnmarshalRecord(value)
}

// Delete removes the record for the provided session id
func (s *Store) Delete(id string) error {
	log.Debug("bbolt session store delete", log.Pairs{"id": id})
	err := s.dbh.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket()).Delete([]byte(id))
	})
	metrics.ObserveStoreOperation(s.Name, "delete", err)
	return err
}

// LoadAll returns every record in the bucket. Rows that fail to decode are
// skipped with a logged error rather than aborting the scan.
func (s *Store) LoadAll() ([]*store.Record, error) {
	out := make([]*store.Record, 0)
	err := s.dbh.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket()).ForEach(func(k, v []byte) error {
			rec, err := store.UnmarshalRecord(v)
			if err != nil {
				log.Error("bbolt session record decode failed", log.Pairs{
					"id": string(k), "detail": err.Error()})
				return nil
			}
			out = append(out, rec)
			return nil
		})
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
