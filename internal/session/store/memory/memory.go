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

package memory

import (
	"sync"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// Store defines an in-process session record store that conforms to the
// Store interface. Records do not survive a restart.
type Store struct {
	Name   string
	Config *config.StoreConfig
	client sync.Map
}

// Configuration returns the Configuration for the Store object
func (s *Store) Configuration() *config.StoreConfig {
	return s.Config
}

// Connect initializes the Store
func (s *Store) Connect() error {
	log.Info("memory session store setup", log.Pairs{"name": s.Name})
	s.client = sync.Map{}
	return nil
}

// Save places a copy of the record in the store under its id
func (s *Store) Save(r *store.Record) error {
	rec := *r
	s.client.Store(rec.ID, &rec)
	metrics.ObserveStoreOperation(s.Name, "save", nil)
	return nil
}

// Load returns the record for the provided id
func (s *Store) Load(id string) (*store.Record, error) {
	v, ok := s.client.Load(id)
	if !ok {
		metrics.ObserveStoreOperation(s.Name, "load", store.ErrNotFound)
		return nil, store.ErrNotFound
	}
	rec := *(v.(*store.Record))
	metrics.ObserveStoreOperation(s.Name, "load", nil)
	return &rec, nil
}

// Delete removes the record for the provided id, if present
func (s *Store) Delete(id string) error {
	s.client.Delete(id)
	metrics.ObserveStoreOperation(s.Name, "delete", nil)
	return nil
}

// LoadAll returns every record in the store
func (s *Store) LoadAll() ([]*store.Record, error) {
	out := make([]*store.Record, 0)
	s.client.Range(func(_, v interface{}) bool {
		rec := *(v.(*store.Record))
		out = append(out, &rec)
		return true
	})
	metrics.ObserveStoreOperation(s.Name, "load_all", nil)
	return out, nil
}

// Close releases the store
func (s *Store) Close() error {
	return nil
}
