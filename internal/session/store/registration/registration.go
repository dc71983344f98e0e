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

// Package registration maps configured session stores to their storage
// fabric implementations
package registration

import (
	"fmt"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/session/store/badger"
	"github.com/sitewright/sitewright/internal/session/store/bbolt"
	"github.com/sitewright/sitewright/internal/session/store/memory"
	"github.com/sitewright/sitewright/internal/session/store/redis"
)

// Store Interface Types
const (
	stMemory = "memory"
	stBBolt  = "bbolt"
	stBadger = "badger"
	stRedis  = "redis"
)

// Stores maintains the list of connected stores
var Stores = make(map[string]store.Store)

// GetStore returns the Store named storeName if it exists
func GetStore(storeName string) (store.Store, error) {
	if s, ok := Stores[storeName]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("could not find session store named [%s]", storeName)
}

// LoadStoresFromConfig iterates the store configuration and connects each store
func LoadStoresFromConfig() error {
	for k, v := range config.Stores {
		s, err := NewStore(v)
		if err != nil {
			return fmt.Errorf("session store [%s]: %w", k, err)
		}
		Stores[k] = s
	}
	return nil
}

// CloseStores closes every connected store
func CloseStores() {
	for _, s := range Stores {
		s.Close()
	}
	Stores = make(map[string]store.Store)
}

// NewStore returns a connected Store object based on the provided StoreConfig
func NewStore(cfg *config.StoreConfig) (store.Store, error) {
	var s store.Store

	switch cfg.StoreType {
	case stBBolt:
		s = &bbolt.Store{Name: cfg.Name, Config: cfg}
	case stBadger:
		s = &badger.Store{Name: cfg.Name, Config: cfg}
	case stRedis:
		s = &redis.Store{Name: cfg.Name, Config: cfg}
	case stMemory:
		s = &memory.Store{Name: cfg.Name, Config: cfg}
	default:
		// Default to the memory store
		s = &memory.Store{Name: cfg.Name, Config: cfg}
	}

	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s, nil
}
