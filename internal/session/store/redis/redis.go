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

package redis

import (
	"github.com/go-redis/redis"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// DefaultKeyPrefix is prepended to session ids when the store configuration
// names no prefix
const DefaultKeyPrefix = "sw:session:"

// Store represents a Redis session record store that conforms to the Store
// interface
type Store struct {
	Name   string
	Config *config.StoreConfig
	client *redis.Client
}

// Configuration returns the Configuration for the Store object
func (s *Store) Configuration() *config.StoreConfig {
	return s.Config
}

func (s *Store) prefix() string {
	if s.Config != nil && s.Config.Redis.KeyPrefix != "" {
		return s.Config.Redis.KeyPrefix
	}
	return DefaultKeyPrefix
}

// Connect connects to the configured Redis endpoint
func (s *Store) Connect() error {
	log.Info("connecting to redis", log.Pairs{
		"protocol": s.Config.Redis.Protocol, "endpoint": s.Config.Redis.Endpoint})
	opts := &redis.Options{
		Network: s.Config.Redis.Protocol,
		Addr:    s.Config.Redis.Endpoint,
	}
	if s.Config.Redis.Password != "" {
		opts.Password = s.Config.Redis.Password
	}
	s.client = redis.NewClient(opts)
	return s.client.Ping().Err()
}

// Save persists the record under its session id. Expiry is not delegated to
// Redis: the session manager's sweep owns record lifetime, and pinned
// sessions must never lapse.
func (s *Store) Save(r *store.Record) error {
	b, err := r.Marshal()
	if err != nil {
		return err
	}
	err = s.client.Set(s.prefix()+r.ID, b, 0).Err()
	metrics.ObserveStoreOperation(s.Name, "save", err)
	if err != nil {
		return err
	}
	log.Debug("redis session store save", log.Pairs{"id": r.ID})
	return nil
}

// Load returns the record for the provided session id
func (s *Store) Load(id string) (*store.Record, error) {
	b, err := s.client.Get(s.prefix() + id).Bytes()
	if err == redis.Nil {
		err = store.ErrNotFound
	}
	metrics.ObserveStoreOperation(s.Name, "load", err)
	if err != nil {
		log.Debug("redis session store miss", log.Pairs{"id": id})
		return nil, err
	}
	return store.UnmarshalRecord(b)
}

// Delete removes the record for the provided session id
func (s *Store) Delete(id string) error {
	log.Debug("redis session store delete", log.Pairs{"id": id})
	err := s.client.Del(s.prefix() + id).Err()
	metrics.ObserveStoreOperation(s.Name, "delete", err)
	return err
}

// LoadAll returns every record under the key prefix. Rows that fail to
// decode are skipped with a logged error rather than aborting the scan.
func (s *Store) LoadAll() ([]*store.Record, error) {
	keys, err := s.client.Keys(s.prefix() + "*").Result()
	if err != nil {
		metrics.ObserveStoreOperation(s.Name, "load_all", err)
		return nil, err
	}
	out := make([]*store.Record, 0, len(keys))
	for _, k := range keys {
		b, err := s.client.Get(k).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			metrics.ObserveStoreOperation(s.Name, "load_all", err)
			return nil, err
		}
		rec, err := store.UnmarshalRecord(b)
		if err != nil {
			log.Error("redis session record decode failed", log.Pairs{
				"key": k, "detail": err.Error()})
			continue
		}
		out = append(out, rec)
	}
	metrics.ObserveStoreOperation(s.Name, "load_all", nil)
	return out, nil
}

// Close disconnects from the Redis endpoint
func (s *Store) Close() error {
	return s.client.Close()
}
