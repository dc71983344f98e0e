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
	"testing"

	"github.com/alicebob/miniredis"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

func init() {
	metrics.Init()
}

const sessionID = "9f2c1a7e00000000000000000000abcd"

func newTestStore(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	s := &Store{Name: "test", Config: &config.StoreConfig{
		StoreType: "redis",
		Redis: config.RedisStoreConfig{
			Protocol:  "tcp",
			Endpoint:  mr.Addr(),
			KeyPrefix: prefix,
		},
	}}
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestStore(t, "")
	defer s.Close()

	rec := &store.Record{ID: sessionID, Timeout: 1700000000, IP: "10.0.0.1",
		CookieName: "swsession", Site: "main", Data: `{"k":"v"}`}
	if err := s.Save(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IP != rec.IP || got.Data != rec.Data || got.Timeout != rec.Timeout {
		t.Fatalf("unexpected record %+v", got)
	}

	if err := s.Delete(sessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(sessionID); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s, mr := newTestStore(t, "custom:")
	defer s.Close()

	if err := s.Save(&store.Record{ID: sessionID, Site: "main"}); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("custom:" + sessionID) {
		t.Fatal("expected the record under the configured prefix")
	}

	// the default prefix applies when none is configured
	s2, mr2 := newTestStore(t, "")
	defer s2.Close()
	if err := s2.Save(&store.Record{ID: sessionID, Site: "main"}); err != nil {
		t.Fatal(err)
	}
	if !mr2.Exists(DefaultKeyPrefix + sessionID) {
		t.Fatal("expected the record under the default prefix")
	}
}

func TestRedisStoreLoadAll(t *testing.T) {
	s, mr := newTestStore(t, "")
	defer s.Close()

	s.Save(&store.Record{ID: "a", Site: "main"})
	s.Save(&store.Record{ID: "b", Site: "main"})

	// keys outside the prefix are not session records
	mr.Set("unrelated", "x")
	// a corrupt row under the prefix is skipped
	mr.Set(DefaultKeyPrefix+"corrupt", "{not json")

	recs, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 decodable records got %d", len(recs))
	}
}

func TestRedisStoreNoExpiry(t *testing.T) {
	s, mr := newTestStore(t, "")
	defer s.Close()

	if err := s.Save(&store.Record{ID: sessionID, Site: "main"}); err != nil {
		t.Fatal(err)
	}
	// record lifetime belongs to the session sweep, not redis
	if mr.TTL(DefaultKeyPrefix+sessionID) != 0 {
		t.Fatal("expected no ttl on session records")
	}
}
