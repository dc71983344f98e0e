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
	"testing"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

func init() {
	metrics.Init()
}

const sessionID = "9f2c1a7e00000000000000000000abcd"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := &Store{Name: "test", Config: &config.StoreConfig{
		StoreType: "badger",
		Badger: config.BadgerStoreConfig{
			Directory: t.TempDir(),
		},
	}}
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBadgerStore(t *testing.T) {
	s := newTestStore(t)
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

func TestBadgerStoreLoadAll(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	s.Save(&store.Record{ID: "a", Site: "main"})
	s.Save(&store.Record{ID: "b", Site: "main"})
	s.Save(&store.Record{ID: "c", Site: "main"})

	recs, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records got %d", len(recs))
	}
}

func TestBadgerStoreDeleteAbsent(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	if err := s.Delete("never-saved"); err != nil {
		t.Fatal("expected deleting an absent record to be a no-op")
	}
}
