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

// Package store defines the session record store interface and the persisted
// record shape shared by the supported storage fabrics
package store

import (
	"encoding/json"
	"errors"

	"github.com/sitewright/sitewright/internal/config"
)

// ErrNotFound is returned by Load when no record exists for the id
var ErrNotFound = errors.New("session record not found")

// Record is one session's persisted row
type Record struct {
	// ID is the session id, which is also the session cookie value
	ID string `json:"id"`
	// Timeout is the eviction deadline in epoch seconds; 0 pins the session
	Timeout int64 `json:"timeout"`
	// IP is the remote address the session was last bound to
	IP string `json:"ip"`
	// CookieName is the name of the cookie the session was issued under
	CookieName string `json:"cookie_name"`
	// Site is the id of the owning site
	Site string `json:"site"`
	// Data is the serialized session data bag
	Data string `json:"data"`
}

// Marshal serializes the Record for storage
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord deserializes a stored Record
func UnmarshalRecord(b []byte) (*Record, error) {
	r := &Record{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Store is the interface for the supported session storage fabrics.
// Load must return ErrNotFound when no record exists for the id. Record
// lifetime is owned by the session manager's sweep, not the store.
type Store interface {
	Connect() error
	Save(r *Record) error
	Load(id string) (*Record, error)
	Delete(id string) error
	LoadAll() ([]*Record, error)
	Close() error
	Configuration() *config.StoreConfig
}
