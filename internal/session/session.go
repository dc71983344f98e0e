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

// Package session implements per-client server-side state: the Session type
// holds one client's data bag, principal and timeout, and the Manager owns
// the directory of live sessions
package session

import (
	"encoding/json"
	"net/http"

	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// timeout horizon used for principals holding the no-timeout privilege
const noTimeoutHorizonSecs = 10 * 365 * 24 * 3600

// requestCnt increments beyond this count no longer extend the timeout
const maxTimeoutIncrements = 6

// Data bag keys holding credential material, cleared on logout
const (
	GlobalUser  = "auth.user"
	GlobalToken = "auth.token"
)

// Principal is the authenticated identity attached to a session
type Principal struct {
	// Name uniquely identifies the principal
	Name string
	// RememberMe extends the session's base timeout
	RememberMe bool
	// NoTimeout marks the principal as exempt from timeout eviction
	NoTimeout bool
}

// Session is one client's persistent state. A Session is bound to at most
// one in-flight request at a time by the Manager; the data bag is mutated
// only by the thread holding the current request. Saves are last-writer-wins
// when two requests race on one session.
type Session struct {
	id           string
	siteID       string
	ip           string
	cookieName   string
	cookieMaxAge int
	data         map[string]string
	timeout      int64
	requestCnt   int
	principal    *Principal
	stale        bool
	dirty        bool
	destroyed    bool
	mgr          *Manager
}

// ID returns the session id, which is also the session cookie value
func (s *Session) ID() string {
	return s.id
}

// SiteID returns the id of the owning site
func (s *Session) SiteID() string {
	return s.siteID
}

// IP returns the remote address the session is bound to
func (s *Session) IP() string {
	return s.ip
}

// Timeout returns the eviction deadline in epoch seconds; 0 means pinned
func (s *Session) Timeout() int64 {
	return s.timeout
}

// RequestCount returns the number of requests this session has served
func (s *Session) RequestCount() int {
	return s.requestCnt
}

// IsStale reports whether the session was reattached from a prior request
// rather than newly created
func (s *Session) IsStale() bool {
	return s.stale
}

// IsDestroyed reports whether the session has been removed from the directory
func (s *Session) IsDestroyed() bool {
	return s.destroyed
}

// Principal returns the authenticated principal, or nil for an anonymous session
func (s *Session) Principal() *Principal {
	return s.principal
}

// SetGlobal binds a value into the session's data bag
func (s *Session) SetGlobal(key, value string) {
	s.data[key] = value
	s.dirty = true
}

// GetGlobal returns a value from the session's data bag
func (s *Session) GetGlobal(key string) (string, bool) {
	v, ok := s.data[key]
	return v, ok
}

// RemoveGlobal removes a value from the session's data bag
func (s *Session) RemoveGlobal(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
}

// Cookie returns the HTTP cookie identifying this session
func (s *Session) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    s.id,
		Path:     "/",
		MaxAge:   s.cookieMaxAge,
		HttpOnly: true,
	}
}

// Pin exempts the session from timeout eviction until explicitly destroyed
func (s *Session) Pin() {
	s.timeout = 0
	s.dirty = true
}

// RearmTimeout extends the session's eviction deadline: base timeout plus a
// per-request bonus capped at six increments, so active sessions live longer
// without a single burst granting unbounded life. Authenticated principals
// receive a larger base, remember-me larger still, and a no-timeout
// privilege an effectively infinite horizon.
func (s *Session) RearmTimeout() {
	now := s.mgr.now()
	if s.principal != nil && s.principal.NoTimeout {
		s.timeout = now + noTimeoutHorizonSecs
		s.cookieMaxAge = noTimeoutHorizonSecs
		s.dirty = true
		return
	}
	base := s.mgr.cfg.TimeoutSecs
	if s.principal != nil {
		base = s.mgr.cfg.AuthTimeoutSecs
		if s.principal.RememberMe {
			base = s.mgr.cfg.RememberTimeoutSecs
		}
	}
	n := s.requestCnt
	if n > maxTimeoutIncrements {
		n = maxTimeoutIncrements
	}
	s.timeout = now + base + int64(n)*s.mgr.cfg.TimeoutIncrementSecs
	s.cookieMaxAge = int(s.timeout - now)
	s.dirty = true
}

// Authenticate attaches a principal to the session and indexes it with the
// manager
func (s *Session) Authenticate(p *Principal) {
	s.principal = p
	s.dirty = true
	s.mgr.indexPrincipal(s, p)
	s.RearmTimeout()
}

// Logout clears the stored credential fields, detaches the principal, and
// removes this session from the principal-to-session index. The session
// itself survives as an anonymous session.
func (s *Session) Logout() {
	s.RemoveGlobal(GlobalUser)
	s.RemoveGlobal(GlobalToken)
	if s.principal != nil {
		s.mgr.unindexPrincipal(s.principal)
		s.principal = nil
	}
	s.dirty = true
	log.Info("session logout", log.Pairs{"id": s.id})
}

// Save persists the session's record to the backing store when dirty or
// forced. A storage failure is logged severe and the in-memory session
// remains usable for the rest of the request.
func (s *Session) Save(force bool) error {
	if !force && !s.dirty {
		return nil
	}
	if err := s.mgr.store.Save(s.record()); err != nil {
		log.Error("session save failed", log.Pairs{"id": s.id, "detail": err.Error()})
		return err
	}
	s.dirty = false
	return nil
}

// Destroy makes the session eviction-eligible immediately, signals the
// client to drop its cookie, and removes the session from the directory
func (s *Session) Destroy() {
	s.timeout = s.mgr.now()
	s.cookieMaxAge = -1
	s.mgr.Destroy(s)
}

// record renders the session as its persisted row
func (s *Session) record() *store.Record {
	b, err := json.Marshal(s.data)
	if err != nil {
		// a map[string]string cannot fail to marshal; guard anyway
		b = []byte("{}")
	}
	return &store.Record{
		ID:         s.id,
		Timeout:    s.timeout,
		IP:         s.ip,
		CookieName: s.cookieName,
		Site:       s.siteID,
		Data:       string(b),
	}
}

func observeSessionEvent(event string) {
	if metrics.SessionEvents != nil {
		metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}
