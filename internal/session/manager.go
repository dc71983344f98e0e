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

package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// Manager exclusively owns the directory of live sessions. Every
// scan-and-mutate sequence runs under one coarse lock so that at most one
// session is created per logical client under concurrent request bursts.
type Manager struct {
	mtx         sync.Mutex
	cfg         *config.SessionsConfig
	store       store.Store
	sessions    []*Session
	byPrincipal map[string]*Session

	// now is the clock, replaceable in tests
	now func() int64
}

// NewManager returns a Manager persisting through the provided store
func NewManager(cfg *config.SessionsConfig, st store.Store) *Manager {
	return &Manager{
		cfg:         cfg,
		store:       st,
		byPrincipal: make(map[string]*Session),
		now:         func() int64 { return time.Now().Unix() },
	}
}

// Find returns a usable session for the request; it never fails. A session
// whose cookie matches is rebound; otherwise an anonymous session from the
// same remote address may be reused; otherwise a new session is created.
func (m *Manager) Find(r *http.Request, siteID string) *Session {
	ip := remoteIP(r)
	var cookieVal string
	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		cookieVal = c.Value
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if cookieVal != "" {
		for _, s := range m.sessions {
			if s.id == cookieVal {
				m.bindLocked(s, ip)
				observeSessionEvent("reuse_cookie")
				return s
			}
		}
	}

	if m.cfg.ReuseVacant {
		for _, s := range m.sessions {
			if s.ip == ip && s.principal == nil {
				m.bindLocked(s, ip)
				observeSessionEvent("reuse_ip")
				return s
			}
		}
	}

	s := m.createLocked(siteID, ip)
	m.enforceQuotaLocked(s)
	observeSessionEvent("create")
	return s
}

// bindLocked reattaches an existing session to the current request
func (m *Manager) bindLocked(s *Session, ip string) {
	s.stale = true
	s.requestCnt++
	if s.ip != ip {
		s.ip = ip
		s.dirty = true
	}
	s.RearmTimeout()
}

// createLocked constructs a brand-new session and appends it to the directory
func (m *Manager) createLocked(siteID, ip string) *Session {
	s := &Session{
		id:         newSessionID(),
		siteID:     siteID,
		ip:         ip,
		cookieName: m.cfg.CookieName,
		data:       make(map[string]string),
		requestCnt: 1,
		dirty:      true,
		mgr:        m,
	}
	s.RearmTimeout()
	m.sessions = append(m.sessions, s)
	m.updateGaugeLocked()
	log.Debug("session created", log.Pairs{"id": s.id, "ip": ip, "site": siteID})
	return s
}

// enforceQuotaLocked destroys the same-IP session with the smallest nonzero
// timeout when the address exceeds its session quota. The current session is
// never the victim, and pinned sessions are not candidates.
func (m *Manager) enforceQuotaLocked(cur *Session) {
	if m.cfg.MaxPerIP <= 0 {
		return
	}
	var count int
	var victim *Session
	for _, s := range m.sessions {
		if s.ip != cur.ip {
			continue
		}
		count++
		if s == cur || s.timeout == 0 {
			continue
		}
		if victim == nil || s.timeout < victim.timeout {
			victim = s
		}
	}
	if count > m.cfg.MaxPerIP && victim != nil {
		log.Info("session quota exceeded", log.Pairs{
			"ip": cur.ip, "count": count, "max": m.cfg.MaxPerIP, "evicted": victim.id})
		m.destroyLocked(victim)
		observeSessionEvent("evict_quota")
	}
}

// Destroy removes the session from the directory and deletes its backing row
func (m *Manager) Destroy(s *Session) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.destroyLocked(s)
	observeSessionEvent("destroy")
}

func (m *Manager) destroyLocked(s *Session) {
	for i, c := range m.sessions {
		if c == s {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	if s.principal != nil {
		delete(m.byPrincipal, s.principal.Name)
	}
	s.destroyed = true
	if err := m.store.Delete(s.id); err != nil {
		log.Error("session record delete failed", log.Pairs{"id": s.id, "detail": err.Error()})
	}
	m.updateGaugeLocked()
	log.Debug("session destroyed", log.Pairs{"id": s.id})
}

// Sweep destroys every session whose timeout has lapsed. Sessions with a
// timeout of 0 are pinned and never swept. Sweep is driven by an external
// heartbeat; the manager does not self-schedule.
func (m *Manager) Sweep() {
	now := m.now()
	m.mtx.Lock()
	defer m.mtx.Unlock()
	var expired []*Session
	for _, s := range m.sessions {
		if s.timeout > 0 && s.timeout < now {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		m.destroyLocked(s)
		observeSessionEvent("evict_timeout")
	}
	if len(expired) > 0 {
		log.Info("session sweep complete", log.Pairs{"evicted": len(expired), "live": len(m.sessions)})
	}
}

// Rehydrate loads all persisted session records into the live directory.
// Called once at server start, before requests are accepted.
func (m *Manager) Rehydrate() error {
	recs, err := m.store.LoadAll()
	if err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, rec := range recs {
		data := make(map[string]string)
		if rec.Data != "" {
			if err := json.Unmarshal([]byte(rec.Data), &data); err != nil {
				log.Error("session data bag decode failed", log.Pairs{
					"id": rec.ID, "detail": err.Error()})
				data = make(map[string]string)
			}
		}
		cookieName := rec.CookieName
		if cookieName == "" {
			cookieName = m.cfg.CookieName
		}
		s := &Session{
			id:         rec.ID,
			siteID:     rec.Site,
			ip:         rec.IP,
			cookieName: cookieName,
			data:       data,
			timeout:    rec.Timeout,
			stale:      true,
			mgr:        m,
		}
		m.sessions = append(m.sessions, s)
	}
	m.updateGaugeLocked()
	log.Info("sessions rehydrated", log.Pairs{"count": len(recs)})
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.sessions)
}

// Get returns the live session with the provided id, if present
func (m *Manager) Get(id string) *Session {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, s := range m.sessions {
		if s.id == id {
			return s
		}
	}
	return nil
}

// ByPrincipal returns the session indexed under the named principal
func (m *Manager) ByPrincipal(name string) *Session {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.byPrincipal[name]
}

func (m *Manager) indexPrincipal(s *Session, p *Principal) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.byPrincipal[p.Name] = s
}

func (m *Manager) unindexPrincipal(p *Principal) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.byPrincipal, p.Name)
}

func (m *Manager) updateGaugeLocked() {
	if metrics.SessionsLive != nil {
		metrics.SessionsLive.Set(float64(len(m.sessions)))
	}
}

// newSessionID returns a random 128-bit hex session id
func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// rand.Read on supported platforms does not fail; nanos as a last resort
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// remoteIP extracts the bare remote address from the request
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
