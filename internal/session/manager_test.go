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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/session/store"
	"github.com/sitewright/sitewright/internal/session/store/memory"
)

func testConfig() *config.SessionsConfig {
	return &config.SessionsConfig{
		StoreName:            "test",
		CookieName:           "swsession",
		TimeoutSecs:          3600,
		AuthTimeoutSecs:      86400,
		RememberTimeoutSecs:  604800,
		TimeoutIncrementSecs: 300,
		MaxPerIP:             3,
		ReuseVacant:          true,
		SweepIntervalMS:      60000,
	}
}

func newTestManager(t *testing.T, cfg *config.SessionsConfig) (*Manager, store.Store) {
	t.Helper()
	st := &memory.Store{Name: "test"}
	if err := st.Connect(); err != nil {
		t.Fatal(err)
	}
	m := NewManager(cfg, st)
	return m, st
}

func newRequest(ip string, cookie *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	r.RemoteAddr = ip + ":52114"
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

func TestFindCreates(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	s := m.Find(newRequest("10.0.0.1", nil), "main")
	if s == nil {
		t.Fatal("expected a session")
	}
	if s.IsStale() {
		t.Fatal("expected a fresh session")
	}
	if s.RequestCount() != 1 {
		t.Fatalf("expected request count 1 got %d", s.RequestCount())
	}
	if s.IP() != "10.0.0.1" {
		t.Fatalf("expected bound ip got %s", s.IP())
	}
	if s.SiteID() != "main" {
		t.Fatalf("expected site main got %s", s.SiteID())
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 live session got %d", m.Len())
	}
}

func TestFindReusesCookie(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	s1 := m.Find(newRequest("10.0.0.1", nil), "main")

	s2 := m.Find(newRequest("10.0.0.1", s1.Cookie()), "main")
	if s2 != s1 {
		t.Fatal("expected the cookie to rebind the same session")
	}
	if !s2.IsStale() {
		t.Fatal("expected a rebound session to be stale")
	}
	if s2.RequestCount() != 2 {
		t.Fatalf("expected request count 2 got %d", s2.RequestCount())
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 live session got %d", m.Len())
	}
}

func TestFindCookieWinsOverIPReuse(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	s1 := m.Find(newRequest("10.0.0.1", nil), "main")
	s2 := m.Find(newRequest("10.0.0.2", nil), "main")

	// the cookie identifies s2 even though s1 shares no address with it
	got := m.Find(newRequest("10.0.0.1", s2.Cookie()), "main")
	if got != s2 {
		t.Fatal("expected the cookie match to win")
	}
	// the session follows the client to its new address
	if got.IP() != "10.0.0.1" {
		t.Fatalf("expected rebound ip got %s", got.IP())
	}
	_ = s1
}

func TestFindReusesVacantSameIP(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	s1 := m.Find(newRequest("10.0.0.1", nil), "main")

	// no cookie, but an anonymous session exists for the address
	s2 := m.Find(newRequest("10.0.0.1", nil), "main")
	if s2 != s1 {
		t.Fatal("expected the vacant session to be reused")
	}
	if s2.RequestCount() != 2 {
		t.Fatalf("expected request count 2 got %d", s2.RequestCount())
	}
}

func TestFindNoVacantReuseWhenAuthenticated(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	s1 := m.Find(newRequest("10.0.0.1", nil), "main")
	s1.Authenticate(&Principal{Name: "alice"})

	s2 := m.Find(newRequest("10.0.0.1", nil), "main")
	if s2 == s1 {
		t.Fatal("expected an authenticated session never to be handed to a cookieless request")
	}
}

func TestFindNoVacantReuseWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ReuseVacant = false
	m, _ := newTestManager(t, cfg)
	s1 := m.Find(newRequest("10.0.0.1", nil), "main")
	s2 := m.Find(newRequest("10.0.0.1", nil), "main")
	if s2 == s1 {
		t.Fatal("expected a new session with vacant reuse disabled")
	}
}

func TestQuotaEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerIP = 2
	cfg.ReuseVacant = false
	m, _ := newTestManager(t, cfg)

	s1 := m.Find(newRequest("10.0.0.1", nil), "main")
	m.Find(newRequest("10.0.0.1", nil), "main")
	if m.Len() != 2 {
		t.Fatalf("expected 2 sessions got %d", m.Len())
	}

	// the third session for the address evicts the one expiring soonest
	m.Find(newRequest("10.0.0.1", nil), "main")
	if m.Len() != 2 {
		t.Fatalf("expected quota eviction to hold at 2 got %d", m.Len())
	}
	if !s1.IsDestroyed() {
		t.Fatal("expected the oldest session to be the victim")
	}
}

func TestQuotaNeverEvictsPinned(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerIP = 1
	cfg.ReuseVacant = false
	m, _ := newTestManager(t, cfg)

	s1 := m.Find(newRequest("10.0.0.1", nil), "main")
	s1.Pin()

	s2 := m.Find(newRequest("10.0.0.1", nil), "main")
	if s1.IsDestroyed() {
		t.Fatal("expected the pinned session to survive quota pressure")
	}
	if s2.IsDestroyed() {
		t.Fatal("the current session is never the victim")
	}
}

func TestQuotaDifferentIPsIndependent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerIP = 1
	cfg.ReuseVacant = false
	m, _ := newTestManager(t, cfg)

	for n := 0; n < 4; n++ {
		m.Find(newRequest(fmt.Sprintf("10.0.0.%d", n+1), nil), "main")
	}
	if m.Len() != 4 {
		t.Fatalf("expected 4 sessions across 4 addresses got %d", m.Len())
	}
}

func TestSweepEvictsExpired(t *testing.T) {
	m, st := newTestManager(t, testConfig())
	clock := int64(1_000_000)
	m.now = func() int64 { return clock }

	s1 := m.Find(newRequest("10.0.0.1", nil), "main")
	s2 := m.Find(newRequest("10.0.0.2", nil), "main")
	s1.Save(true)
	s2.Save(true)

	// jump past s1 and s2's deadlines
	clock += testConfig().TimeoutSecs * 10
	m.Sweep()

	if m.Len() != 0 {
		t.Fatalf("expected all sessions swept got %d", m.Len())
	}
	if !s1.IsDestroyed() || !s2.IsDestroyed() {
		t.Fatal("expected both sessions destroyed")
	}
	if _, err := st.Load(s1.ID()); err != store.ErrNotFound {
		t.Fatalf("expected the backing record deleted got %v", err)
	}
}

func TestSweepSparesPinned(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	clock := int64(1_000_000)
	m.now = func() int64 { return clock }

	s := m.Find(newRequest("10.0.0.1", nil), "main")
	s.Pin()

	clock += 100 * 365 * 24 * 3600
	m.Sweep()
	if s.IsDestroyed() {
		t.Fatal("expected the pinned session to survive the sweep")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 live session got %d", m.Len())
	}
}

func TestSweepSparesLive(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	clock := int64(1_000_000)
	m.now = func() int64 { return clock }

	s := m.Find(newRequest("10.0.0.1", nil), "main")
	clock += 10 // well inside the deadline
	m.Sweep()
	if s.IsDestroyed() {
		t.Fatal("expected the live session to survive")
	}
}

func TestRehydrate(t *testing.T) {
	st := &memory.Store{Name: "test"}
	if err := st.Connect(); err != nil {
		t.Fatal(err)
	}
	st.Save(&store.Record{
		ID: "abc123", Timeout: 9_999_999_999, IP: "10.0.0.1",
		CookieName: "swsession", Site: "main",
		Data: `{"auth.user":"alice"}`,
	})
	st.Save(&store.Record{
		ID: "bad456", Timeout: 9_999_999_999, IP: "10.0.0.2",
		Site: "main", Data: "{not json",
	})

	m := NewManager(testConfig(), st)
	if err := m.Rehydrate(); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 rehydrated sessions got %d", m.Len())
	}

	s := m.Get("abc123")
	if s == nil {
		t.Fatal("expected session abc123")
	}
	if !s.IsStale() {
		t.Fatal("expected a rehydrated session to be stale")
	}
	if v, _ := s.GetGlobal(GlobalUser); v != "alice" {
		t.Fatalf("expected data bag to survive got %q", v)
	}

	// a corrupt data bag yields an empty bag, not a dropped session
	s = m.Get("bad456")
	if s == nil {
		t.Fatal("expected session bad456")
	}
	if _, ok := s.GetGlobal(GlobalUser); ok {
		t.Fatal("expected an empty bag for a corrupt record")
	}
}

func TestByPrincipal(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	s := m.Find(newRequest("10.0.0.1", nil), "main")
	s.Authenticate(&Principal{Name: "alice"})

	if m.ByPrincipal("alice") != s {
		t.Fatal("expected the principal index to return the session")
	}
	s.Logout()
	if m.ByPrincipal("alice") != nil {
		t.Fatal("expected logout to clear the principal index")
	}
}

func TestDestroyRemovesDirectoryEntry(t *testing.T) {
	m, st := newTestManager(t, testConfig())
	s := m.Find(newRequest("10.0.0.1", nil), "main")
	s.Save(true)

	s.Destroy()
	if !s.IsDestroyed() {
		t.Fatal("expected the session marked destroyed")
	}
	if m.Len() != 0 {
		t.Fatalf("expected 0 live sessions got %d", m.Len())
	}
	if _, err := st.Load(s.ID()); err != store.ErrNotFound {
		t.Fatalf("expected the backing record deleted got %v", err)
	}
	if s.Cookie().MaxAge != -1 {
		t.Fatal("expected the cookie to instruct deletion")
	}
}

func TestRemoteIPWithoutPort(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	r.RemoteAddr = "10.0.0.9"
	s := m.Find(r, "main")
	if s.IP() != "10.0.0.9" {
		t.Fatalf("expected bare address got %s", s.IP())
	}
}

func TestSessionIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for n := 0; n < 100; n++ {
		id := newSessionID()
		if len(id) != 32 {
			t.Fatalf("expected 32 hex chars got %d", len(id))
		}
		if seen[id] {
			t.Fatal("expected unique session ids")
		}
		seen[id] = true
	}
}
