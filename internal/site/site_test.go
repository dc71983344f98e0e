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

package site

import (
	"net/http"
	"testing"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/errors"
	"github.com/sitewright/sitewright/internal/routing"
)

func TestResolverHostMatch(t *testing.T) {
	rv, err := NewResolver(map[string]*config.SiteConfig{
		"main": {Hosts: []string{`^example\.com$`}, IsDefault: true},
		"blog": {Hosts: []string{`^blog\.example\.com$`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s := rv.Resolve("blog.example.com"); s.ID != "blog" {
		t.Fatalf("expected blog got %s", s.ID)
	}
	if s := rv.Resolve("example.com"); s.ID != "main" {
		t.Fatalf("expected main got %s", s.ID)
	}
	// an unknown host falls back to the default site
	if s := rv.Resolve("unknown.net"); s.ID != "main" {
		t.Fatalf("expected default fallback got %s", s.ID)
	}
}

func TestResolverHostMatchAnchored(t *testing.T) {
	rv, err := NewResolver(map[string]*config.SiteConfig{
		"main": {Hosts: []string{`example\.com`}, IsDefault: true},
		"open": {Hosts: []string{`.*`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s := rv.Resolve("example.com"); s.ID != "main" {
		t.Fatalf("expected main got %s", s.ID)
	}
	// an unanchored filter must span the whole host, so a superstring host
	// falls through to the next site
	if s := rv.Resolve("evil-example.com.attacker.net"); s.ID != "open" {
		t.Fatalf("expected the superstring host to miss, got %s", s.ID)
	}
}

func TestResolverSingleSiteImplicitDefault(t *testing.T) {
	rv, err := NewResolver(map[string]*config.SiteConfig{
		"only": {Hosts: []string{`^example\.com$`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rv.Default() == nil || rv.Default().ID != "only" {
		t.Fatal("expected the single site to be the implicit default")
	}
}

func TestResolverNoDefault(t *testing.T) {
	_, err := NewResolver(map[string]*config.SiteConfig{
		"a": {Hosts: []string{`^a\.com$`}},
		"b": {Hosts: []string{`^b\.com$`}},
	})
	if err != errors.ErrNoDefaultSite {
		t.Fatalf("expected ErrNoDefaultSite got %v", err)
	}
}

func TestResolverBadHostPattern(t *testing.T) {
	_, err := NewResolver(map[string]*config.SiteConfig{
		"a": {Hosts: []string{"(["}, IsDefault: true},
	})
	if err == nil {
		t.Fatal("expected an error for an uncompilable host pattern")
	}
}

func TestResolverEmpty(t *testing.T) {
	rv, err := NewResolver(nil)
	if err != nil {
		t.Fatal(err)
	}
	if rv.Resolve("example.com") != nil {
		t.Fatal("expected nil site with no configuration")
	}
}

func TestSiteRedirectDefaultCode(t *testing.T) {
	rv, err := NewResolver(map[string]*config.SiteConfig{
		"legacy": {IsDefault: true, RedirectTo: "https://example.com/"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rv.Default().RedirectCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301 default got %d", rv.Default().RedirectCode)
	}
}

func TestSiteRouteSwap(t *testing.T) {
	rv, err := NewResolver(map[string]*config.SiteConfig{
		"main": {IsDefault: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := rv.Get("main")
	if s.Routes() != nil {
		t.Fatal("expected nil RouteSet before the first load")
	}

	rs := routing.NewRouteSet("main")
	rs.Add(routing.NewRoute("r1", map[string]string{routing.ParamPattern: "a"}, nil))
	s.SetRoutes(rs)
	if got := s.Routes(); got == nil || got.Len() != 1 {
		t.Fatal("expected the swapped RouteSet to be visible")
	}
}
