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

// Package site maps request hosts to the sites this server hosts. A Site
// carries the document root, host filters, static redirect configuration,
// and the current RouteSet, which is swapped atomically on rule reloads.
package site

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"sync/atomic"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/errors"
	"github.com/sitewright/sitewright/internal/routing"
)

// Site is one hosted site
type Site struct {
	ID               string
	Docroot          string
	IsDefault        bool
	RedirectTo       string
	RedirectCode     int
	DirectoryListing bool
	RuleFiles        []string

	hosts  []*regexp.Regexp
	routes atomic.Value // *routing.RouteSet
}

// MatchesHost reports whether any of the site's host filters match the
// provided request host
func (s *Site) MatchesHost(host string) bool {
	for _, re := range s.hosts {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// Routes returns the site's current RouteSet, which may be nil before the
// first rule load
func (s *Site) Routes() *routing.RouteSet {
	rs, _ := s.routes.Load().(*routing.RouteSet)
	return rs
}

// SetRoutes atomically replaces the site's RouteSet
func (s *Site) SetRoutes(rs *routing.RouteSet) {
	s.routes.Store(rs)
}

// Resolver maps request hosts to sites
type Resolver struct {
	sites []*Site
	def   *Site
	byID  map[string]*Site
}

// NewResolver builds a Resolver from the configured site map. Exactly one
// site must be marked default when more than zero sites are configured; with
// a single configured site, that site is the implicit default.
func NewResolver(cfgs map[string]*config.SiteConfig) (*Resolver, error) {
	rv := &Resolver{byID: make(map[string]*Site, len(cfgs))}

	// deterministic ordering so first-host-match behavior is stable
	ids := make([]string, 0, len(cfgs))
	for id := range cfgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sc := cfgs[id]
		s := &Site{
			ID:               id,
			Docroot:          sc.Docroot,
			IsDefault:        sc.IsDefault,
			RedirectTo:       sc.RedirectTo,
			RedirectCode:     sc.RedirectCode,
			DirectoryListing: sc.DirectoryListing,
			RuleFiles:        sc.RuleFiles,
		}
		if s.RedirectTo != "" && s.RedirectCode == 0 {
			s.RedirectCode = http.StatusMovedPermanently
		}
		for _, h := range sc.Hosts {
			// anchored so a filter must span the whole request host
			re, err := regexp.Compile("^(?:" + h + ")$")
			if err != nil {
				return nil, fmt.Errorf("%w: site [%s] host [%s]: %s",
					errors.ErrInvalidHostPattern, id, h, err.Error())
			}
			s.hosts = append(s.hosts, re)
		}
		rv.sites = append(rv.sites, s)
		rv.byID[id] = s
		if s.IsDefault {
			rv.def = s
		}
	}
	if rv.def == nil {
		if len(rv.sites) == 1 {
			rv.def = rv.sites[0]
		} else if len(rv.sites) > 1 {
			return nil, errors.ErrNoDefaultSite
		}
	}
	return rv, nil
}

// Resolve returns the site owning the provided request host, falling back to
// the default site
func (rv *Resolver) Resolve(host string) *Site {
	for _, s := range rv.sites {
		if s.MatchesHost(host) {
			return s
		}
	}
	return rv.def
}

// Default returns the default site
func (rv *Resolver) Default() *Site {
	return rv.def
}

// Get returns the site with the provided id, if present
func (rv *Resolver) Get(id string) *Site {
	return rv.byID[id]
}

// Sites returns all sites in deterministic order
func (rv *Resolver) Sites() []*Site {
	return rv.sites
}
