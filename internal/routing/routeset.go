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

package routing

import (
	"github.com/sitewright/sitewright/internal/errors"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// RouteSet is the collection of Routes owned by one site. A RouteSet is
// populated once during load and is read-only afterward; reloads build a new
// RouteSet and swap it in whole.
type RouteSet struct {
	site   string
	routes []*Route
	ids    map[string]*Route
}

// NewRouteSet returns an empty RouteSet owned by the named site
func NewRouteSet(site string) *RouteSet {
	return &RouteSet{
		site: site,
		ids:  make(map[string]*Route),
	}
}

// Site returns the id of the owning site
func (rs *RouteSet) Site() string {
	return rs.site
}

// Len returns the number of routes in the set
func (rs *RouteSet) Len() int {
	return len(rs.routes)
}

// Get returns the route with the provided id, if present
func (rs *RouteSet) Get(id string) *Route {
	return rs.ids[id]
}

// Has reports whether a route with the provided id is present
func (rs *RouteSet) Has(id string) bool {
	_, ok := rs.ids[id]
	return ok
}

// Add inserts a route into the set. A route whose id is already present is
// rejected with ErrDuplicateRouteID; the pre-existing route wins.
func (rs *RouteSet) Add(r *Route) error {
	if r == nil || r.id == "" {
		return errors.ErrInvalidRuleRecord
	}
	if _, ok := rs.ids[r.id]; ok {
		return errors.ErrDuplicateRouteID
	}
	rs.ids[r.id] = r
	rs.routes = append(rs.routes, r)
	return nil
}

// Search matches the request URI and host against every route in the set and
// returns the strongest match, or nil when no route matches. Weight strings
// rank candidates: a literal segment ('A') beats a capture ('Z') at the same
// position, compared left to right. Ties on weight are broken by insertion
// order, so the first-registered route wins; rule-file ordering is therefore
// a deliberate ranking input.
func (rs *RouteSet) Search(uri, host string) *MatchResult {
	var best *MatchResult
	for _, r := range rs.routes {
		m := r.Match(uri, host)
		if m == nil {
			continue
		}
		if best == nil || m.Weight < best.Weight {
			best = m
		}
	}
	if best == nil {
		// not an error; callers fall back to filesystem resolution
		log.Debug("no route matched", log.Pairs{"site": rs.site, "uri": uri, "host": host})
		observeSearch(rs.site, "nomatch")
		return nil
	}
	log.Debug("route matched", log.Pairs{"site": rs.site, "uri": uri,
		"route": best.Route.id, "weight": best.Weight})
	observeSearch(rs.site, "match")
	return best
}

func observeSearch(site, outcome string) {
	if metrics.RouteMatchStatus != nil {
		metrics.RouteMatchStatus.WithLabelValues(site, outcome).Inc()
	}
}
