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

// Package routing implements the weighted route matching engine. A Route is a
// single rewrite/redirect rule; a RouteSet is the collection of Routes owned
// by one site and selects the best match for a request by weight.
package routing

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sitewright/sitewright/internal/util/log"
)

// Route parameter keys recognized by the engine. Any other key parsed from a
// rule file is carried as an opaque annotation.
const (
	ParamPattern  = "pattern"
	ParamHost     = "host"
	ParamRedirect = "redirect"
	ParamStatus   = "status"
	ParamFile     = "file"
	ParamHTML     = "html"
)

// Weight characters, one per matched segment. Byte-wise string ordering makes
// a literal segment sort ahead of a capture segment.
const (
	weightLiteral = 'A'
	weightCapture = 'Z'
)

// Route is a single pattern-to-target rule. A Route is immutable once added
// to a RouteSet; matching never mutates the Route, so one Route may serve
// concurrent Match calls.
type Route struct {
	id         string
	params     map[string]string
	vargs      map[string]string
	pattern    string
	hasPattern bool
	segments   []string
	hostRE     *regexp.Regexp
	hostErr    error
	warnOnce   sync.Once
}

// MatchResult pairs a matched Route with the weight of the match and the
// rewrite captures extracted for the specific URI. Results are transient and
// are never shared between match attempts.
type MatchResult struct {
	Route    *Route
	Weight   string
	Captures map[string]string
}

// NewRoute returns a Route with the provided id, parameters and static
// rewrite values. The pattern parameter, when present, is normalized to have
// no leading separator. A host parameter is compiled once here; a pattern
// that fails to compile disables the route and is reported by HostErr.
func NewRoute(id string, params, vargs map[string]string) *Route {
	r := &Route{
		id:     id,
		params: make(map[string]string, len(params)),
		vargs:  make(map[string]string, len(vargs)),
	}
	for k, v := range params {
		r.params[k] = v
	}
	for k, v := range vargs {
		r.vargs[k] = v
	}
	if p, ok := r.params[ParamPattern]; ok {
		p = strings.TrimPrefix(strings.TrimSpace(p), "/")
		r.params[ParamPattern] = p
		r.pattern = p
		r.hasPattern = true
		r.segments = splitSegments(p)
	}
	if h, ok := r.params[ParamHost]; ok && h != "" {
		// anchored so the filter must span the whole request host
		r.hostRE, r.hostErr = regexp.Compile("^(?:" + h + ")$")
	}
	return r
}

// ID returns the Route's unique id
func (r *Route) ID() string {
	return r.id
}

// Param returns the named route parameter
func (r *Route) Param(key string) (string, bool) {
	v, ok := r.params[key]
	return v, ok
}

// Pattern returns the normalized path pattern, or empty for an id-keyed rule
func (r *Route) Pattern() string {
	return r.pattern
}

// HostPattern returns the raw host filter expression
func (r *Route) HostPattern() string {
	return r.params[ParamHost]
}

// HostErr returns the host filter compilation error, if any
func (r *Route) HostErr() error {
	return r.hostErr
}

// Redirect returns the redirect target, or empty if this route is not a redirect
func (r *Route) Redirect() string {
	return r.params[ParamRedirect]
}

// File returns the route's destination file, relative to the site docroot
func (r *Route) File() string {
	return r.params[ParamFile]
}

// HTML returns the route's inline content, if any
func (r *Route) HTML() string {
	return r.params[ParamHTML]
}

// StatusCode returns the route's status parameter parsed as an HTTP status
// code, or def when absent or unparseable
func (r *Route) StatusCode(def int) int {
	v, ok := r.params[ParamStatus]
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || i < 100 || i > 599 {
		return def
	}
	return i
}

// Vargs returns a copy of the route's static rewrite values
func (r *Route) Vargs() map[string]string {
	m := make(map[string]string, len(r.vargs))
	for k, v := range r.vargs {
		m[k] = v
	}
	return m
}

// Match tests the provided request URI and host against this Route. It
// returns the MatchResult on a match, else nil. Routes without a pattern
// parameter are id-keyed overrides and never path-match.
func (r *Route) Match(uri, host string) *MatchResult {
	if !r.hasPattern {
		return nil
	}
	if r.hostErr != nil {
		// an uncompilable host filter disables the route rather than running it unguarded
		return nil
	}
	if r.hostRE != nil {
		if !r.hostRE.MatchString(host) {
			log.Debug("route rejected by host filter", log.Pairs{"route": r.id, "host": host})
			return nil
		}
	} else {
		r.warnOnce.Do(func() {
			log.Warn("route has no host filter and matches any host",
				log.Pairs{"route": r.id, "pattern": r.pattern})
		})
	}

	useg := splitSegments(strings.TrimSpace(uri))
	if len(useg) != len(r.segments) {
		return nil
	}

	weight := make([]byte, len(useg))
	captures := make(map[string]string)
	for i, p := range r.segments {
		if name, ok := captureName(p); ok {
			captures[name] = useg[i]
			weight[i] = weightCapture
			continue
		}
		if p == useg[i] {
			weight[i] = weightLiteral
			continue
		}
		return nil
	}
	return &MatchResult{Route: r, Weight: string(weight), Captures: captures}
}

// splitSegments splits a path on '.' and '/', dropping empty segments. An
// input with no non-empty segments yields a single empty segment so the root
// path remains matchable.
func splitSegments(s string) []string {
	segs := strings.FieldsFunc(s, func(c rune) bool {
		return c == '.' || c == '/'
	})
	if len(segs) == 0 {
		return []string{""}
	}
	return segs
}

// captureName reports whether the pattern segment is a bracketed capture of
// the exact form [name=], returning the capture name
func captureName(seg string) (string, bool) {
	if len(seg) > 3 && strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "=]") {
		return seg[1 : len(seg)-2], true
	}
	return "", false
}
