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

// Package interpreter resolves an inbound request to exactly one terminal
// state: a redirect, a route-designated target, a filesystem file, a
// directory listing, or not-found. One Interpreter serves one request.
package interpreter

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/errors"
	"github.com/sitewright/sitewright/internal/routing"
	"github.com/sitewright/sitewright/internal/site"
	"github.com/sitewright/sitewright/internal/util/log"
)

// ParamServerSideOptions is the rewrite parameter under which a filename
// suffix match is recorded
const ParamServerSideOptions = "serverSideOptions"

// Options carries the resolution knobs from the frontend configuration
type Options struct {
	// InternalPrefix is the reserved URI prefix that reroutes to the default site
	InternalPrefix string
	// IndexNames is the ordered list of index file names tried for directory requests
	IndexNames []string
	// ScriptExtensions is the ordered extension preference for fallback resolution
	ScriptExtensions []string
	// StaticExtensions follows ScriptExtensions in fallback preference
	StaticExtensions []string
}

// OptionsFromConfig returns Options populated from the frontend configuration
func OptionsFromConfig(fc *config.FrontendConfig) Options {
	if fc == nil {
		return Options{}
	}
	return Options{
		InternalPrefix:   fc.InternalPrefix,
		IndexNames:       fc.IndexNames,
		ScriptExtensions: fc.ScriptExtensions,
		StaticExtensions: fc.StaticExtensions,
	}
}

// Interpreter resolves one request and then exposes the outcome through its
// accessors. It is not safe for concurrent use; construct one per request.
type Interpreter struct {
	opts      Options
	annotator Annotator

	site        *site.Site
	params      map[string]string
	file        string
	html        string
	status      int
	redirect    string
	dirRequest  bool
	annotations map[string]string
}

// New returns an Interpreter with the provided options. A nil annotator
// selects the default header annotator.
func New(opts Options, an Annotator) *Interpreter {
	if an == nil {
		an = DefaultAnnotator
	}
	return &Interpreter{
		opts:      opts,
		annotator: an,
		params:    make(map[string]string),
	}
}

// Resolve runs the resolution state machine for the provided request URI and
// host against the site map. Policy violations (e.g. a directory listing
// request against a site with listings disabled) are returned as a
// StatusError; a not-found outcome is recorded in Status, not returned.
func (i *Interpreter) Resolve(uri, host string, rv *site.Resolver) error {
	s := rv.Resolve(host)

	// requests under the reserved internal prefix are served by the default site
	if i.opts.InternalPrefix != "" && strings.HasPrefix(uri, i.opts.InternalPrefix) {
		uri = "/" + strings.TrimPrefix(uri, i.opts.InternalPrefix)
		s = rv.Default()
	}
	i.site = s
	if s == nil {
		i.status = http.StatusNotFound
		return nil
	}

	// a site-level redirect bypasses routing and the filesystem entirely
	if s.RedirectTo != "" {
		i.redirect = s.RedirectTo
		i.status = s.RedirectCode
		return nil
	}

	// Clean collapses dot-dot segments so the docroot cannot be escaped
	rel := strings.TrimPrefix(path.Clean("/"+uri), "/")

	if rs := s.Routes(); rs != nil {
		if m := rs.Search(rel, host); m != nil {
			return i.applyRoute(m)
		}
	}
	return i.resolveFilesystem(rel)
}

// applyRoute realizes a matched route: rewrite values merge into the active
// parameter set, a redirect route terminates immediately, otherwise the
// route's file and inline content become the resolution target.
func (i *Interpreter) applyRoute(m *routing.MatchResult) error {
	r := m.Route
	for k, v := range r.Vargs() {
		i.params[k] = v
	}
	for k, v := range m.Captures {
		i.params[k] = v
	}
	if r.Redirect() != "" {
		i.redirect = r.Redirect()
		i.status = r.StatusCode(http.StatusFound)
		return nil
	}
	if f := r.File(); f != "" {
		i.file = filepath.Join(i.site.Docroot, f)
	}
	i.html = r.HTML()
	i.status = r.StatusCode(http.StatusOK)
	return i.finalize()
}

// resolveFilesystem resolves the request against the site's document root
// when no route matched
func (i *Interpreter) resolveFilesystem(rel string) error {
	cand := filepath.Join(i.site.Docroot, rel)

	if fi, err := os.Stat(cand); err == nil {
		if !fi.IsDir() {
			i.file = cand
			i.status = http.StatusOK
			return i.finalize()
		}
		// directory request: prefer an index file
		for _, name := range i.opts.IndexNames {
			p := filepath.Join(cand, name)
			if fi2, err := os.Stat(p); err == nil && !fi2.IsDir() {
				i.file = p
				i.status = http.StatusOK
				return i.finalize()
			}
		}
		if !i.site.DirectoryListing {
			return errors.ErrListingDisallowed
		}
		i.dirRequest = true
		i.file = cand
		i.status = http.StatusOK
		return nil
	}

	// candidate missing; fall back within its parent directory
	parent := filepath.Dir(cand)
	if pfi, err := os.Stat(parent); err == nil && pfi.IsDir() {
		base := strings.TrimSuffix(filepath.Base(cand), filepath.Ext(cand))
		ext := strings.TrimPrefix(filepath.Ext(cand), ".")

		if f := i.findByExtension(parent, base); f != "" {
			i.file = f
			i.status = http.StatusOK
			return i.finalize()
		}
		if f, sfx := i.findBySuffix(parent, base, ext); f != "" {
			i.file = f
			i.params[ParamServerSideOptions] = sfx
			i.status = http.StatusOK
			return i.finalize()
		}
	}

	i.status = http.StatusNotFound
	return nil
}

// findByExtension searches parent for files sharing the candidate's base
// name under any extension, preferring scripting extensions, then static
// extensions, then anything else.
func (i *Interpreter) findByExtension(parent, base string) string {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return ""
	}
	available := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != base {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if ext == "" {
			continue
		}
		available[strings.ToLower(ext)] = filepath.Join(parent, name)
	}
	if len(available) == 0 {
		return ""
	}
	for _, ext := range i.opts.ScriptExtensions {
		if f, ok := available[strings.ToLower(ext)]; ok {
			return f
		}
	}
	for _, ext := range i.opts.StaticExtensions {
		if f, ok := available[strings.ToLower(ext)]; ok {
			return f
		}
	}
	exts := make([]string, 0, len(available))
	for ext := range available {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return available[exts[0]]
}

// findBySuffix performs the server-side options match: a filename suffix of
// the form _xyz stands in for per-request transformation options. Both
// directions are resolved: the request may carry the suffix while the plain
// file exists on disk, or the request may be plain while only a suffixed
// file exists.
func (i *Interpreter) findBySuffix(parent, base, ext string) (string, string) {
	if ext == "" {
		return "", ""
	}

	// request carries the suffix, plain file on disk
	for idx := strings.LastIndex(base, "_"); idx > 0; idx = strings.LastIndex(base[:idx], "_") {
		plain := filepath.Join(parent, base[:idx]+"."+ext)
		if fi, err := os.Stat(plain); err == nil && !fi.IsDir() {
			return plain, base[idx:]
		}
	}

	// plain request, suffixed file on disk
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.EqualFold(strings.TrimPrefix(filepath.Ext(name), "."), ext) {
			continue
		}
		nameBase := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.HasPrefix(nameBase, base+"_") {
			return filepath.Join(parent, name), nameBase[len(base):]
		}
	}
	return "", ""
}

// finalize fixes the terminal state once a target file has been determined:
// the file's leading annotations are read, and a target that turns out not
// to exist (with no inline content to fall back on) becomes not-found.
func (i *Interpreter) finalize() error {
	if i.file != "" {
		if fi, err := os.Stat(i.file); err == nil && !fi.IsDir() {
			a, err := i.annotator.Annotations(i.file)
			if err != nil {
				log.Error("file annotation read failed", log.Pairs{
					"file": i.file, "detail": err.Error()})
			} else {
				i.annotations = a
			}
			return nil
		}
		i.file = ""
	}
	if i.file == "" && i.html == "" {
		i.status = http.StatusNotFound
	}
	return nil
}

// Site returns the site the request resolved against
func (i *Interpreter) Site() *site.Site {
	return i.site
}

// RewriteParams returns the merged rewrite parameters for the request
func (i *Interpreter) RewriteParams() map[string]string {
	return i.params
}

// File returns the resolved target file, or empty
func (i *Interpreter) File() string {
	return i.file
}

// HTML returns the route-designated inline content, or empty
func (i *Interpreter) HTML() string {
	return i.html
}

// Status returns the HTTP status recorded by resolution
func (i *Interpreter) Status() int {
	return i.status
}

// Redirect returns the redirect target, or empty
func (i *Interpreter) Redirect() string {
	return i.redirect
}

// IsDirectoryRequest reports whether resolution terminated on a directory
// listing
func (i *Interpreter) IsDirectoryRequest() bool {
	return i.dirRequest
}

// Annotations returns the resolved file's leading annotation map, or nil
func (i *Interpreter) Annotations() map[string]string {
	return i.annotations
}
