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

// Package watcher ingests route rule files and keeps a site's RouteSet
// current as the files change on disk. Reloads are build-then-swap: a fresh
// RouteSet is assembled off to the side and handed to the target in a single
// assignment, so concurrent searches never observe a partially-built set.
package watcher

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/sitewright/sitewright/internal/errors"
	"github.com/sitewright/sitewright/internal/routing"
	"github.com/sitewright/sitewright/internal/util/log"
)

// Target receives the freshly built RouteSet on each successful load. The
// implementation must make the new set visible atomically.
type Target interface {
	SetRoutes(*routing.RouteSet)
}

// Watcher loads a site's rule files into a RouteSet and optionally follows
// filesystem change notifications to reload them
type Watcher struct {
	site   string
	files  []string
	target Target
}

// New returns a Watcher for the named site over the provided rule files.
// File order is significant: earlier files register their routes first, and
// the first route with a given id wins.
func New(site string, files []string, target Target) *Watcher {
	return &Watcher{site: site, files: files, target: target}
}

// Load builds a new RouteSet from all rule files and swaps it into the
// target. A file that cannot be read is skipped with a logged error and does
// not abort the other files; malformed records are skipped per record.
func (w *Watcher) Load() *routing.RouteSet {
	rs := routing.NewRouteSet(w.site)
	var nextID int
	for _, f := range w.files {
		if err := loadFile(f, rs, &nextID); err != nil {
			log.Error("route rule file load failed", log.Pairs{
				"site": w.site, "file": f, "detail": err.Error()})
		}
	}
	log.Info("route rules loaded", log.Pairs{
		"site": w.site, "files": len(w.files), "routes": rs.Len()})
	if w.target != nil {
		w.target.SetRoutes(rs)
	}
	return rs
}

// Watch follows change notifications for the rule files until ctx is done,
// rebuilding the full RouteSet when any of them is written, created, or
// renamed. Parent directories are watched so editor save-by-rename is seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := make(map[string]bool, len(w.files))
	dirs := make(map[string]bool)
	for _, f := range w.files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			log.Error("route rule directory watch failed", log.Pairs{
				"site": w.site, "dir": d, "detail": err.Error()})
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil {
				name = ev.Name
			}
			if !watched[name] {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				log.Info("route rule file changed", log.Pairs{
					"site": w.site, "file": ev.Name, "op": ev.Op.String()})
				w.Load()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error("route rule watch error", log.Pairs{"site": w.site, "detail": err.Error()})
		}
	}
}

// loadFile parses one rule file into rs. Format is chosen by extension:
// .yaml/.yml files hold one section per route; anything else is treated as
// one JSON record per line.
func loadFile(path string, rs *routing.RouteSet, nextID *int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadSectionFile(path, rs)
	default:
		return loadRecordFile(path, rs, nextID)
	}
}

// loadRecordFile parses a line-delimited JSON rule file. Blank lines and
// lines starting with '#' are skipped. Records without an id field receive a
// synthetic route_rule_NNNN id.
func loadRecordFile(path string, rs *routing.RouteSet, nextID *int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lineNo int
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Error("malformed route rule record skipped", log.Pairs{
				"file": path, "line": lineNo, "detail": err.Error()})
			continue
		}
		id, params, vargs := splitRecord(rec)
		if id == "" {
			id = syntheticID(rs, nextID)
		}
		addRoute(rs, path, id, params, vargs)
	}
	return sc.Err()
}

// loadSectionFile parses a section-oriented yaml rule file. Each top-level
// named section becomes one route, with the section name as id unless the
// section carries an explicit id key (which is then stripped).
func loadSectionFile(path string, rs *routing.RouteSet) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidRuleRecord, err.Error())
	}
	for name, raw := range doc {
		section, ok := raw.(map[string]interface{})
		if !ok {
			log.Error("malformed route rule section skipped", log.Pairs{
				"file": path, "section": name})
			continue
		}
		id, params, vargs := splitRecord(section)
		if id == "" {
			id = name
		}
		addRoute(rs, path, id, params, vargs)
	}
	return nil
}

func addRoute(rs *routing.RouteSet, path, id string, params, vargs map[string]string) {
	r := routing.NewRoute(id, params, vargs)
	if err := r.HostErr(); err != nil {
		log.Error("route host filter failed to compile", log.Pairs{
			"file": path, "id": id, "detail": err.Error()})
		return
	}
	if err := rs.Add(r); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateRouteID) {
			log.Error("duplicate route id discarded", log.Pairs{"file": path, "id": id})
			return
		}
		log.Error("route rule record rejected", log.Pairs{
			"file": path, "id": id, "detail": err.Error()})
	}
}

// splitRecord divides a parsed record into the explicit id, scalar route
// parameters, and the vargs rewrite values. Nested non-scalar values other
// than vargs are ignored.
func splitRecord(rec map[string]interface{}) (string, map[string]string, map[string]string) {
	var id string
	params := make(map[string]string)
	vargs := make(map[string]string)
	for k, v := range rec {
		if k == "id" {
			if s, ok := scalarString(v); ok {
				id = s
			}
			continue
		}
		if k == "vargs" {
			sub, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			for vk, vv := range sub {
				if s, ok := scalarString(vv); ok {
					vargs[vk] = s
				}
			}
			continue
		}
		if s, ok := scalarString(v); ok {
			params[k] = s
		}
	}
	return id, params, vargs
}

// scalarString renders a scalar leaf value as a string. Non-scalar values
// report false.
func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case int:
		return fmt.Sprintf("%d", t), true
	case int64:
		return fmt.Sprintf("%d", t), true
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprintf("%g", t), true
	case nil:
		return "", false
	default:
		return "", false
	}
}

// syntheticID produces the next route_rule_NNNN id not already taken in rs
func syntheticID(rs *routing.RouteSet, next *int) string {
	for {
		id := fmt.Sprintf("route_rule_%04d", *next)
		*next++
		if !rs.Has(id) {
			return id
		}
	}
}
