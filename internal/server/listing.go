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

package server

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/sitewright/sitewright/internal/interpreter"
	"github.com/sitewright/sitewright/internal/util/log"
)

// renderListing writes a minimal HTML index for a directory-listing request
func (s *Server) renderListing(w http.ResponseWriter, r *http.Request,
	in *interpreter.Interpreter) int {

	entries, err := os.ReadDir(in.File())
	if err != nil {
		log.Error("directory listing read failed", log.Pairs{
			"dir": in.File(), "detail": err.Error()})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	urlPath := r.URL.Path
	if !strings.HasSuffix(urlPath, "/") {
		urlPath += "/"
	}
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>Index of %s</title></head><body>\n",
		html.EscapeString(urlPath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<ul>\n", html.EscapeString(urlPath))
	if urlPath != "/" {
		fmt.Fprintf(&b, "<li><a href=\"%s\">../</a></li>\n",
			html.EscapeString(path.Dir(strings.TrimSuffix(urlPath, "/"))))
	}
	for _, name := range names {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n",
			html.EscapeString(urlPath+name), html.EscapeString(name))
	}
	b.WriteString("</ul>\n</body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
	return http.StatusOK
}
