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

package interpreter

import (
	"bufio"
	"os"
	"strings"
)

// Annotator reads the leading metadata block of a resolved file and returns
// it as a key/value map (content type, required permission level, etc.)
type Annotator interface {
	Annotations(path string) (map[string]string, error)
}

// DefaultAnnotator parses @key value annotations from a file's leading
// comment lines
var DefaultAnnotator Annotator = &headerAnnotator{}

// maximum number of leading lines inspected for annotations
const annotationScanLimit = 32

var commentMarkers = []string{"//", "#", "--", "*", "<!--", "/*"}

type headerAnnotator struct{}

// Annotations scans the file's leading lines for annotations of the form
// "@key value", optionally behind a comment marker. Scanning stops at the
// first line that is neither blank, a comment, nor an annotation.
func (h *headerAnnotator) Annotations(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	var lines int
	for sc.Scan() && lines < annotationScanLimit {
		lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		stripped := stripCommentMarker(line)
		if strings.HasPrefix(stripped, "@") {
			kv := strings.SplitN(stripped[1:], " ", 2)
			key := strings.TrimSpace(kv[0])
			if key == "" {
				continue
			}
			var val string
			if len(kv) == 2 {
				val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(kv[1]), "-->"))
			}
			out[key] = val
			continue
		}
		if stripped == line {
			// not a comment line; the header block is over
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func stripCommentMarker(line string) string {
	for _, m := range commentMarkers {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(strings.TrimPrefix(line, m))
		}
	}
	return line
}
