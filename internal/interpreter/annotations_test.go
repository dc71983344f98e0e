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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func annotate(t *testing.T, content string) map[string]string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f.tpl")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	a, err := DefaultAnnotator.Annotations(p)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAnnotationsCommentMarkers(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"slash", "// @theme dark\nbody"},
		{"hash", "# @theme dark\nbody"},
		{"dash", "-- @theme dark\nbody"},
		{"star", "* @theme dark\nbody"},
		{"htmlcomment", "<!-- @theme dark -->\nbody"},
		{"blockopen", "/* @theme dark\nbody"},
		{"bare", "@theme dark\nbody"},
	}
	for _, tc := range tests {
		a := annotate(t, tc.content)
		if a["theme"] != "dark" {
			t.Errorf("%s: expected theme=dark got %v", tc.name, a)
		}
	}
}

func TestAnnotationsStopAtBody(t *testing.T) {
	a := annotate(t, "@first yes\nplain content line\n@second no\n")
	if a["first"] != "yes" {
		t.Fatalf("expected first annotation got %v", a)
	}
	if _, ok := a["second"]; ok {
		t.Fatal("expected scanning to stop at the first body line")
	}
}

func TestAnnotationsValuelessKey(t *testing.T) {
	a := annotate(t, "// @noCache\nbody")
	if v, ok := a["noCache"]; !ok || v != "" {
		t.Fatalf("expected valueless annotation got %v", a)
	}
}

func TestAnnotationsBlankLinesSkipped(t *testing.T) {
	a := annotate(t, "\n\n// @a 1\n\n// @b 2\nbody")
	if a["a"] != "1" || a["b"] != "2" {
		t.Fatalf("expected both annotations got %v", a)
	}
}

func TestAnnotationsScanLimit(t *testing.T) {
	var b strings.Builder
	for n := 0; n < annotationScanLimit; n++ {
		fmt.Fprintf(&b, "// filler %d\n", n)
	}
	b.WriteString("// @late yes\n")
	a := annotate(t, b.String())
	if _, ok := a["late"]; ok {
		t.Fatal("expected the scan limit to stop before the late annotation")
	}
}

func TestAnnotationsMissingFile(t *testing.T) {
	if _, err := DefaultAnnotator.Annotations(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
