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
	"os"

	"github.com/sitewright/sitewright/internal/session"
)

// Evaluator renders a resolved target. The file and inline arguments come
// from request resolution; params is the merged rewrite parameter set. A
// scripting engine plugs in here; the server itself only requires the
// passthrough behavior.
type Evaluator interface {
	Render(file, inline string, params map[string]string, s *session.Session) ([]byte, error)
}

// PassthroughEvaluator serves inline content verbatim, else the raw file bytes
type PassthroughEvaluator struct{}

// Render implements Evaluator
func (PassthroughEvaluator) Render(file, inline string, params map[string]string,
	s *session.Session) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	return os.ReadFile(file)
}
