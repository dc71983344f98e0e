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

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusError(t *testing.T) {
	se := NewStatusError(http.StatusForbidden, "nope")
	if se.Error() != "403 nope" {
		t.Fatalf("unexpected error string %q", se.Error())
	}

	got, ok := AsStatusError(se)
	if !ok || got.Status != http.StatusForbidden {
		t.Fatal("expected the StatusError back")
	}

	// a wrapped StatusError still unwraps
	wrapped := fmt.Errorf("request failed: %w", se)
	got, ok = AsStatusError(wrapped)
	if !ok || got != se {
		t.Fatal("expected the wrapped StatusError to unwrap")
	}

	if _, ok := AsStatusError(errors.New("plain")); ok {
		t.Fatal("expected a plain error not to be a StatusError")
	}
}

func TestErrListingDisallowed(t *testing.T) {
	if ErrListingDisallowed.Status != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", ErrListingDisallowed.Status)
	}
}
