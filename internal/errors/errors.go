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
)

// ErrDuplicateRouteID is an error for when a route id is already present in a route set
var ErrDuplicateRouteID = errors.New("duplicate route id")

// ErrInvalidRuleRecord is an error for when a rule file record cannot be parsed
var ErrInvalidRuleRecord = errors.New("invalid rule record")

// ErrStoreNotFound is an error for when a named session store is not configured
var ErrStoreNotFound = errors.New("session store not found")

// ErrNoDefaultSite is an error for when the site map has no default site
var ErrNoDefaultSite = errors.New("no default site configured")

// ErrInvalidHostPattern is an error for when a site host filter fails to compile
var ErrInvalidHostPattern = errors.New("invalid host pattern")

// StatusError is an error that carries the HTTP status code the condition
// should be answered with. It is used for policy violations that terminate
// request resolution, such as a directory listing request against a site
// that disallows listings.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// NewStatusError returns a StatusError for the provided code and message
func NewStatusError(status int, message string) *StatusError {
	return &StatusError{Status: status, Message: message}
}

// ErrListingDisallowed is raised when a directory is requested of a site with listings disabled
var ErrListingDisallowed = NewStatusError(http.StatusForbidden, "directory listing disallowed")

// AsStatusError unwraps err to a StatusError if it is one
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
