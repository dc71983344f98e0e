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

package config

import (
	"os"
	"strconv"
)

const (
	// Environment variables
	evListenPort  = "SW_LISTEN_PORT"
	evMetricsPort = "SW_METRICS_PORT"
	evLogLevel    = "SW_LOG_LEVEL"
	evStoreName   = "SW_SESSION_STORE"
)

func (c *SitewrightConfig) loadEnvVars() {
	// Frontend Port
	if x := os.Getenv(evListenPort); x != "" {
		if y, err := strconv.ParseInt(x, 10, 64); err == nil {
			c.Frontend.ListenPort = int(y)
		}
	}

	// Metrics Port
	if x := os.Getenv(evMetricsPort); x != "" {
		if y, err := strconv.ParseInt(x, 10, 64); err == nil {
			c.Metrics.ListenPort = int(y)
		}
	}

	// LogLevel
	if x := os.Getenv(evLogLevel); x != "" {
		c.Logging.LogLevel = x
	}

	// Session Store
	if x := os.Getenv(evStoreName); x != "" {
		c.Sessions.StoreName = x
	}
}
