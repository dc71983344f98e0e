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

const (
	defaultLogFile  = ""
	defaultLogLevel = "INFO"

	defaultPingHandlerPath = "/ping"

	defaultFrontendListenPort = 8480
	defaultMetricsListenPort  = 8481

	defaultReadTimeoutSecs  = 30
	defaultWriteTimeoutSecs = 30

	defaultInternalPrefix = "/.sw/"

	defaultSessionStoreName  = "default"
	defaultSessionStoreType  = "memory"
	defaultSessionCookieName = "swsession"

	defaultSessionTimeoutSecs          = 3600
	defaultSessionAuthTimeoutSecs      = 86400
	defaultSessionRememberTimeoutSecs  = 604800
	defaultSessionTimeoutIncrementSecs = 300
	defaultSessionMaxPerIP             = 6

	defaultSweepIntervalMS = 60000
)

func defaultIndexNames() []string {
	return []string{"index.tpl", "index.html", "index.htm"}
}

func defaultScriptExtensions() []string {
	return []string{"tpl", "swx"}
}

func defaultStaticExtensions() []string {
	return []string{"html", "htm", "txt", "json", "css", "js", "jpg", "jpeg", "png", "gif", "svg"}
}
