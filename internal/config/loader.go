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
	"fmt"
)

// Load returns the Application Configuration, starting with a default config,
// then overriding with any provided config file, then env vars, and finally flags
func Load(applicationName string, applicationVersion string, arguments []string) error {

	ApplicationName = applicationName
	ApplicationVersion = applicationVersion
	LoaderWarnings = make([]string, 0)

	c := NewConfig()
	c.parseFlags(applicationName, arguments) // Parse here to get config file path and version flags
	if Flags.PrintVersion {
		return nil
	}
	if err := c.loadFile(); err != nil {
		if Flags.customPath {
			// a user-provided path couldn't be loaded. return the error for the application to handle
			return err
		}
		LoaderWarnings = append(LoaderWarnings,
			fmt.Sprintf("no config file found at %s, using defaults", Flags.ConfigPath))
	}

	c.loadEnvVars()
	c.loadFlags() // load parsed flags to override file and envs

	if err := c.validate(); err != nil {
		return err
	}

	Config = c
	c.copyPointers()
	return nil
}

// validate performs sanity checks that cannot be expressed by defaults alone
func (c *SitewrightConfig) validate() error {
	if c.Sessions.StoreName != "" {
		if _, ok := c.Stores[c.Sessions.StoreName]; !ok {
			return fmt.Errorf("session store [%s] is not configured", c.Sessions.StoreName)
		}
	}
	var defaults int
	for k, s := range c.Sites {
		if s == nil {
			return fmt.Errorf("site [%s] has an empty configuration", k)
		}
		if s.IsDefault {
			defaults++
		}
		if s.RedirectCode != 0 && (s.RedirectCode < 300 || s.RedirectCode > 399) {
			return fmt.Errorf("site [%s] redirect_code [%d] is not a redirect status", k, s.RedirectCode)
		}
	}
	if defaults > 1 {
		return fmt.Errorf("multiple sites are marked is_default")
	}
	return nil
}
