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
	"flag"
)

const (
	// Command-line flags
	cfConfig      = "config"
	cfVersion     = "version"
	cfLogLevel    = "log-level"
	cfInstanceID  = "instance-id"
	cfListenPort  = "listen-port"
	cfMetricsPort = "metrics-port"

	// DefaultConfigPath defines the default location of the Sitewright config file
	DefaultConfigPath = "/etc/sitewright/sitewright.yaml"
)

// SitewrightFlags holds the values for whitelisted flags
type SitewrightFlags struct {
	PrintVersion      bool
	ConfigPath        string
	customPath        bool
	ListenPort        int
	MetricsListenPort int
	LogLevel          string
	InstanceID        int
}

// parseFlags parses the provided command line arguments into Flags
func (c *SitewrightConfig) parseFlags(applicationName string, arguments []string) {

	Flags = SitewrightFlags{}

	f := flag.NewFlagSet(applicationName, flag.ExitOnError)
	f.BoolVar(&Flags.PrintVersion, cfVersion, false, "Prints the sitewright version")
	f.StringVar(&Flags.ConfigPath, cfConfig, "", "Path to the Sitewright Config File")
	f.StringVar(&Flags.LogLevel, cfLogLevel, "", "Level of Logging to use (debug, info, warn, error)")
	f.IntVar(&Flags.InstanceID, cfInstanceID, 0,
		"Instance ID is for running multiple Sitewright processes from the same config while logging to their own files")
	f.IntVar(&Flags.ListenPort, cfListenPort, 0, "Port that the HTTP front end will listen on")
	f.IntVar(&Flags.MetricsListenPort, cfMetricsPort, 0, "Port that the /metrics endpoint will listen on")
	f.Parse(arguments)

	if Flags.ConfigPath != "" {
		Flags.customPath = true
	} else {
		Flags.ConfigPath = DefaultConfigPath
	}
}

// loadFlags applies parsed flags over the file and env configuration
func (c *SitewrightConfig) loadFlags() {
	if Flags.ListenPort > 0 {
		c.Frontend.ListenPort = Flags.ListenPort
	}
	if Flags.MetricsListenPort > 0 {
		c.Metrics.ListenPort = Flags.MetricsListenPort
	}
	if Flags.LogLevel != "" {
		c.Logging.LogLevel = Flags.LogLevel
	}
	if Flags.InstanceID > 0 {
		c.Main.InstanceID = Flags.InstanceID
	}
}
