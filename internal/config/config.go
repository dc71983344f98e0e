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

// Package config provides Sitewright configuration abilities, including
// parsing configuration files, command line parameters, and environment
// variables, as well as default values and state.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the Running Configuration for Sitewright
var Config *SitewrightConfig

// Main is the Main subsection of the Running Configuration
var Main *MainConfig

// Frontend is the HTTP Server subsection of the Running Configuration
var Frontend *FrontendConfig

// Logging is the Logging subsection of the Running Configuration
var Logging *LoggingConfig

// Metrics is the Metrics subsection of the Running Configuration
var Metrics *MetricsConfig

// Sessions is the Session Engine subsection of the Running Configuration
var Sessions *SessionsConfig

// Stores is the Session Store Map subsection of the Running Configuration
var Stores map[string]*StoreConfig

// Sites is the Site Map subsection of the Running Configuration
var Sites map[string]*SiteConfig

// Flags is a collection of command line flags that Sitewright loads
var Flags = SitewrightFlags{}

// ApplicationName is the name of the Application
var ApplicationName string

// ApplicationVersion holds the version of the Application
var ApplicationVersion string

// LoaderWarnings holds warnings generated during config load (before the
// logger is initialized), so they can be logged at the end of the loading process
var LoaderWarnings = make([]string, 0)

// SitewrightConfig is the main configuration object
type SitewrightConfig struct {
	// Main is the primary MainConfig section
	Main *MainConfig `yaml:"main"`
	// Frontend provides configurations about the HTTP Front End
	Frontend *FrontendConfig `yaml:"frontend"`
	// Logging provides configurations that affect logging behavior
	Logging *LoggingConfig `yaml:"logging"`
	// Metrics provides configurations for collecting Metrics about the application
	Metrics *MetricsConfig `yaml:"metrics"`
	// Sessions provides configurations for the session engine
	Sessions *SessionsConfig `yaml:"sessions"`
	// Stores is a map of StoreConfigs
	Stores map[string]*StoreConfig `yaml:"session_stores"`
	// Sites is a map of SiteConfigs
	Sites map[string]*SiteConfig `yaml:"sites"`
}

// MainConfig is a collection of general configuration values
type MainConfig struct {
	// InstanceID represents a unique ID for the current instance, when multiple instances on the same host
	InstanceID int `yaml:"instance_id"`
	// PingHandlerPath provides the path to register the Ping Handler for checking that Sitewright is running
	PingHandlerPath string `yaml:"ping_handler_path"`
}

// FrontendConfig is a collection of configurations for the HTTP Front End
type FrontendConfig struct {
	// ListenAddress is IP address for the HTTP listener
	ListenAddress string `yaml:"listen_address"`
	// ListenPort is the TCP Port for the HTTP listener
	ListenPort int `yaml:"listen_port"`
	// ReadTimeoutSecs defines how long the server waits to read an inbound request
	ReadTimeoutSecs int64 `yaml:"read_timeout_secs"`
	// WriteTimeoutSecs defines how long the server may take to write a response
	WriteTimeoutSecs int64 `yaml:"write_timeout_secs"`
	// InternalPrefix is the reserved URI prefix that reroutes to the default site
	InternalPrefix string `yaml:"internal_prefix"`
	// IndexNames is the ordered list of index file names used for directory requests
	IndexNames []string `yaml:"index_names"`
	// ScriptExtensions is the ordered list of scripting file extensions,
	// preferred over static extensions during fallback resolution
	ScriptExtensions []string `yaml:"script_extensions"`
	// StaticExtensions is the ordered list of static file extensions used
	// during fallback resolution
	StaticExtensions []string `yaml:"static_extensions"`
}

// LoggingConfig is a collection of Logging configurations
type LoggingConfig struct {
	// LogFile provides the filepath to the instance's logfile. Set as empty string to Log to Console
	LogFile string `yaml:"log_file"`
	// LogLevel provides the most granular level (e.g., DEBUG, INFO, ERROR) to log
	LogLevel string `yaml:"log_level"`
}

// MetricsConfig is a collection of Metrics Collection configurations
type MetricsConfig struct {
	// ListenAddress is IP address from which the Application Metrics are available for pulling at /metrics
	ListenAddress string `yaml:"listen_address"`
	// ListenPort is TCP Port from which the Application Metrics are available for pulling at /metrics
	ListenPort int `yaml:"listen_port"`
}

// SessionsConfig is a collection of configurations for the session engine
type SessionsConfig struct {
	// StoreName provides the name of the configured store where session records are persisted
	StoreName string `yaml:"store_name"`
	// CookieName is the name of the session cookie issued to clients
	CookieName string `yaml:"cookie_name"`
	// TimeoutSecs is the base lifetime extension applied on each request
	TimeoutSecs int64 `yaml:"timeout_secs"`
	// AuthTimeoutSecs is the base lifetime extension for sessions with an authenticated principal
	AuthTimeoutSecs int64 `yaml:"auth_timeout_secs"`
	// RememberTimeoutSecs is the base lifetime extension when the principal set remember-me
	RememberTimeoutSecs int64 `yaml:"remember_timeout_secs"`
	// TimeoutIncrementSecs is the per-request bonus, capped at six increments
	TimeoutIncrementSecs int64 `yaml:"timeout_increment_secs"`
	// MaxPerIP caps the number of live sessions sharing one remote address
	MaxPerIP int `yaml:"max_per_ip"`
	// ReuseVacant permits an anonymous session from the same address to be
	// reused when a request carries no matching session cookie
	ReuseVacant bool `yaml:"reuse_vacant"`
	// SweepIntervalMS is the period of the timeout eviction sweep
	SweepIntervalMS int64 `yaml:"sweep_interval_ms"`
}

// StoreConfig is a collection of configurations for a session record store
type StoreConfig struct {
	// Name is the store name, populated from the map key
	Name string `yaml:"-"`
	// StoreType represents the type of store (e.g. memory, bbolt, badger, redis)
	StoreType string `yaml:"store_type"`
	// BBolt provides the BBolt store configuration when StoreType is bbolt
	BBolt BBoltStoreConfig `yaml:"bbolt"`
	// Badger provides the Badger store configuration when StoreType is badger
	Badger BadgerStoreConfig `yaml:"badger"`
	// Redis provides the Redis store configuration when StoreType is redis
	Redis RedisStoreConfig `yaml:"redis"`
}

// BBoltStoreConfig is a collection of BBolt store configurations
type BBoltStoreConfig struct {
	// Filename represents the filename (including path) of the BBolt database
	Filename string `yaml:"filename"`
	// Bucket represents the name of the bucket within bbolt under which session records are stored
	Bucket string `yaml:"bucket"`
}

// BadgerStoreConfig is a collection of Badger store configurations
type BadgerStoreConfig struct {
	// Directory represents the path on disk where the Badger database resides
	Directory string `yaml:"directory"`
	// ValueDirectory represents the path on disk where the Badger value log resides
	ValueDirectory string `yaml:"value_directory"`
}

// RedisStoreConfig is a collection of Redis store configurations
type RedisStoreConfig struct {
	// Protocol represents the connection method (e.g. tcp, unix)
	Protocol string `yaml:"protocol"`
	// Endpoint represents the host:port of the Redis endpoint
	Endpoint string `yaml:"endpoint"`
	// Password can be set when the Redis endpoint requires authentication
	Password string `yaml:"password"`
	// KeyPrefix is prepended to session ids to form record keys
	KeyPrefix string `yaml:"key_prefix"`
}

// SiteConfig is a collection of configurations for one hosted site
type SiteConfig struct {
	// Hosts is the list of regular expressions matched against the request host
	Hosts []string `yaml:"hosts"`
	// IsDefault indicates if this is the default site for any request not matching a configured host
	IsDefault bool `yaml:"is_default"`
	// Docroot is the site's document root directory
	Docroot string `yaml:"docroot"`
	// RedirectTo, when set, statically redirects every request for this site
	RedirectTo string `yaml:"redirect_to"`
	// RedirectCode is the HTTP status used with RedirectTo
	RedirectCode int `yaml:"redirect_code"`
	// DirectoryListing permits rendering a listing for directory requests with no index file
	DirectoryListing bool `yaml:"directory_listing"`
	// RuleFiles is the list of route rule files loaded and watched for this site
	RuleFiles []string `yaml:"rule_files"`
}

// NewConfig returns a Config with defaults set
func NewConfig() *SitewrightConfig {
	return &SitewrightConfig{
		Main: &MainConfig{
			PingHandlerPath: defaultPingHandlerPath,
		},
		Frontend: &FrontendConfig{
			ListenPort:       defaultFrontendListenPort,
			ReadTimeoutSecs:  defaultReadTimeoutSecs,
			WriteTimeoutSecs: defaultWriteTimeoutSecs,
			InternalPrefix:   defaultInternalPrefix,
			IndexNames:       defaultIndexNames(),
			ScriptExtensions: defaultScriptExtensions(),
			StaticExtensions: defaultStaticExtensions(),
		},
		Logging: &LoggingConfig{
			LogFile:  defaultLogFile,
			LogLevel: defaultLogLevel,
		},
		Metrics: &MetricsConfig{
			ListenPort: defaultMetricsListenPort,
		},
		Sessions: &SessionsConfig{
			StoreName:            defaultSessionStoreName,
			CookieName:           defaultSessionCookieName,
			TimeoutSecs:          defaultSessionTimeoutSecs,
			AuthTimeoutSecs:      defaultSessionAuthTimeoutSecs,
			RememberTimeoutSecs:  defaultSessionRememberTimeoutSecs,
			TimeoutIncrementSecs: defaultSessionTimeoutIncrementSecs,
			MaxPerIP:             defaultSessionMaxPerIP,
			ReuseVacant:          true,
			SweepIntervalMS:      defaultSweepIntervalMS,
		},
		Stores: map[string]*StoreConfig{defaultSessionStoreName: {
			Name:      defaultSessionStoreName,
			StoreType: defaultSessionStoreType,
		}},
		Sites: make(map[string]*SiteConfig),
	}
}

func (c *SitewrightConfig) loadFile() error {
	b, err := os.ReadFile(Flags.ConfigPath)
	if err != nil {
		return err
	}
	return c.loadYAML(b)
}

func (c *SitewrightConfig) loadYAML(b []byte) error {
	if err := yaml.Unmarshal(b, c); err != nil {
		return err
	}
	for k, v := range c.Stores {
		if v == nil {
			v = &StoreConfig{}
			c.Stores[k] = v
		}
		v.Name = k
		if v.StoreType == "" {
			v.StoreType = defaultSessionStoreType
		}
	}
	return nil
}

// copyPointers sets the package-level section pointers from the running config
func (c *SitewrightConfig) copyPointers() {
	Main = c.Main
	Frontend = c.Frontend
	Logging = c.Logging
	Metrics = c.Metrics
	Sessions = c.Sessions
	Stores = c.Stores
	Sites = c.Sites
}
