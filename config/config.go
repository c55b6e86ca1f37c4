// Package config loads the TOML application config and implements the
// admission checks for origins, widths and URLs.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultMaxAge is the Cache-Control max-age applied when an origin
// doesn't set one.
const DefaultMaxAge = 31536000

// Cache holds per-origin caching directives.
type Cache struct {
	MaxAge uint32 `toml:"max_age"`
}

// Origin is a named, allow-listed upstream content source. The
// endpoint is a scheme+host(+path) prefix that object names are
// appended to.
type Origin struct {
	Name     string `toml:"name"`
	Endpoint string `toml:"endpoint"`
	Cache    Cache  `toml:"cache"`
}

// Cloudfront holds the distribution used for cache invalidations.
type Cloudfront struct {
	DistributionID string `toml:"distribution_id"`
}

// Twitter holds settings for the profile lookup endpoint.
type Twitter struct {
	Cache Cache `toml:"cache"`
}

// AppConfig is the full application configuration. It is loaded once
// at startup and never mutated afterwards.
type AppConfig struct {
	Port             int         `toml:"port"`
	Workers          int         `toml:"workers"`
	LogLevel         string      `toml:"log_level"`
	ReqTimeout       int         `toml:"req_timeout"` // seconds
	MaxRetries       int         `toml:"max_retries"`
	MaxBodySizeBytes int64       `toml:"max_body_size_bytes"`
	UserAgent        string      `toml:"user_agent"`
	TPSLimit         float64     `toml:"tps_limit"`       // upstream transactions per second, 0 = unlimited
	TPSLimitBurst    int         `toml:"tps_limit_burst"` // burst size for tps_limit
	HealthEndpoint   string      `toml:"health_endpoint"`
	StoragePath      string      `toml:"storage_path"`
	KVStoreURI       string      `toml:"kvstore_uri"`
	AllowAnyOrigin   bool        `toml:"allow_any_origin"`
	Twitter          *Twitter    `toml:"twitter"`
	Cloudfront       *Cloudfront `toml:"cloudfront"`
	Origins          []Origin    `toml:"origins"`
	ObjDenyList      []string    `toml:"obj_deny_list"`
	URLDenyList      []string    `toml:"url_deny_list"`
	AllowedSizes     []uint32    `toml:"allowed_sizes"`
}

// Default returns the built-in configuration used when no config file
// can be read.
func Default() *AppConfig {
	return &AppConfig{
		Port:             3030,
		Workers:          8,
		LogLevel:         "debug",
		ReqTimeout:       15,
		MaxRetries:       5,
		MaxBodySizeBytes: 60000000,
		UserAgent:        "imgopt/" + Version,
		HealthEndpoint:   "/health",
		StoragePath:      "storage",
		KVStoreURI:       "http://127.0.0.1:5050",
		AllowAnyOrigin:   true,
		Origins: []Origin{{
			Name:     "ipfs",
			Endpoint: "https://ipfs.io/ipfs",
			Cache:    Cache{MaxAge: DefaultMaxAge},
		}},
	}
}

// Load reads the TOML file at path. A missing or malformed file is not
// fatal: the built-in defaults are used instead so the service always
// comes up.
func Load(path string) *AppConfig {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "==========================")
		fmt.Fprintf(os.Stderr, "ERROR || %v\n", err)
		fmt.Fprintln(os.Stderr, "Loading default config because of above error")
		fmt.Fprintln(os.Stderr, "All fields are required in order to read from config file.")
		fmt.Fprintln(os.Stderr, "==========================")
		return Default()
	}
	return cfg
}

// ValidateOrigin looks up an origin by exact name. Config order is
// preserved so the first match wins.
func (c *AppConfig) ValidateOrigin(name string) (Origin, bool) {
	for _, o := range c.Origins {
		if o.Name == name {
			return o, true
		}
	}
	return Origin{}, false
}

// ValidateScale checks a requested width against allowed_sizes. An
// absent width means "serve the base" and is always accepted. When
// allowed_sizes is empty any width is accepted.
func (c *AppConfig) ValidateScale(width *uint32) (uint32, bool) {
	if len(c.AllowedSizes) == 0 || width == nil {
		if width == nil {
			return 0, true
		}
		return *width, true
	}
	for _, s := range c.AllowedSizes {
		if s == *width {
			return s, true
		}
	}
	return 0, false
}

// ValidateURL returns the first deny-list entry contained in url, if
// any. Matching is substring based.
func (c *AppConfig) ValidateURL(url string) (string, bool) {
	for _, d := range c.URLDenyList {
		if d != "" && strings.Contains(url, d) {
			return d, true
		}
	}
	return "", false
}
