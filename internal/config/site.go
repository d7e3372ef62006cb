package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default site configuration file name.
const DefaultConfigFile = ".webscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// SiteConfig holds site-specific configuration for a single host.
// This allows scanning authenticated pages and tuning the crawl per site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to set before rendering this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	// If zero, the global CrawlMaxDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .webscan configuration file.
type File struct {
	// Sites maps host names to their site-specific configurations.
	// Keys are bare hosts without a scheme (e.g., "app.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .webscan in the current directory
//  3. Look for .webscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if
// not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
