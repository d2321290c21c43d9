package config

import (
	"fmt"
	"strings"
	"time"

	"contact-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}

	// RequestTimeout
	if c.RequestTimeout < 0 {
		warnings = append(warnings, "request_timeout cannot be negative, defaulting to 30s")
		c.RequestTimeout = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		if c.NumWorkers < 0 {
			warnings = append(warnings, "num_workers should be > 0, defaulting to 1")
		}
		c.NumWorkers = 1
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost < 0 {
		warnings = append(warnings, "max_requests_per_host cannot be negative, defaulting to 2")
	}
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 2
	}

	// ProgressInterval
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 10
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to '.'")
		c.OutputDir = "."
	}

	// StateDir
	if c.StateDir == "" {
		if c.EnableState {
			warnings = append(warnings, "state_dir is empty, defaulting to './scraper_state'")
		}
		c.StateDir = "./scraper_state"
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	// Search settings
	searchWarnings, err := c.Search.Validate()
	warnings = append(warnings, searchWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
// The client timeout follows request_timeout unless set explicitly.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = c.RequestTimeout
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SearchConfig fields and applies defaults.
// An endpoint without a %s query placeholder is a fatal error.
func (c *SearchConfig) Validate() (warnings []string, err error) {
	if c.Endpoint == "" {
		c.Endpoint = DefaultSearchEndpoint
	} else if strings.Count(c.Endpoint, "%s") != 1 {
		return nil, fmt.Errorf("%w: search.endpoint must contain exactly one %%s placeholder", utils.ErrConfigValidation)
	}

	if strings.TrimSpace(c.ResultSelector) == "" {
		c.ResultSelector = DefaultSearchResultSelector
	}

	if c.Limit < 0 {
		warnings = append(warnings, fmt.Sprintf("search.limit cannot be negative, defaulting to %d", DefaultSearchLimit))
		c.Limit = DefaultSearchLimit
	}
	if c.Limit == 0 {
		c.Limit = DefaultSearchLimit
	}

	return warnings, nil
}
