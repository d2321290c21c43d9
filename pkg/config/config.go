package config

import "time"

// DefaultUserAgent is a descriptive browser-like identifier; some sites refuse bare Go clients
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 contact-scraper/1.0"

// Default search endpoint and selector (DuckDuckGo HTML results page)
const (
	DefaultSearchEndpoint       = "https://html.duckduckgo.com/html/?q=%s"
	DefaultSearchResultSelector = "a.result__a"
	DefaultSearchLimit          = 20
)

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent          string           `yaml:"user_agent"`
	RequestTimeout     time.Duration    `yaml:"request_timeout"`
	MaxPageSizeBytes   int64            `yaml:"max_page_size_bytes,omitempty"`
	NumWorkers         int              `yaml:"num_workers"`
	MaxRequestsPerHost int              `yaml:"max_requests_per_host,omitempty"` // In-flight fetches per host across workers
	ProgressInterval   int              `yaml:"progress_interval,omitempty"`
	ValidateResults    bool             `yaml:"validate_results"`
	RespectRobots      bool             `yaml:"respect_robots,omitempty"`
	OutputDir          string           `yaml:"output_dir"`
	DatePrefixOutputs  *bool            `yaml:"date_prefix_outputs,omitempty"` // nil = default (true)
	StateDir           string           `yaml:"state_dir"`
	EnableState        bool             `yaml:"enable_state,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Search             SearchConfig     `yaml:"search,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// SearchConfig configures the search-query seed source
type SearchConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty"`        // URL template, %s receives the escaped query
	ResultSelector string `yaml:"result_selector,omitempty"` // CSS selector for result anchors
	Limit          int    `yaml:"limit,omitempty"`           // Max seed URLs taken from results
}

// GetEffectiveDatePrefix reports whether output filenames carry the YYYY_MM_DD prefix
func GetEffectiveDatePrefix(appCfg AppConfig) bool {
	if appCfg.DatePrefixOutputs != nil {
		return *appCfg.DatePrefixOutputs
	}
	return true
}

// GetEffectiveSearchLimit returns the search limit, preferring a positive override
func GetEffectiveSearchLimit(override int, appCfg AppConfig) int {
	if override > 0 {
		return override
	}
	if appCfg.Search.Limit > 0 {
		return appCfg.Search.Limit
	}
	return DefaultSearchLimit
}

// Default returns an AppConfig with every default applied
func Default() *AppConfig {
	cfg := &AppConfig{}
	_, _ = cfg.Validate()
	return cfg
}
