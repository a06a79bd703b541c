package model

import "time"

// Config is the complete runtime configuration. Every field carries matching
// yaml and mapstructure tags so the same struct is rendered by `config show`
// and decoded by viper.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Tiers      TierConfig       `yaml:"tiers" mapstructure:"tiers"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Geography  GeographyConfig  `yaml:"geography" mapstructure:"geography"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// AuthConfig controls key validation and quota enforcement
type AuthConfig struct {
	// Enabled=false bypasses key checks and quotas entirely (local testing)
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	PoolSize    int           `yaml:"pool_size" mapstructure:"pool_size"`
	QuotaLimit  int           `yaml:"quota_limit" mapstructure:"quota_limit"`
	QuotaWindow time.Duration `yaml:"quota_window" mapstructure:"quota_window"`
	AdminToken  string        `yaml:"admin_token" mapstructure:"admin_token"`
	Store       string        `yaml:"store" mapstructure:"store"` // memory, postgres
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
}

type SearchConfig struct {
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"` // per tier batch
	Depth             string        `yaml:"depth" mapstructure:"depth"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

type RetrievalConfig struct {
	MaxResults         int     `yaml:"max_results" mapstructure:"max_results"`
	MinResults         int     `yaml:"min_results" mapstructure:"min_results"`
	PerTierCap         int     `yaml:"per_tier_cap" mapstructure:"per_tier_cap"`
	BatchSize          int     `yaml:"batch_size" mapstructure:"batch_size"`
	SocialMediaCap     int     `yaml:"social_media_cap" mapstructure:"social_media_cap"`
	RelevanceThreshold float64 `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
	RelaxedThreshold   float64 `yaml:"relaxed_threshold" mapstructure:"relaxed_threshold"`
	DomesticTLD        string  `yaml:"domestic_tld" mapstructure:"domestic_tld"`
	DomesticLanguage   string  `yaml:"domestic_language" mapstructure:"domestic_language"`
	ForeignLanguage    string  `yaml:"foreign_language" mapstructure:"foreign_language"`
}

// TierConfig holds the ordered tier lists per geography and the social-media deny-list
type TierConfig struct {
	Domestic      []SourceTier `yaml:"domestic" mapstructure:"domestic"`
	International []SourceTier `yaml:"international" mapstructure:"international"`
	SocialMedia   []string     `yaml:"social_media" mapstructure:"social_media"`
}

// StageConfig names the provider for one cascade stage
type StageConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Attempts int    `yaml:"attempts" mapstructure:"attempts"`
}

type BackoffConfig struct {
	Base       time.Duration `yaml:"base" mapstructure:"base"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
}

// LLMConfig configures one generation provider
type LLMConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

type GenerationConfig struct {
	Stages       []StageConfig `yaml:"stages" mapstructure:"stages"`
	Backoff      BackoffConfig `yaml:"backoff" mapstructure:"backoff"`
	ExcerptChars int           `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`

	OpenAI    LLMConfig `yaml:"openai" mapstructure:"openai"`
	Anthropic LLMConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    LLMConfig `yaml:"ollama" mapstructure:"ollama"`
	Gemini    LLMConfig `yaml:"gemini" mapstructure:"gemini"`
}

type GeographyConfig struct {
	Mode     string        `yaml:"mode" mapstructure:"mode"` // http, llm, off
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Provider string        `yaml:"provider" mapstructure:"provider"` // provider for llm mode
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 3 * time.Minute,
		},
		Auth: AuthConfig{
			Enabled:     true,
			PoolSize:    100,
			QuotaLimit:  100,
			QuotaWindow: time.Hour,
			Store:       "memory",
		},
		Search: SearchConfig{
			Endpoint:          "https://api.tavily.com/search",
			Timeout:           15 * time.Second,
			Depth:             "basic",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Retrieval: RetrievalConfig{
			MaxResults:         10,
			MinResults:         3,
			PerTierCap:         10,
			BatchSize:          5,
			SocialMediaCap:     10,
			RelevanceThreshold: 0.15,
			RelaxedThreshold:   0.10,
			DomesticTLD:        "kr",
			DomesticLanguage:   "ko",
			ForeignLanguage:    "en",
		},
		Tiers: DefaultTierConfig(),
		Generation: GenerationConfig{
			Stages: []StageConfig{
				{Provider: "openai", Attempts: 3},
				{Provider: "anthropic", Attempts: 1},
				{Provider: "ollama", Attempts: 1},
			},
			Backoff: BackoffConfig{
				Base:       6 * time.Second,
				Multiplier: 2,
				Max:        30 * time.Second,
			},
			ExcerptChars: 600,
			OpenAI:       LLMConfig{Model: "gpt-4o-mini", Timeout: 60, MaxTokens: 2000, Temperature: 0.2},
			Anthropic:    LLMConfig{Model: "claude-3-5-haiku-20241022", Timeout: 60, MaxTokens: 2000, Temperature: 0.2},
			Ollama:       LLMConfig{Model: "llama3.1:8b", BaseURL: "http://localhost:11434", Timeout: 120, MaxTokens: 3000, Temperature: 0.3},
			Gemini:       LLMConfig{Model: "gemini-1.5-flash", Timeout: 60, MaxTokens: 2000, Temperature: 0.2},
		},
		Geography: GeographyConfig{
			Mode:     "llm",
			Timeout:  10 * time.Second,
			Provider: "openai",
			CacheTTL: time.Hour,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
	}
}
