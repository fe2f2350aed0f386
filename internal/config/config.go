package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full repovet configuration tree.
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Scoring     ScoringConfig     `mapstructure:"scoring" yaml:"scoring"`
	Agents      AgentsConfig      `mapstructure:"agents" yaml:"agents"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
}

// HTTPConfig controls the GitHub REST client.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ArchiveTimeout    time.Duration `mapstructure:"archive_timeout" yaml:"archive_timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Retries           int           `mapstructure:"retries" yaml:"retries"`
	Backoff           time.Duration `mapstructure:"backoff" yaml:"backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
}

// CacheConfig controls the layered archive cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
}

// LLMConfig configures the reasoning and embedding oracles.
type LLMConfig struct {
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	ChatModel  string        `mapstructure:"chat_model" yaml:"chat_model"`
	EmbedModel string        `mapstructure:"embed_model" yaml:"embed_model"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries    int           `mapstructure:"retries" yaml:"retries"`
	Backoff    time.Duration `mapstructure:"backoff" yaml:"backoff"`
	EmbedBatch int           `mapstructure:"embed_batch" yaml:"embed_batch"`
	EmbedCap   int           `mapstructure:"embed_cap" yaml:"embed_cap"` // bytes of text embedded per chunk
}

// ConcurrencyConfig bounds parallel work inside one run.
type ConcurrencyConfig struct {
	JudgeWorkers int `mapstructure:"judge_workers" yaml:"judge_workers"`
}

// ScoringConfig holds the tunable scoring constants. The defaults reproduce
// long-standing behavior but carry no deeper derivation; treat them as knobs.
type ScoringConfig struct {
	PenalizeForks   bool    `mapstructure:"penalize_forks" yaml:"penalize_forks"`
	ForkPenalty     float64 `mapstructure:"fork_penalty" yaml:"fork_penalty"`
	GapOneSeverity  float64 `mapstructure:"gap_one_severity" yaml:"gap_one_severity"`
	GapTwoSeverity  float64 `mapstructure:"gap_two_severity" yaml:"gap_two_severity"`
	MinClaimWeight  float64 `mapstructure:"min_claim_weight" yaml:"min_claim_weight"`
	DeepScanWeight  float64 `mapstructure:"deep_scan_weight" yaml:"deep_scan_weight"`
	ReferencedBoost float64 `mapstructure:"referenced_boost" yaml:"referenced_boost"`
}

// AgentConfig bounds one analysis agent's resource use.
type AgentConfig struct {
	MaxReposTotal   int `mapstructure:"max_repos_total" yaml:"max_repos_total"`
	MaxReposDeep    int `mapstructure:"max_repos_deep" yaml:"max_repos_deep"`
	TopSnippets     int `mapstructure:"top_snippets" yaml:"top_snippets"`
	MaxFiles        int `mapstructure:"max_files" yaml:"max_files"`
	MaxFileBytes    int `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	MaxArchiveBytes int `mapstructure:"max_archive_bytes" yaml:"max_archive_bytes"`
	MaxTotalChunks  int `mapstructure:"max_total_chunks" yaml:"max_total_chunks"`
	ChunkMaxLines   int `mapstructure:"chunk_max_lines" yaml:"chunk_max_lines"`
	ChunkOverlap    int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	SnippetCap      int `mapstructure:"snippet_cap" yaml:"snippet_cap"` // bytes shown to the oracle per snippet
	MaxSkills       int `mapstructure:"max_skills" yaml:"max_skills"`
}

// AgentsConfig holds the per-agent budget variants.
type AgentsConfig struct {
	Authenticity AgentConfig `mapstructure:"authenticity" yaml:"authenticity"`
	Inflation    AgentConfig `mapstructure:"inflation" yaml:"inflation"`
	SkillMap     AgentConfig `mapstructure:"skillmap" yaml:"skillmap"`
	Interview    AgentConfig `mapstructure:"interview" yaml:"interview"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := AgentConfig{
		MaxReposTotal:   200,
		MaxReposDeep:    15,
		TopSnippets:     10,
		MaxFiles:        140,
		MaxFileBytes:    900_000,
		MaxArchiveBytes: 6_000_000,
		MaxTotalChunks:  6500,
		ChunkMaxLines:   140,
		ChunkOverlap:    25,
		SnippetCap:      1800,
	}

	inflation := base
	inflation.MaxReposDeep = 18
	inflation.TopSnippets = 12
	inflation.MaxTotalChunks = 7000

	skillmap := base
	skillmap.MaxReposDeep = 20
	skillmap.TopSnippets = 15
	skillmap.MaxFiles = 120
	skillmap.MaxTotalChunks = 5000
	skillmap.ChunkMaxLines = 120
	skillmap.ChunkOverlap = 20

	interview := base
	interview.MaxFiles = 160
	interview.MaxTotalChunks = 7000
	interview.SnippetCap = 1600
	interview.MaxSkills = 25

	return &Config{
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			ArchiveTimeout:    90 * time.Second,
			UserAgent:         "repovet/0.2 (+https://github.com/repovet/repovet)",
			BaseURL:           "https://api.github.com",
			Retries:           3,
			Backoff:           700 * time.Millisecond,
			RequestsPerSecond: 2.0,
			Burst:             5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".cache/github_zip",
			TTL:       24 * time.Hour,
			MemoryTTL: 30 * time.Minute,
		},
		LLM: LLMConfig{
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
			Timeout:    80 * time.Second,
			Retries:    3,
			Backoff:    700 * time.Millisecond,
			EmbedBatch: 64,
			EmbedCap:   2500,
		},
		Concurrency: ConcurrencyConfig{
			JudgeWorkers: 4,
		},
		Scoring: ScoringConfig{
			PenalizeForks:   true,
			ForkPenalty:     10.0,
			GapOneSeverity:  0.6,
			GapTwoSeverity:  1.0,
			MinClaimWeight:  0.2,
			DeepScanWeight:  2.0,
			ReferencedBoost: 1.0,
		},
		Agents: AgentsConfig{
			Authenticity: base,
			Inflation:    inflation,
			SkillMap:     skillmap,
			Interview:    interview,
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}

// Load overlays file and environment settings from viper onto the defaults.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
