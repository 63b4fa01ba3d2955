// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads VaultSage configuration from a YAML file with
// environment overrides. Flags that change answer behavior (the
// evidence gate, the citation requirement, the weak-result threshold)
// live here so deployments can tune them without a rebuild.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Weaviate  WeaviateConfig  `mapstructure:"weaviate"`
	LLM       LLMConfig       `mapstructure:"llm"`
	History   HistoryConfig   `mapstructure:"history"`
	Grounding GroundingConfig `mapstructure:"grounding"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	ReleaseMode bool   `mapstructure:"release_mode"`
}

// VaultConfig locates the Markdown vault.
type VaultConfig struct {
	// Root is the vault directory. Required.
	Root string `mapstructure:"root"`

	// ExclusionPatterns skip corpus paths. A pattern ending in "/"
	// excludes a folder subtree; anything else is a glob on the
	// vault-relative path.
	ExclusionPatterns []string `mapstructure:"exclusion_patterns"`
}

// WeaviateConfig points at the retrieval backend.
type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	Scheme string `mapstructure:"scheme"`
}

// LLMConfig configures generation.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`

	// RequestsPerMinute caps LLM calls; 0 disables the limiter.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// HistoryConfig configures turn persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// GroundingConfig holds the evidence-gate flags.
type GroundingConfig struct {
	// StrictEvidenceGate enables the post-answer gate.
	StrictEvidenceGate bool `mapstructure:"strict_evidence_gate"`

	// InlineCitations enables the citation requirement.
	InlineCitations bool `mapstructure:"inline_citations"`

	// WeakResultThreshold overrides the fallback cutoff; 0 keeps the
	// built-in default.
	WeakResultThreshold float64 `mapstructure:"weak_result_threshold"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	Dir   string `mapstructure:"dir"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: ":8080"},
		Weaviate: WeaviateConfig{
			Host:   "localhost:8081",
			Scheme: "http",
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "~/.vaultsage/history",
		},
		Grounding: GroundingConfig{
			StrictEvidenceGate: true,
			InlineCitations:    true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration: defaults, then the YAML file (optional),
// then VAULTSAGE_* environment overrides.
//
// Inputs:
//
//	path - YAML file path; empty or missing file keeps defaults.
//
// Outputs:
//
//	*Config - The merged configuration.
//	error - Non-nil on unreadable or invalid YAML, or failed
//	validation.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i, p := range cfg.Vault.ExclusionPatterns {
		cfg.Vault.ExclusionPatterns[i] = strings.TrimSpace(p)
	}
	cfg.Vault.Root = expandHome(cfg.Vault.Root)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.Logging.Dir = expandHome(cfg.Logging.Dir)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.release_mode", d.Server.ReleaseMode)
	v.SetDefault("weaviate.host", d.Weaviate.Host)
	v.SetDefault("weaviate.scheme", d.Weaviate.Scheme)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("grounding.strict_evidence_gate", d.Grounding.StrictEvidenceGate)
	v.SetDefault("grounding.inline_citations", d.Grounding.InlineCitations)
	v.SetDefault("logging.level", d.Logging.Level)
}

// bindEnv maps flat VAULTSAGE_* variable names onto nested keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.listen_addr", "VAULTSAGE_LISTEN_ADDR")
	_ = v.BindEnv("vault.root", "VAULTSAGE_VAULT_ROOT")
	_ = v.BindEnv("vault.exclusion_patterns", "VAULTSAGE_EXCLUSION_PATTERNS")
	_ = v.BindEnv("weaviate.host", "VAULTSAGE_WEAVIATE_HOST")
	_ = v.BindEnv("weaviate.scheme", "VAULTSAGE_WEAVIATE_SCHEME")
	_ = v.BindEnv("llm.base_url", "VAULTSAGE_LLM_BASE_URL")
	_ = v.BindEnv("llm.api_key", "VAULTSAGE_LLM_API_KEY")
	_ = v.BindEnv("llm.model", "VAULTSAGE_LLM_MODEL")
	_ = v.BindEnv("logging.level", "VAULTSAGE_LOG_LEVEL")
	_ = v.BindEnv("grounding.strict_evidence_gate", "VAULTSAGE_STRICT_EVIDENCE_GATE")
	_ = v.BindEnv("grounding.inline_citations", "VAULTSAGE_INLINE_CITATIONS")
	_ = v.BindEnv("grounding.weak_result_threshold", "VAULTSAGE_WEAK_RESULT_THRESHOLD")
}

// expandHome resolves a leading "~/" against the current user's home
// directory. Paths without the prefix pass through unchanged.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func (c *Config) validate() error {
	if c.Vault.Root == "" {
		return fmt.Errorf("config: vault.root is required")
	}
	if c.Grounding.WeakResultThreshold < 0 || c.Grounding.WeakResultThreshold > 1 {
		return fmt.Errorf("config: grounding.weak_result_threshold must be in [0,1]")
	}
	return nil
}
