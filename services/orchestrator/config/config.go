// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads service configuration.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML
// file named by AGENT_CONFIG_FILE, then environment variables. Secrets
// (the LLM API key) are env-only and never read from the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	// Port the HTTP server listens on.
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	// Path to the SQLite database file.
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`

	// AnswerTTLSeconds is the cache lifetime for model answers.
	AnswerTTLSeconds int `yaml:"answer_ttl_seconds"`

	// RefusalTTLSeconds is the cache lifetime for refusals.
	RefusalTTLSeconds int `yaml:"refusal_ttl_seconds"`
}

type RetrievalConfig struct {
	// Limit caps how many knowledge entries feed a prompt.
	Limit int `yaml:"limit"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`

	// APIKey comes from LLM_API_KEY only.
	APIKey string `yaml:"-"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC endpoint of the trace collector.
	// Empty disables trace export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// AnswerTTL returns the answer cache lifetime as a duration.
func (c CacheConfig) AnswerTTL() time.Duration {
	return time.Duration(c.AnswerTTLSeconds) * time.Second
}

// RefusalTTL returns the refusal cache lifetime as a duration.
func (c CacheConfig) RefusalTTL() time.Duration {
	return time.Duration(c.RefusalTTLSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Path: "data/csagent.db"},
		Cache: CacheConfig{
			Enabled:           true,
			Dir:               "data/cache",
			AnswerTTLSeconds:  600,
			RefusalTTLSeconds: 30,
		},
		Retrieval: RetrievalConfig{Limit: 5},
		LLM: LLMConfig{
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:       "qwen-plus",
			Temperature: 0.3,
		},
	}
}

// Load builds the effective configuration: defaults, then the optional
// YAML file, then environment variables.
func Load() Config {
	cfg := Default()

	if path := os.Getenv("AGENT_CONFIG_FILE"); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			slog.Warn("failed to load config file, continuing with defaults",
				"path", path, "error", err)
		}
	}

	applyEnv(&cfg)
	return cfg
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENT_PORT")
	setString(&cfg.Database.Path, "AGENT_DB_PATH")

	setBool(&cfg.Cache.Enabled, "AGENT_CACHE_ENABLED")
	setString(&cfg.Cache.Dir, "AGENT_CACHE_DIR")
	setInt(&cfg.Cache.AnswerTTLSeconds, "AGENT_CACHE_TTL_SECONDS")
	setInt(&cfg.Cache.RefusalTTLSeconds, "AGENT_CACHE_REFUSAL_TTL_SECONDS")

	setInt(&cfg.Retrieval.Limit, "AGENT_RETRIEVAL_LIMIT")

	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setFloat(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")

	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer in environment", "key", key, "value", v)
		return
	}
	*dst = n
}

func setFloat(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring invalid float in environment", "key", key, "value", v)
		return
	}
	*dst = f
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring invalid boolean in environment", "key", key, "value", v)
		return
	}
	*dst = b
}
