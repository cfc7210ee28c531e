// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for docchat.
//
// Configuration is read from ~/.docchat/config.toml by default. YAML
// (.yaml/.yml) and JSON (.json) files are accepted when named explicitly.
// Missing values fall back to built-in defaults and DOCCHAT_* environment
// variables override file values.
package config

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/docchat/internal/switches"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete docchat configuration. It is created once at
// startup and passed explicitly to the components that need it.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server" json:"server"`
	Chat      ChatConfig      `toml:"chat" yaml:"chat" json:"chat"`
	Retrieval RetrievalConfig `toml:"retrieval" yaml:"retrieval" json:"retrieval"`
	Fetch     FetchConfig     `toml:"fetch" yaml:"fetch" json:"fetch"`
	Socket    SocketConfig    `toml:"socket" yaml:"socket" json:"socket"`
	Location  LocationConfig  `toml:"location" yaml:"location" json:"location"`
	Voice     VoiceConfig     `toml:"voice" yaml:"voice" json:"voice"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging" json:"logging"`
}

// ServerConfig describes the inference server and the models used.
type ServerConfig struct {
	URL               string   `toml:"url" yaml:"url" json:"url"`
	Model             string   `toml:"model" yaml:"model" json:"model"`
	EmbedModel        string   `toml:"embed_model" yaml:"embed_model" json:"embed_model"`
	Timeout           Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	StreamIdleTimeout Duration `toml:"stream_idle_timeout" yaml:"stream_idle_timeout" json:"stream_idle_timeout"`
	KeepAlive         string   `toml:"keep_alive" yaml:"keep_alive" json:"keep_alive"`
	PullMissing       bool     `toml:"pull_missing" yaml:"pull_missing" json:"pull_missing"`
	Temperature       float64  `toml:"temperature" yaml:"temperature" json:"temperature"`
	NumCtx            int      `toml:"num_ctx" yaml:"num_ctx" json:"num_ctx"`
	Seed              int      `toml:"seed" yaml:"seed" json:"seed"`
}

// ChatConfig holds session behaviour and the initial switch selections.
type ChatConfig struct {
	SystemPrompt   string `toml:"system_prompt" yaml:"system_prompt" json:"system_prompt"`
	DocumentPolicy string `toml:"document_policy" yaml:"document_policy" json:"document_policy"`
	ThinkMode      string `toml:"think_mode" yaml:"think_mode" json:"think_mode"`
	Thinking       string `toml:"thinking" yaml:"thinking" json:"thinking"`
	Markdown       bool   `toml:"markdown" yaml:"markdown" json:"markdown"`
	Stream         bool   `toml:"stream" yaml:"stream" json:"stream"`
	Voice          bool   `toml:"voice" yaml:"voice" json:"voice"`
	Location       bool   `toml:"location" yaml:"location" json:"location"`
	Embedding      bool   `toml:"embedding" yaml:"embedding" json:"embedding"`
	Retrieval      bool   `toml:"retrieval" yaml:"retrieval" json:"retrieval"`
	Tools          bool   `toml:"tools" yaml:"tools" json:"tools"`
	MaxToolRounds  int    `toml:"max_tool_rounds" yaml:"max_tool_rounds" json:"max_tool_rounds"`
	SummaryWords   int    `toml:"summary_words" yaml:"summary_words" json:"summary_words"`
	RedrawLines    int    `toml:"redraw_lines" yaml:"redraw_lines" json:"redraw_lines"`
	HistoryFile    string `toml:"history_file" yaml:"history_file" json:"history_file"`
	SessionsDir    string `toml:"sessions_dir" yaml:"sessions_dir" json:"sessions_dir"`
}

// RetrievalConfig configures the embedding store and chunking.
type RetrievalConfig struct {
	Database         string  `toml:"database" yaml:"database" json:"database"`
	Collection       string  `toml:"collection" yaml:"collection" json:"collection"`
	Splitter         string  `toml:"splitter" yaml:"splitter" json:"splitter"`
	ChunkSize        int     `toml:"chunk_size" yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int     `toml:"chunk_overlap" yaml:"chunk_overlap" json:"chunk_overlap"`
	Results          int     `toml:"results" yaml:"results" json:"results"`
	MinScore         float64 `toml:"min_score" yaml:"min_score" json:"min_score"`
	EmbedBatch       int     `toml:"embed_batch" yaml:"embed_batch" json:"embed_batch"`
	EmbedConcurrency int     `toml:"embed_concurrency" yaml:"embed_concurrency" json:"embed_concurrency"`
	EmbedRate        float64 `toml:"embed_rate" yaml:"embed_rate" json:"embed_rate"`
}

// FetchConfig configures the content fetcher.
type FetchConfig struct {
	Timeout      Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	MaxBytes     int64    `toml:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
	CacheTTL     Duration `toml:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"`
	CacheEntries int      `toml:"cache_entries" yaml:"cache_entries" json:"cache_entries"`
	UserAgent    string   `toml:"user_agent" yaml:"user_agent" json:"user_agent"`
	BlockPrivate bool     `toml:"block_private" yaml:"block_private" json:"block_private"`
	AllowShell   bool     `toml:"allow_shell" yaml:"allow_shell" json:"allow_shell"`
}

// SocketConfig configures the local IPC listener.
type SocketConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `toml:"path" yaml:"path" json:"path"`
}

// LocationConfig is the static location used to decorate the system prompt.
type LocationConfig struct {
	Name     string `toml:"name" yaml:"name" json:"name"`
	Timezone string `toml:"timezone" yaml:"timezone" json:"timezone"`
	Units    string `toml:"units" yaml:"units" json:"units"`
}

// VoiceConfig names the text-to-speech command fed with reply text on stdin.
type VoiceConfig struct {
	Command string   `toml:"command" yaml:"command" json:"command"`
	Args    []string `toml:"args" yaml:"args" json:"args"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level" json:"level"`
	File  string `toml:"file" yaml:"file" json:"file"`
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as "30s" or "5m" in config files.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration { return Duration{d} }

var (
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextMarshaler   = Duration{}
)

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:               "http://127.0.0.1:11434",
			Model:             "llama3.2",
			EmbedModel:        "nomic-embed-text",
			Timeout:           D(60 * time.Second),
			StreamIdleTimeout: D(5 * time.Minute),
			PullMissing:       true,
		},
		Chat: ChatConfig{
			SystemPrompt:   "You are a helpful assistant. Answer concisely.",
			DocumentPolicy: switches.PolicyImporting,
			ThinkMode:      "off",
			Thinking:       switches.ThinkingShow,
			Markdown:       true,
			Stream:         true,
			Embedding:      true,
			Retrieval:      true,
			Tools:          true,
			MaxToolRounds:  5,
			SummaryWords:   100,
			HistoryFile:    "~/.docchat/history",
			SessionsDir:    "~/.docchat/sessions",
		},
		Retrieval: RetrievalConfig{
			Database:         "~/.docchat/embeddings.db",
			Collection:       "default",
			Splitter:         "recursive",
			ChunkSize:        1000,
			ChunkOverlap:     100,
			Results:          4,
			MinScore:         0.3,
			EmbedBatch:       16,
			EmbedConcurrency: 2,
			EmbedRate:        10,
		},
		Fetch: FetchConfig{
			Timeout:      D(30 * time.Second),
			MaxBytes:     20 << 20,
			CacheTTL:     D(10 * time.Minute),
			CacheEntries: 64,
			UserAgent:    "docchat/1.0",
		},
		Socket: SocketConfig{
			Enabled: true,
			Path:    "~/.docchat/docchat.sock",
		},
		Location: LocationConfig{
			Units: "metric",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "~/.docchat/docchat.log",
		},
	}
}

// SetDefaults fills zero values that must never be zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Server.Model == "" {
		c.Server.Model = d.Server.Model
	}
	if c.Server.EmbedModel == "" {
		c.Server.EmbedModel = d.Server.EmbedModel
	}
	if c.Server.Timeout.Duration == 0 {
		c.Server.Timeout = d.Server.Timeout
	}
	if c.Chat.DocumentPolicy == "" {
		c.Chat.DocumentPolicy = d.Chat.DocumentPolicy
	}
	if c.Chat.ThinkMode == "" {
		c.Chat.ThinkMode = d.Chat.ThinkMode
	}
	if c.Chat.Thinking == "" {
		c.Chat.Thinking = d.Chat.Thinking
	}
	if c.Chat.MaxToolRounds == 0 {
		c.Chat.MaxToolRounds = d.Chat.MaxToolRounds
	}
	if c.Chat.SummaryWords == 0 {
		c.Chat.SummaryWords = d.Chat.SummaryWords
	}
	if c.Retrieval.Collection == "" {
		c.Retrieval.Collection = d.Retrieval.Collection
	}
	if c.Retrieval.Splitter == "" {
		c.Retrieval.Splitter = d.Retrieval.Splitter
	}
	if c.Retrieval.ChunkSize == 0 {
		c.Retrieval.ChunkSize = d.Retrieval.ChunkSize
	}
	if c.Retrieval.Results == 0 {
		c.Retrieval.Results = d.Retrieval.Results
	}
	if c.Retrieval.EmbedBatch == 0 {
		c.Retrieval.EmbedBatch = d.Retrieval.EmbedBatch
	}
	if c.Retrieval.EmbedConcurrency == 0 {
		c.Retrieval.EmbedConcurrency = d.Retrieval.EmbedConcurrency
	}
	if c.Fetch.Timeout.Duration == 0 {
		c.Fetch.Timeout = d.Fetch.Timeout
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = d.Fetch.MaxBytes
	}
	if c.Fetch.CacheEntries == 0 {
		c.Fetch.CacheEntries = d.Fetch.CacheEntries
	}
	if c.Location.Units == "" {
		c.Location.Units = d.Location.Units
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// Switches returns the initial switch selections.
func (c *Config) Switches() switches.Defaults {
	return switches.Defaults{
		DocumentPolicy: c.Chat.DocumentPolicy,
		ThinkMode:      c.Chat.ThinkMode,
		Thinking:       c.Chat.Thinking,
		Markdown:       c.Chat.Markdown,
		Stream:         c.Chat.Stream,
		Voice:          c.Chat.Voice,
		Location:       c.Chat.Location,
		Embedding:      c.Chat.Embedding,
		Retrieval:      c.Chat.Retrieval,
		Tools:          c.Chat.Tools,
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the docchat configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// DefaultPath returns the path of the default TOML config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Path expands a configured path ("~/x") for use.
func Path(p string) string {
	return util.ExpandHome(p)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path (the default path when empty), applies
// environment overrides and defaults, and validates the result. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(cfg, path, data); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFile reads path over the defaults without environment overrides or
// validation. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := decode(cfg, path, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(cfg *Config, path string, data []byte) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration as TOML (or YAML for .yaml/.yml paths).
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err.Error()
	}
	return buf.String()
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies DOCCHAT_* environment variables:
//
//   - DOCCHAT_HOST: server.url
//   - DOCCHAT_MODEL: server.model
//   - DOCCHAT_EMBED_MODEL: server.embed_model
//   - DOCCHAT_SOCKET: socket.path
//   - DOCCHAT_POLICY: chat.document_policy
//   - DOCCHAT_LOG_LEVEL: logging.level
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DOCCHAT_HOST", &c.Server.URL},
		{"DOCCHAT_MODEL", &c.Server.Model},
		{"DOCCHAT_EMBED_MODEL", &c.Server.EmbedModel},
		{"DOCCHAT_SOCKET", &c.Socket.Path},
		{"DOCCHAT_POLICY", &c.Chat.DocumentPolicy},
		{"DOCCHAT_LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Splitters are the accepted retrieval.splitter values.
var Splitters = []string{"character", "recursive", "markdown", "token"}

// Validate checks the configuration and returns ValidateErrors describing
// every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Server.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("server.url", "must be an http(s) URL, got %q", c.Server.URL)
	}
	if c.Server.Temperature < 0 || c.Server.Temperature > 2 {
		add("server.temperature", "must be between 0 and 2")
	}

	oneOf := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		add(field, "invalid value %q, must be one of: %s", value, strings.Join(allowed, ", "))
	}
	oneOf("chat.document_policy", c.Chat.DocumentPolicy, []string{
		switches.PolicyImporting, switches.PolicyEmbedding, switches.PolicySummarizing, switches.PolicyIgnoring,
	})
	oneOf("chat.think_mode", c.Chat.ThinkMode, switches.ThinkModes)
	oneOf("chat.thinking", c.Chat.Thinking, []string{switches.ThinkingHide, switches.ThinkingShow, switches.ThinkingInline})
	oneOf("retrieval.splitter", c.Retrieval.Splitter, Splitters)
	oneOf("location.units", c.Location.Units, []string{"metric", "imperial"})
	oneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "error"})

	if c.Chat.MaxToolRounds < 1 {
		add("chat.max_tool_rounds", "must be at least 1")
	}
	if c.Chat.SummaryWords < 1 {
		add("chat.summary_words", "must be at least 1")
	}
	if c.Chat.RedrawLines < 0 {
		add("chat.redraw_lines", "must not be negative")
	}
	if c.Retrieval.ChunkSize < 1 {
		add("retrieval.chunk_size", "must be at least 1")
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		add("retrieval.chunk_overlap", "must be between 0 and chunk_size-1")
	}
	if c.Retrieval.Results < 1 {
		add("retrieval.results", "must be at least 1")
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		add("retrieval.min_score", "must be between -1 and 1")
	}
	if c.Retrieval.EmbedRate < 0 {
		add("retrieval.embed_rate", "must not be negative")
	}
	if c.Retrieval.Collection == "" || strings.ContainsAny(c.Retrieval.Collection, " \t/") {
		add("retrieval.collection", "must be a non-empty name without spaces or slashes")
	}
	if c.Fetch.MaxBytes < 1 {
		add("fetch.max_bytes", "must be positive")
	}
	if c.Socket.Enabled && c.Socket.Path == "" {
		add("socket.path", "required when the socket is enabled")
	}
	if c.Location.Timezone != "" {
		if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
			add("location.timezone", "unknown time zone %q", c.Location.Timezone)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by dotted key, e.g. "server.model".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if d, ok := field.Interface().(Duration); ok {
		return d.Duration.String(), nil
	}
	return field.Interface(), nil
}

// Set assigns a configuration value by dotted key. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct || field.Type() == reflect.TypeOf(Duration{}) {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	return name
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(strVal))
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Fields(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every configuration key in dot notation, sorted.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, tomlName(section)+"."+tomlName(section.Type.Field(j)))
		}
	}
	sort.Strings(keys)
	return keys
}
