// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for docchat.
//
// # Key Types
//
//   - Config: all settings, grouped into server, chat, retrieval, fetch,
//     socket, location, voice and logging sections
//   - Duration: time.Duration written as "30s" in files
//   - ValidateErrors: every problem found by Validate
//
// # Configuration Precedence
//
//   - Environment variables (DOCCHAT_*)
//   - The file given with --config, or ~/.docchat/config.toml
//   - Built-in defaults
//
// There is no process-wide configuration. Load once and pass the *Config
// to the constructors that need it:
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: cfg.Server.URL})
package config
