// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/docchat/internal/model"
)

// JSONExporter exports conversations as an indented JSON document.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Title    string          `json:"title"`
	Model    string          `json:"model,omitempty"`
	Exported time.Time       `json:"exported"`
	Messages []model.Message `json:"messages"`
}

// Export converts a conversation to JSON.
func (e *JSONExporter) Export(conv Conversation) ([]byte, error) {
	conv, err := prepare(conv, e.options)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(jsonDocument{
		Title:    conv.Title,
		Model:    conv.Model,
		Exported: conv.Exported,
		Messages: conv.Messages,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
